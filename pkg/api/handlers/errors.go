package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/api/types"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
	"github.com/urmzd/ht32-panel/pkg/panel"
)

// maxBodyBytes bounds command request bodies.
const maxBodyBytes = 64 << 10

// writeError maps a command error onto an HTTP status.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, device.ErrValidation):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
			Error:   "timeout",
			Message: "Request timed out waiting for the daemon",
		})
	case errors.Is(err, device.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "device_disconnected",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrUnsupported):
		c.JSON(http.StatusNotImplemented, types.ErrorResponse{
			Error:   "not_supported",
			Message: err.Error(),
		})
	case errors.Is(err, panel.ErrNoFrame):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "no_frame",
			Message: err.Error(),
		})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Command failed")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

// bindCommand validates the JSON body against schemaDoc and then decodes
// it into dst. It writes the error response itself and reports whether
// the handler should continue.
func bindCommand(c *gin.Context, validator *schema.Validator, schemaDoc json.RawMessage, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Could not read request body",
		})
		return false
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return false
	}

	if validator != nil {
		if err := validator.Validate(schemaDoc, raw); err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "validation_error",
				Message: err.Error(),
			})
			return false
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return false
	}
	return true
}
