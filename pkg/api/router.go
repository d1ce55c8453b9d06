// Package api serves the panel's HTTP surface: JSON commands, the LCD
// preview, state streams over SSE and WebSocket, and the MCP endpoint.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urmzd/ht32-panel/pkg/api/handlers"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/render"
	"github.com/urmzd/ht32-panel/pkg/state"
)

// shutdownTimeout bounds how long Run waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// Options wire a Router. Screen, Stats, LedFrames and MCP are optional.
type Options struct {
	Panel     panel.Controller
	Store     *state.Store
	Validator *schema.Validator
	Screen    *render.Screen
	Stats     handlers.StatsSource
	LedFrames handlers.LedFrames
	MCP       http.Handler
	Version   string

	// Buffer is the per-client subscription buffer for streams.
	Buffer int
}

// Router holds the Gin engine and dependencies
type Router struct {
	engine *gin.Engine
	opts   Options
}

// NewRouter creates a new API router
func NewRouter(opts Options) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine: engine,
		opts:   opts,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.opts.Store, r.opts.Stats, r.opts.Version)
	r.engine.GET("/health", healthHandler.Health)

	if r.opts.MCP != nil {
		r.engine.Any("/mcp", gin.WrapH(r.opts.MCP))
	}

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		controlHandler := handlers.NewControlHandler(r.opts.Panel, r.opts.Validator)
		screenHandler := handlers.NewScreenHandler(r.opts.Screen, r.opts.LedFrames)
		eventsHandler := handlers.NewEventsHandler(r.opts.Store, r.opts.Buffer)
		wsHandler := handlers.NewWebSocketHandler(r.opts.Panel, r.opts.Store, r.opts.Buffer)

		v1.GET("/state", controlHandler.GetState)
		v1.GET("/themes", controlHandler.ListThemes)
		v1.GET("/network/interfaces", controlHandler.ListNetworkInterfaces)
		v1.GET("/events", eventsHandler.Events)
		v1.GET("/ws", wsHandler.Serve)

		lcd := v1.Group("/lcd")
		{
			lcd.PUT("/orientation", controlHandler.SetOrientation)
			lcd.PUT("/theme", controlHandler.SetTheme)
			lcd.PUT("/refresh-interval", controlHandler.SetRefreshInterval)
			lcd.PUT("/network-interface", controlHandler.SetNetworkInterface)
			lcd.PUT("/ip-display", controlHandler.SetIPDisplay)
			lcd.POST("/clear", controlHandler.ClearDisplay)
		}
		v1.GET("/lcd.png", screenHandler.LcdPNG)

		led := v1.Group("/led")
		{
			led.PUT("", controlHandler.SetLed)
			led.POST("/off", controlHandler.LedOff)
			led.GET("/frame", screenHandler.LedFrame)
		}
	}
}

// Handler exposes the engine, mainly for tests.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (r *Router) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return r.Serve(ctx, ln)
}

// Serve is Run on an existing listener. Stream handlers see their request
// context cancelled as soon as shutdown starts, so open SSE and WebSocket
// clients do not hold it up.
func (r *Router) Serve(ctx context.Context, ln net.Listener) error {
	streams, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	srv := &http.Server{
		Handler:           r.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streams },
	}
	srv.RegisterOnShutdown(stopStreams)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete, closing remaining connections")
		_ = srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
