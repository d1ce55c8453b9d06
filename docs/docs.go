// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Reports peripheral connectivity and scheduler counters",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Both peripherals connected", "schema": {"$ref": "#/definitions/types.HealthResponse"}},
                    "503": {"description": "A peripheral is disconnected", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/state": {
            "get": {
                "description": "Returns the current configuration and connection status of both peripherals",
                "produces": ["application/json"],
                "tags": ["state"],
                "summary": "Get panel state",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}}
                }
            }
        },
        "/themes": {
            "get": {
                "description": "Returns every loaded theme and marks the active one",
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "List LCD themes",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ThemesResponse"}}
                }
            }
        },
        "/lcd/orientation": {
            "put": {
                "description": "Rotates the rendered frame; the next frame is pushed immediately",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "Set LCD orientation",
                "parameters": [
                    {"description": "Orientation", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.OrientationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Unknown orientation", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Request timed out", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/lcd/theme": {
            "put": {
                "description": "Switches the active theme to one of the loaded theme ids",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "Set LCD theme",
                "parameters": [
                    {"description": "Theme id", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ThemeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Unknown theme", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Request timed out", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/lcd/refresh-interval": {
            "put": {
                "description": "Sets the frame push interval; values are clamped to [1500, 10000] ms",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "Set LCD refresh interval",
                "parameters": [
                    {"description": "Interval in milliseconds", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.RefreshIntervalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Invalid interval", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/lcd/network-interface": {
            "put": {
                "description": "Pins the network widgets to one interface; \"auto\" or an empty name follows the default route",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "Select the monitored network interface",
                "parameters": [
                    {"description": "Interface name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.NetworkInterfaceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Unknown interface", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/lcd/ip-display": {
            "put": {
                "description": "One of ipv6-gua, ipv6-lla, ipv6-ula or ipv4",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "Set the displayed address family",
                "parameters": [
                    {"description": "Address preference", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.IPDisplayRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Unknown preference", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/lcd/clear": {
            "post": {
                "description": "The fill stays on screen until the next scheduled refresh",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "Fill the LCD with one color",
                "parameters": [
                    {"description": "Fill color", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ClearRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Invalid color", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "501": {"description": "No display attached", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "LCD disconnected", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/network/interfaces": {
            "get": {
                "description": "Returns the interfaces the network widgets can follow",
                "produces": ["application/json"],
                "tags": ["lcd"],
                "summary": "List network interfaces",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InterfacesResponse"}}
                }
            }
        },
        "/lcd.png": {
            "get": {
                "description": "Returns the most recently rendered frame as PNG in its logical orientation",
                "produces": ["image/png"],
                "tags": ["lcd"],
                "summary": "LCD preview",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "304": {"description": "Frame unchanged", "schema": {"type": "string"}},
                    "503": {"description": "No frame rendered yet", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/led": {
            "put": {
                "description": "Sets theme, intensity and speed together; each is validated against [1, 5]",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["led"],
                "summary": "Set LED animation",
                "parameters": [
                    {"description": "LED setting", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.LedRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "400": {"description": "Out of range", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Request timed out", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/led/off": {
            "post": {
                "produces": ["application/json"],
                "tags": ["led"],
                "summary": "Turn the LED strip off",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StateResponse"}},
                    "504": {"description": "Request timed out", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/led/frame": {
            "get": {
                "description": "Returns the phase, level and colour of the last LED tick",
                "produces": ["application/json"],
                "tags": ["led"],
                "summary": "LED animation frame",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.LedFrameResponse"}},
                    "503": {"description": "No tick yet", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "description": "Server-Sent Events stream. The first event carries the current state; each later \"state\" event carries the changed fields and the new snapshot. Slow clients lose the oldest pending changes.",
                "produces": ["text/event-stream"],
                "tags": ["state"],
                "summary": "Subscribe to state changes",
                "responses": {
                    "200": {"description": "SSE event stream", "schema": {"type": "string"}}
                }
            }
        },
        "/ws": {
            "get": {
                "description": "Pushes a \"state\" message on every change and accepts command messages (set_orientation, set_theme, set_refresh_interval, set_led, led_off, get_state, ping)",
                "tags": ["state"],
                "summary": "WebSocket control channel",
                "responses": {
                    "101": {"description": "Switching protocols", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "device.LcdState": {
            "type": "object",
            "properties": {
                "device": {"type": "string"},
                "orientation": {"type": "string", "enum": ["landscape", "portrait", "landscape-upside-down", "portrait-upside-down"]},
                "theme": {"type": "string"},
                "refresh_ms": {"type": "integer"},
                "network_interface": {"type": "string"},
                "ip_display": {"type": "string", "enum": ["ipv6-gua", "ipv6-lla", "ipv6-ula", "ipv4"]},
                "connected": {"type": "boolean"}
            }
        },
        "device.LedState": {
            "type": "object",
            "properties": {
                "device": {"type": "string"},
                "theme": {"type": "string", "enum": ["rainbow", "breathing", "colors", "off", "auto"]},
                "intensity": {"type": "integer"},
                "speed": {"type": "integer"},
                "connected": {"type": "boolean"}
            }
        },
        "device.State": {
            "type": "object",
            "properties": {
                "lcd": {"$ref": "#/definitions/device.LcdState"},
                "led": {"$ref": "#/definitions/device.LedState"},
                "last_heartbeat": {"type": "string"},
                "version": {"type": "integer"}
            }
        },
        "scheduler.Stats": {
            "type": "object",
            "properties": {
                "samples": {"type": "integer"},
                "renders": {"type": "integer"},
                "frames": {"type": "integer"},
                "heartbeats": {"type": "integer"},
                "pending_samples": {"type": "integer"},
                "led_ticks": {"type": "integer"},
                "led_writes": {"type": "integer"},
                "disconnects": {"type": "integer"},
                "reconnects": {"type": "integer"},
                "retries": {"type": "integer"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "lcd": {"type": "string"},
                "led": {"type": "string"},
                "version": {"type": "string"},
                "stats": {"$ref": "#/definitions/scheduler.Stats"},
                "timestamp": {"type": "string"}
            }
        },
        "types.LedFrameResponse": {
            "type": "object",
            "properties": {
                "tick": {"type": "integer"},
                "theme": {"type": "string"},
                "phase": {"type": "number"},
                "level": {"type": "number"},
                "color": {"type": "string"},
                "packet": {"type": "string"}
            }
        },
        "types.LedRequest": {
            "type": "object",
            "properties": {
                "theme": {"type": "string", "example": "breathing"},
                "intensity": {"type": "integer", "example": 3},
                "speed": {"type": "integer", "example": 3}
            }
        },
        "types.OrientationRequest": {
            "type": "object",
            "properties": {
                "orientation": {"type": "string"}
            }
        },
        "types.RefreshIntervalRequest": {
            "type": "object",
            "properties": {
                "refresh_ms": {"type": "integer"}
            }
        },
        "types.StateResponse": {
            "type": "object",
            "properties": {
                "state": {"$ref": "#/definitions/device.State"},
                "timestamp": {"type": "string"}
            }
        },
        "types.ThemeInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "widgets": {"type": "integer"},
                "active": {"type": "boolean"}
            }
        },
        "types.NetworkInterfaceRequest": {
            "type": "object",
            "properties": {
                "network_interface": {"type": "string", "example": "eth0"}
            }
        },
        "types.IPDisplayRequest": {
            "type": "object",
            "properties": {
                "ip_display": {"type": "string", "example": "ipv4"}
            }
        },
        "types.ClearRequest": {
            "type": "object",
            "properties": {
                "color": {"type": "string", "example": "#000000"}
            }
        },
        "types.InterfacesResponse": {
            "type": "object",
            "properties": {
                "interfaces": {"type": "array", "items": {"type": "string"}},
                "active": {"type": "string"},
                "count": {"type": "integer"}
            }
        },
        "types.ThemeRequest": {
            "type": "object",
            "properties": {
                "theme": {"type": "string"}
            }
        },
        "types.ThemesResponse": {
            "type": "object",
            "properties": {
                "themes": {"type": "array", "items": {"$ref": "#/definitions/types.ThemeInfo"}},
                "active": {"type": "string"},
                "count": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8686",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "HT32 Panel API",
	Description:      "REST API for the HT32 front-panel LCD and LED strip",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
