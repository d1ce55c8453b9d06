package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/urmzd/ht32-panel/pkg/dbus"
	"github.com/urmzd/ht32-panel/pkg/mcp"
)

var version = "dev"

func main() {
	// Logging must go to stderr; stdout is the MCP transport
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	fs := pflag.NewFlagSet("ht32panel-mcp", pflag.ExitOnError)
	bus := fs.String("bus", "session", "message bus the daemon is on (session or system)")
	name := fs.String("name", dbus.DefaultName, "daemon bus name")
	_ = fs.Parse(os.Args[1:])

	// The daemon owns the devices; this process only relays tool calls.
	client, err := dbus.Dial(*bus, *name)
	if err != nil {
		log.Fatal().Err(err).Str("bus", *bus).Msg("Failed to connect to daemon")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close D-Bus connection")
		}
	}()

	mcpServer := mcp.NewServer(client, version)

	log.Info().Str("daemon", *name).Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Fatal().Err(err).Msg("MCP server failed")
	}
}
