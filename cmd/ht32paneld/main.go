package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/urmzd/ht32-panel/pkg/api"
	"github.com/urmzd/ht32-panel/pkg/config"
	"github.com/urmzd/ht32-panel/pkg/db"
	"github.com/urmzd/ht32-panel/pkg/dbus"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
	"github.com/urmzd/ht32-panel/pkg/lcd"
	"github.com/urmzd/ht32-panel/pkg/led"
	"github.com/urmzd/ht32-panel/pkg/mcp"
	"github.com/urmzd/ht32-panel/pkg/mqtt"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/render"
	"github.com/urmzd/ht32-panel/pkg/scheduler"
	"github.com/urmzd/ht32-panel/pkg/sensors"
	"github.com/urmzd/ht32-panel/pkg/state"
	"github.com/urmzd/ht32-panel/pkg/telemetry"
	"github.com/urmzd/ht32-panel/pkg/theme"
	"golang.org/x/sync/errgroup"

	_ "github.com/urmzd/ht32-panel/docs"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title           HT32 Panel API
// @version         1.0
// @description     REST API for the HT32 front-panel LCD and LED strip

// @host      localhost:8686
// @BasePath  /api/v1
// @schemes   http

func main() {
	fs := pflag.NewFlagSet("ht32paneld", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "path to config.toml")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	logJSON := fs.Bool("log-json", false, "log JSON instead of console output")
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !*logJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", *logLevel).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg.ApplyFlags(fs)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg); err != nil {
		log.Fatal().Err(err).Msg("Daemon failed")
	}
	log.Info().Msg("Shut down cleanly")
}

func run(ctx context.Context, quit context.CancelFunc, cfg *config.Config) error {
	validator := schema.NewValidator()

	// Live data sources
	registry := sensors.NewRegistry(cfg.Sensors.History)
	sources, network := sensors.Defaults(sensors.ProcRoot, cfg.Sensors.NetworkInterface, cfg.Sensors.DiskDevice)
	for _, src := range sources {
		if err := registry.Register(src); err != nil {
			return err
		}
	}

	// Themes
	themes, err := theme.NewStore(registry, validator)
	if err != nil {
		return err
	}
	active, err := themes.LoadOrDefault(cfg.Theme)
	if err != nil {
		log.Warn().Err(err).Str("theme", active.ID).Msg("Theme failed to load, using built-in default")
	}
	if cfg.ThemesDir != "" {
		if err := themes.LoadDir(cfg.ThemesDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.ThemesDir).Msg("Some themes failed to load")
		}
	}
	log.Info().Str("theme", active.ID).Strs("available", themes.List()).Msg("Themes loaded")

	store, err := state.New(cfg.InitialState(active.ID), themes)
	if err != nil {
		return err
	}

	// Persisted settings; the daemon runs without them if the database
	// cannot be opened.
	database := openDatabase(ctx, cfg.StateDir)
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}()
		if err := db.Restore(ctx, database, store); err != nil {
			log.Warn().Err(err).Msg("Some persisted settings were rejected")
		}
	}

	compositor, err := render.NewCompositor(cfg.Canvas.Width, cfg.Canvas.Height)
	if err != nil {
		return err
	}
	defer compositor.Close()

	var exporter *telemetry.Exporter
	if cfg.Influx.Enable {
		exporter, err = telemetry.Connect(ctx, telemetry.Options{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.Influx.URL).Msg("InfluxDB unavailable, telemetry disabled")
		} else {
			defer exporter.Close()
		}
	}

	// Devices start disconnected when absent; the scheduler keeps retrying.
	lcdHandle := openDevice(ctx, "lcd", cfg.LCD.Device, lcd.Open)
	ledHandle := openDevice(ctx, "led", cfg.LED.Device, led.Open)
	defer func() {
		if err := lcd.Shutdown(); err != nil {
			log.Debug().Err(err).Msg("hidapi shutdown")
		}
	}()

	opts := scheduler.Options{
		Store:      store,
		Themes:     themes,
		Sensors:    registry,
		Network:    network,
		Compositor: compositor,
		Poll:       cfg.PollInterval(),
		Heartbeat:  cfg.HeartbeatInterval(),
		LCD:        lcdHandle,
		LCDPath:    cfg.LCD.Device,
		OpenLCD:    lcd.Open,
		LED:        ledHandle,
		LEDPath:    cfg.LED.Device,
		OpenLED:    led.Open,
	}
	if exporter != nil {
		opts.OnSample = exporter.Record
	}
	sched, err := newScheduler(opts)
	if err != nil {
		return err
	}

	local := panel.NewLocal(store, themes, sched.Screen()).
		WithDisplay(sched).
		WithInterfaces(func() ([]string, error) { return sensors.ListInterfaces(sensors.SysRoot) })

	g, gctx := errgroup.WithContext(ctx)

	if database != nil {
		// Subscribed before anything runs so no change goes unpersisted.
		writeback := db.NewWriteback(database, store)
		g.Go(func() error { return writeback.Run(gctx) })
	}
	g.Go(func() error { return sched.Run(gctx) })

	if exporter != nil {
		g.Go(func() error { return exporter.Run(gctx, store) })
	}

	if cfg.Web.Enable {
		router := api.NewRouter(api.Options{
			Panel:     local,
			Store:     store,
			Validator: validator,
			Screen:    sched.Screen(),
			Stats:     sched,
			LedFrames: sched,
			MCP:       mcp.NewServer(local, version).HTTPHandler(),
			Version:   version,
		})
		g.Go(func() error {
			log.Info().Str("address", cfg.Listen).Msg("Starting API server")
			return router.Run(gctx, cfg.Listen)
		})
	}

	if cfg.DBus.Enable {
		if svc, conn, err := startDBus(cfg, local, store, quit); err != nil {
			log.Warn().Err(err).Str("bus", cfg.DBus.Bus).Msg("D-Bus unavailable, continuing without it")
		} else {
			defer func() {
				if err := svc.Close(); err != nil {
					log.Debug().Err(err).Msg("D-Bus release name")
				}
				_ = conn.Close()
			}()
			g.Go(func() error { return svc.Run(gctx) })
		}
	}

	if cfg.MQTT.Enable {
		bridge, err := mqtt.Connect(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Prefix:   cfg.MQTT.TopicPrefix,
		}, local, store, validator)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT unavailable, continuing without it")
		} else {
			g.Go(func() error { return bridge.Run(gctx) })
		}
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openDevice(ctx context.Context, name, path string, open device.Opener) device.Handle {
	h, err := open(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("device", name).Str("path", path).Msg("Device unavailable, will retry in background")
		return nil
	}
	return h
}

// openDatabase returns nil when settings cannot be persisted.
func openDatabase(ctx context.Context, dir string) *db.DB {
	database, err := db.Open(dir)
	if err != nil {
		log.Warn().Err(err).Msg("Database unavailable, settings will not persist")
		return nil
	}
	if err := database.Migrate(ctx); err != nil {
		log.Warn().Err(err).Str("path", database.Path()).Msg("Database migration failed, settings will not persist")
		_ = database.Close()
		return nil
	}
	log.Info().Str("path", database.Path()).Msg("Database opened")
	return database
}

// newScheduler hands the opened handles to a scheduler, closing them if
// it cannot be built.
func newScheduler(opts scheduler.Options) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(opts)
	if err != nil {
		closeDevices(opts.LCD, opts.LED)
		return nil, err
	}
	return sched, nil
}

func closeDevices(handles ...device.Handle) {
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil {
			log.Debug().Err(err).Str("path", h.Path()).Msg("Device close")
		}
	}
}

func startDBus(cfg *config.Config, p panel.Controller, store *state.Store, quit func()) (*dbus.Service, io.Closer, error) {
	conn, err := dbus.Connect(cfg.DBus.Bus)
	if err != nil {
		return nil, nil, err
	}
	svc, err := dbus.NewService(conn, dbus.Options{
		Panel:      p,
		Store:      store,
		Name:       cfg.DBus.Name,
		WebEnabled: cfg.Web.Enable,
		Quit: func() {
			log.Info().Msg("Quit requested over D-Bus")
			quit()
		},
	})
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return svc, conn, nil
}
