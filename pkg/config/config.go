// Package config loads the daemon's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/lcd"
)

// DefaultConfigFile is read when no path is given and it exists.
const DefaultConfigFile = "config.toml"

// Config is the complete daemon configuration. It is read once at start.
type Config struct {
	Listen    string `toml:"listen"`
	Theme     string `toml:"theme"`
	ThemesDir string `toml:"themes_dir"`
	Poll      int    `toml:"poll"`
	Refresh   int    `toml:"refresh"`
	Heartbeat int    `toml:"heartbeat"`
	StateDir  string `toml:"state_dir"`

	Web struct {
		Enable bool `toml:"enable"`
	} `toml:"web"`

	DBus struct {
		Enable bool   `toml:"enable"`
		Bus    string `toml:"bus"`
		Name   string `toml:"name"`
	} `toml:"dbus"`

	LCD struct {
		Device      string `toml:"device"`
		Orientation string `toml:"orientation"`
	} `toml:"lcd"`

	LED struct {
		Device    string `toml:"device"`
		Theme     int    `toml:"theme"`
		Intensity int    `toml:"intensity"`
		Speed     int    `toml:"speed"`
	} `toml:"led"`

	Canvas struct {
		Width  int `toml:"width"`
		Height int `toml:"height"`
	} `toml:"canvas"`

	Sensors struct {
		NetworkInterface string `toml:"network_interface"`
		IPDisplay        string `toml:"ip_display"`
		DiskDevice       string `toml:"disk_device"`
		History          int    `toml:"history"`
	} `toml:"sensors"`

	MQTT struct {
		Enable      bool   `toml:"enable"`
		Broker      string `toml:"broker"`
		ClientID    string `toml:"client_id"`
		Username    string `toml:"username"`
		Password    string `toml:"password"`
		TopicPrefix string `toml:"topic_prefix"`
	} `toml:"mqtt"`

	Influx struct {
		Enable bool   `toml:"enable"`
		URL    string `toml:"url"`
		Token  string `toml:"token"`
		Org    string `toml:"org"`
		Bucket string `toml:"bucket"`
	} `toml:"influx"`

	// Extra is passed through to collaborators unexamined.
	Extra map[string]any `toml:"extra"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		Listen:    "0.0.0.0:8686",
		Theme:     "themes/default.toml",
		Poll:      500,
		Refresh:   1600,
		Heartbeat: 60000,
	}
	c.Web.Enable = true
	c.DBus.Enable = true
	c.DBus.Bus = "session"
	c.DBus.Name = "org.ht32panel.Daemon1"
	c.LCD.Device = device.AutoDetect
	c.LCD.Orientation = string(device.Landscape)
	c.LED.Device = "/dev/ttyUSB0"
	c.LED.Theme = int(device.LedBreathing)
	c.LED.Intensity = 3
	c.LED.Speed = 3
	c.Canvas.Width = lcd.NativeWidth
	c.Canvas.Height = lcd.NativeHeight
	c.Sensors.NetworkInterface = device.AutoDetect
	c.Sensors.IPDisplay = string(device.IPv6GUA)
	c.Sensors.History = 60
	c.MQTT.ClientID = "ht32paneld"
	c.MQTT.TopicPrefix = "ht32panel"
	return c
}

// Load reads path over the defaults. An empty path reads
// DefaultConfigFile if present, otherwise the defaults are returned.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return c, nil
		}
		path = DefaultConfigFile
	}

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return c, nil
}

// Flags registers command-line overrides on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("listen", "", "web listen address (host:port)")
	fs.String("theme", "", "LCD theme file")
	fs.String("lcd-device", "", `LCD hidraw path or "auto"`)
	fs.String("led-device", "", `LED serial port or "auto"`)
	fs.String("state-dir", "", "directory for persisted settings")
	fs.Bool("no-web", false, "disable the web server")
	fs.Bool("no-dbus", false, "disable the D-Bus service")
}

// ApplyFlags copies every flag the user actually set.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	str("listen", &c.Listen)
	str("theme", &c.Theme)
	str("lcd-device", &c.LCD.Device)
	str("led-device", &c.LED.Device)
	str("state-dir", &c.StateDir)
	if fs.Changed("no-web") {
		off, _ := fs.GetBool("no-web")
		c.Web.Enable = !off
	}
	if fs.Changed("no-dbus") {
		off, _ := fs.GetBool("no-dbus")
		c.DBus.Enable = !off
	}
}

// Validate reports every problem that must stop the daemon before any
// device I/O.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Poll <= 0 || c.Refresh <= 0 || c.Heartbeat <= 0 {
		bad("poll, refresh and heartbeat must be positive (got %d, %d, %d)", c.Poll, c.Refresh, c.Heartbeat)
	}
	if c.Refresh < c.Poll {
		bad("refresh (%d) must not be shorter than poll (%d)", c.Refresh, c.Poll)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Width > 1024 || c.Canvas.Height <= 0 || c.Canvas.Height > 1024 {
		bad("canvas %dx%d out of range 1..1024", c.Canvas.Width, c.Canvas.Height)
	} else if n := lcd.ChunkCount(c.Canvas.Width * c.Canvas.Height * 2); n > lcd.MaxChunks {
		bad("canvas %dx%d needs %d redraw chunks, max %d", c.Canvas.Width, c.Canvas.Height, n, lcd.MaxChunks)
	}
	if err := device.ValidateLed(device.LedTheme(c.LED.Theme), c.LED.Intensity, c.LED.Speed); err != nil {
		bad("led defaults: %w", err)
	}
	if _, err := device.ParseOrientation(c.LCD.Orientation); err != nil {
		bad("lcd: %w", err)
	}
	if _, err := device.ParseIPDisplay(c.Sensors.IPDisplay); err != nil {
		bad("sensors: %w", err)
	}
	if c.Web.Enable {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			bad("listen %q: %w", c.Listen, err)
		}
	}
	if c.DBus.Enable && c.DBus.Bus != "session" && c.DBus.Bus != "system" {
		bad("dbus.bus %q: want session or system", c.DBus.Bus)
	}
	if c.MQTT.Enable && c.MQTT.Broker == "" {
		bad("mqtt.broker is required when mqtt is enabled")
	}
	if c.Influx.Enable && (c.Influx.URL == "" || c.Influx.Bucket == "") {
		bad("influx.url and influx.bucket are required when influx is enabled")
	}
	return errors.Join(errs...)
}

// PollInterval and friends convert the millisecond settings.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll) * time.Millisecond
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh) * time.Millisecond
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat) * time.Millisecond
}

// InitialState builds the store's starting snapshot.
func (c *Config) InitialState(themeID string) device.State {
	o, _ := device.ParseOrientation(c.LCD.Orientation)
	ip, _ := device.ParseIPDisplay(c.Sensors.IPDisplay)
	return device.State{
		LCD: device.LcdState{
			Device:           c.LCD.Device,
			Orientation:      o,
			Theme:            themeID,
			RefreshMs:        c.Refresh,
			NetworkInterface: c.Sensors.NetworkInterface,
			IPDisplay:        ip,
		},
		LED: device.LedState{
			Device:    c.LED.Device,
			Theme:     device.LedTheme(c.LED.Theme),
			Intensity: c.LED.Intensity,
			Speed:     c.LED.Speed,
		},
	}
}
