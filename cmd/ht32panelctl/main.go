// Command ht32panelctl controls a running ht32paneld over D-Bus.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/urmzd/ht32-panel/pkg/dbus"
	"github.com/urmzd/ht32-panel/pkg/device"
)

const usage = `Usage: ht32panelctl [flags] <command> [args]

Commands:
  status                          print the daemon state as JSON
  orientation <value>             set the LCD orientation
  theme <id>                      set the LCD theme
  themes                          list available LCD themes
  led <theme> <intensity> <speed> set the LED animation (theme by name or 1-5)
  led-off                         turn the LED strip off
  refresh <ms>                    set the LCD refresh interval
  interfaces                      list selectable network interfaces
  interface <name|auto>           set the monitored network interface
  ip-display <mode>               ipv6-gua, ipv6-lla, ipv6-ula or ipv4
  clear [color]                   fill the LCD until the next refresh
  screenshot <file.png>           save the last rendered frame
  watch                           print every state change until interrupted
  quit                            ask the daemon to exit

Flags:
`

func main() {
	fs := pflag.NewFlagSet("ht32panelctl", pflag.ExitOnError)
	bus := fs.String("bus", "session", "message bus (session or system)")
	name := fs.String("name", dbus.DefaultName, "daemon bus name")
	timeout := fs.Duration("timeout", 5*time.Second, "per-command timeout")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	client, err := dbus.Dial(*bus, *name)
	if err != nil {
		log.Fatal().Err(err).Str("bus", *bus).Msg("Failed to connect to daemon")
	}
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, *timeout, args[0], args[1:]); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(os.Stderr, err)
			fs.Usage()
			os.Exit(2)
		}
		log.Fatal().Err(err).Str("command", args[0]).Msg("Command failed")
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func run(ctx context.Context, c *dbus.Client, timeout time.Duration, cmd string, args []string) error {
	if cmd == "watch" {
		return watch(ctx, c)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	want := func(n int) error {
		if len(args) != n {
			return usageError(fmt.Sprintf("%s: expected %d argument(s), got %d", cmd, n, len(args)))
		}
		return nil
	}

	var (
		st  device.State
		err error
	)
	switch cmd {
	case "status":
		if err := want(0); err != nil {
			return err
		}
		st, err = c.State(ctx)
	case "orientation":
		if err := want(1); err != nil {
			return err
		}
		st, err = c.SetOrientation(ctx, args[0])
	case "theme":
		if err := want(1); err != nil {
			return err
		}
		st, err = c.SetTheme(ctx, args[0])
	case "themes":
		if err := want(0); err != nil {
			return err
		}
		return themes(ctx, c)
	case "led":
		if err := want(3); err != nil {
			return err
		}
		theme, perr := device.ParseLedTheme(args[0])
		if perr != nil {
			return perr
		}
		intensity, perr := strconv.Atoi(args[1])
		if perr != nil {
			return usageError("led: intensity must be a number")
		}
		speed, perr := strconv.Atoi(args[2])
		if perr != nil {
			return usageError("led: speed must be a number")
		}
		st, err = c.SetLed(ctx, theme, intensity, speed)
	case "led-off":
		if err := want(0); err != nil {
			return err
		}
		st, err = c.LedOff(ctx)
	case "refresh":
		if err := want(1); err != nil {
			return err
		}
		ms, perr := strconv.Atoi(args[0])
		if perr != nil {
			return usageError("refresh: interval must be milliseconds")
		}
		st, err = c.SetRefreshInterval(ctx, ms)
	case "interfaces":
		if err := want(0); err != nil {
			return err
		}
		return interfaces(ctx, c)
	case "interface":
		if err := want(1); err != nil {
			return err
		}
		st, err = c.SetNetworkInterface(ctx, args[0])
	case "ip-display":
		if err := want(1); err != nil {
			return err
		}
		st, err = c.SetIPDisplay(ctx, args[0])
	case "clear":
		hex := "#000000"
		switch len(args) {
		case 0:
		case 1:
			hex = args[0]
		default:
			return usageError("clear: expected at most one color")
		}
		if err := c.ClearDisplay(ctx, hex); err != nil {
			return err
		}
		st, err = c.State(ctx)
	case "screenshot":
		if err := want(1); err != nil {
			return err
		}
		png, err := c.Screenshot(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], png, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", len(png), args[0])
		return nil
	case "quit":
		if err := want(0); err != nil {
			return err
		}
		return c.Quit(ctx)
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		return err
	}
	return printState(st)
}

func themes(ctx context.Context, c *dbus.Client) error {
	st, err := c.State(ctx)
	if err != nil {
		return err
	}
	list, err := c.Themes(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWIDGETS\tDESCRIPTION")
	for _, t := range list {
		id := t.ID
		if id == st.LCD.Theme {
			id += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", id, t.Name, t.Widgets, t.Description)
	}
	return w.Flush()
}

func interfaces(ctx context.Context, c *dbus.Client) error {
	st, err := c.State(ctx)
	if err != nil {
		return err
	}
	names, err := c.NetworkInterfaces(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == st.LCD.NetworkInterface {
			name += " *"
		}
		fmt.Println(name)
	}
	return nil
}

func watch(ctx context.Context, c *dbus.Client) error {
	updates, err := c.Watch(ctx)
	if err != nil {
		return err
	}
	for st := range updates {
		if err := printState(st); err != nil {
			return err
		}
	}
	return nil
}

func printState(st device.State) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
