package lcd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sstallion/go-hid"
	"github.com/urmzd/ht32-panel/pkg/device"
)

// preferredInterface is the HID interface that accepts display reports.
const preferredInterface = 0

// SettleDelay is how long the panel needs after open before it accepts reports.
var SettleDelay = time.Second

var (
	initOnce sync.Once
	initErr  error
)

func initHID() error {
	initOnce.Do(func() {
		initErr = hid.Init()
	})
	return initErr
}

// Shutdown releases hidapi state. Call once after every handle is closed.
func Shutdown() error {
	return hid.Exit()
}

// Device is an open HT32 LCD.
type Device struct {
	dev     hidWriter
	path    string
	timeout time.Duration
	guard   device.WriteGuard
}

// hidWriter is the part of *hid.Device the panel uses.
type hidWriter interface {
	Write(p []byte) (int, error)
	Close() error
}

// Find returns the HID path of the first attached panel, preferring the
// display interface when the device exposes several.
func Find() (string, error) {
	if err := initHID(); err != nil {
		return "", fmt.Errorf("hid init: %w", err)
	}

	var infos []*hid.DeviceInfo
	err := hid.Enumerate(device.LcdVendorID, device.LcdProductID, func(info *hid.DeviceInfo) error {
		log.Debug().
			Str("path", info.Path).
			Int("interface", info.InterfaceNbr).
			Msg("Found HID device")
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enumerate hid: %w", err)
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("lcd %04X:%04X: %w", device.LcdVendorID, device.LcdProductID, device.ErrNotFound)
	}
	for _, info := range infos {
		if info.InterfaceNbr == preferredInterface {
			return info.Path, nil
		}
	}
	return infos[0].Path, nil
}

// Open opens the panel at path, or the first attached panel when path is
// "auto", and puts it in landscape scan mode.
func Open(ctx context.Context, path string) (device.Handle, error) {
	if err := initHID(); err != nil {
		return nil, fmt.Errorf("hid init: %w", err)
	}
	if path == "" || path == device.AutoDetect {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		path = found
	}

	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("open lcd %s: %v: %w", path, err, device.ErrNotFound)
	}

	d := &Device{dev: dev, path: path, timeout: device.DefaultWriteTimeout}

	select {
	case <-time.After(SettleDelay):
	case <-ctx.Done():
		_ = dev.Close()
		return nil, ctx.Err()
	}

	if err := d.WriteFrame(ctx, OrientationReport(device.Landscape)); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("set orientation: %w", err)
	}

	log.Info().Str("path", path).Msg("LCD opened")
	return d, nil
}

// WriteFrame writes a single report.
func (d *Device) WriteFrame(ctx context.Context, report []byte) error {
	if len(report) != ReportSize {
		return fmt.Errorf("report of %d bytes: %w", len(report), device.ErrValidation)
	}
	return device.Guarded(ctx, &d.guard, d.timeout, func() error {
		_, err := d.dev.Write(report)
		return err
	})
}

func (d *Device) Path() string {
	return d.path
}

// Close releases the HID handle. hidapi must not free a handle under a
// running hid_write, so a write abandoned after a timeout defers the
// release until it returns.
func (d *Device) Close() error {
	first, idle := d.guard.Close()
	if !first {
		return nil
	}
	select {
	case <-idle:
		log.Info().Str("path", d.path).Msg("LCD closed")
		return d.dev.Close()
	default:
	}
	log.Warn().Str("path", d.path).Msg("LCD write still pending, closing once it returns")
	go func() {
		<-idle
		if err := d.dev.Close(); err != nil {
			log.Debug().Err(err).Str("path", d.path).Msg("Deferred LCD close")
		}
	}()
	return nil
}
