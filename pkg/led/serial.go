package led

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/device"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// BaudRate used by the CH340 adapter on the LED controller.
const BaudRate = 10000

// closeWait bounds how long Close waits for an interrupted write.
const closeWait = time.Second

// SerialPort wraps a serial connection to the LED controller.
type SerialPort struct {
	port    serial.Port
	path    string
	timeout time.Duration
	guard   device.WriteGuard
}

func newSerialPort(port serial.Port, path string, timeout time.Duration) *SerialPort {
	return &SerialPort{port: port, path: path, timeout: timeout}
}

// Find returns the first serial port whose USB ids match the LED adapter.
func Find() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerate serial ports: %w", err)
	}
	vid := fmt.Sprintf("%04X", device.LedVendorID)
	pid := fmt.Sprintf("%04X", device.LedProductID)
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("led adapter %s:%s: %w", vid, pid, device.ErrNotFound)
}

// Open opens the serial port at 10000 baud, 8N1. "auto" searches for the
// adapter by USB id.
func Open(ctx context.Context, path string) (device.Handle, error) {
	if path == "" || path == device.AutoDetect {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		path = found
	}

	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %v: %w", path, err, device.ErrNotFound)
	}

	log.Info().Str("port", path).Int("baud", BaudRate).Msg("LED serial port opened")

	return newSerialPort(port, path, device.DefaultWriteTimeout), nil
}

// WriteFrame sends one control packet.
func (s *SerialPort) WriteFrame(ctx context.Context, packet []byte) error {
	if len(packet) != PacketSize || packet[0] != Start {
		return fmt.Errorf("malformed led packet % X: %w", packet, device.ErrValidation)
	}
	return device.Guarded(ctx, &s.guard, s.timeout, func() error {
		if _, err := s.port.Write(packet); err != nil {
			return err
		}
		return s.port.Drain()
	})
}

func (s *SerialPort) Path() string {
	return s.path
}

// Close closes the port, which interrupts a write still in flight, then
// waits briefly for that write to return.
func (s *SerialPort) Close() error {
	first, idle := s.guard.Close()
	if !first {
		return nil
	}
	err := s.port.Close()
	select {
	case <-idle:
	case <-time.After(closeWait):
		log.Warn().Str("port", s.path).Msg("LED write still pending after close")
	}
	log.Info().Str("port", s.path).Msg("LED serial port closed")
	return err
}
