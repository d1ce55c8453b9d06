// Package lcd implements the HT32 panel's USB-HID report format and the
// handle that writes those reports to the device.
package lcd

import (
	"fmt"
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
)

// Report geometry: one report id byte, an 8 byte header, 4096 payload bytes.
const (
	ReportSize  = 4105
	HeaderSize  = 8
	PayloadSize = 4096
	dataStart   = 1 + HeaderSize

	Signature = 0x55

	// NativeWidth and NativeHeight describe the panel framebuffer.
	NativeWidth  = 320
	NativeHeight = 170

	// MaxChunks is the largest redraw the one byte sequence number can address.
	MaxChunks = 255
)

// Commands
const (
	CmdConfig  byte = 0xA1
	CmdRefresh byte = 0xA2
	CmdRedraw  byte = 0xA3
)

// Config sub-commands
const (
	SubOrientation byte = 0xF1
	SubSetTime     byte = 0xF2
)

// Redraw phases
const (
	PhaseStart    byte = 0xF0
	PhaseContinue byte = 0xF1
	PhaseEnd      byte = 0xF2
)

func newReport(cmd byte) []byte {
	r := make([]byte, ReportSize)
	r[1] = Signature
	r[2] = cmd
	return r
}

// OrientationReport selects the hardware scan direction. Upside-down
// variants are rotated in software, so only landscape/portrait reach the wire.
func OrientationReport(o device.Orientation) []byte {
	r := newReport(CmdConfig)
	r[3] = SubOrientation
	if o.Portrait() {
		r[4] = 0x02
	} else {
		r[4] = 0x01
	}
	return r
}

// HeartbeatReport sets the panel clock. The panel blanks if it stops
// receiving these.
func HeartbeatReport(t time.Time) []byte {
	r := newReport(CmdConfig)
	r[3] = SubSetTime
	r[4] = byte(t.Hour())
	r[5] = byte(t.Minute())
	r[6] = byte(t.Second())
	return r
}

// ChunkCount returns how many redraw reports a buffer of n bytes needs.
func ChunkCount(n int) int {
	return (n + PayloadSize - 1) / PayloadSize
}

// RedrawReports splits a big-endian RGB565 buffer into redraw reports.
//
// Header layout after the command byte: phase, 1-based sequence, a zero
// byte, 16-bit big-endian byte offset, chunk length high byte. Offsets
// past 0xFFFF are sent truncated.
func RedrawReports(pix []byte) ([][]byte, error) {
	if len(pix) == 0 || len(pix)%2 != 0 {
		return nil, fmt.Errorf("redraw buffer of %d bytes: %w", len(pix), device.ErrValidation)
	}
	n := ChunkCount(len(pix))
	if n > MaxChunks {
		return nil, fmt.Errorf("redraw needs %d chunks, max %d: %w", n, MaxChunks, device.ErrValidation)
	}

	reports := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		off := i * PayloadSize
		end := min(off+PayloadSize, len(pix))
		size := end - off

		r := newReport(CmdRedraw)
		switch {
		case i == n-1:
			r[3] = PhaseEnd
		case i == 0:
			r[3] = PhaseStart
		default:
			r[3] = PhaseContinue
		}
		r[4] = byte(i + 1)
		r[5] = 0
		r[6] = byte(off >> 8)
		r[7] = byte(off)
		r[8] = byte(size >> 8)
		copy(r[dataStart:], pix[off:end])
		reports = append(reports, r)
	}
	return reports, nil
}
