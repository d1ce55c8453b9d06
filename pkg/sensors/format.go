package sensors

import (
	"fmt"
	"time"
)

// FormatRate renders bytes per second, e.g. "1.2 MB/s".
func FormatRate(bps float64) string {
	switch {
	case bps >= 1e9:
		return fmt.Sprintf("%.1f GB/s", bps/1e9)
	case bps >= 1e6:
		return fmt.Sprintf("%.1f MB/s", bps/1e6)
	case bps >= 1e3:
		return fmt.Sprintf("%.1f KB/s", bps/1e3)
	default:
		return fmt.Sprintf("%.0f B/s", bps)
	}
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(b float64) string {
	const unit = 1024
	switch {
	case b >= unit*unit*unit:
		return fmt.Sprintf("%.1f GiB", b/(unit*unit*unit))
	case b >= unit*unit:
		return fmt.Sprintf("%.1f MiB", b/(unit*unit))
	case b >= unit:
		return fmt.Sprintf("%.1f KiB", b/unit)
	default:
		return fmt.Sprintf("%.0f B", b)
	}
}

// FormatUptime renders "3d 4h 12m".
func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
