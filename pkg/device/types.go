package device

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hardware identifiers
const (
	LcdVendorID  = 0x04D9
	LcdProductID = 0xFD01
	LedVendorID  = 0x1A86
	LedProductID = 0x7523

	// AutoDetect selects the first attached device with the expected ids.
	AutoDetect = "auto"
)

// Orientation is the logical orientation of the LCD.
type Orientation string

const (
	Landscape           Orientation = "landscape"
	Portrait            Orientation = "portrait"
	LandscapeUpsideDown Orientation = "landscape-upside-down"
	PortraitUpsideDown  Orientation = "portrait-upside-down"
)

// Orientations lists every accepted orientation.
var Orientations = []Orientation{Landscape, Portrait, LandscapeUpsideDown, PortraitUpsideDown}

// ParseOrientation accepts the canonical names plus underscore and
// "inverted-" spellings.
func ParseOrientation(s string) (Orientation, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", "-")
	if rest, ok := strings.CutPrefix(v, "inverted-"); ok {
		v = rest + "-upside-down"
	}
	for _, o := range Orientations {
		if string(o) == v {
			return o, nil
		}
	}
	return "", Invalid("orientation", "unknown orientation %q", s)
}

// Portrait reports whether the logical canvas is taller than wide.
func (o Orientation) Portrait() bool {
	return o == Portrait || o == PortraitUpsideDown
}

// UpsideDown reports whether the frame is rotated 180 degrees.
func (o Orientation) UpsideDown() bool {
	return o == LandscapeUpsideDown || o == PortraitUpsideDown
}

// LedTheme is one of the five fixed LED animation modes.
type LedTheme uint8

const (
	LedRainbow   LedTheme = 1
	LedBreathing LedTheme = 2
	LedColors    LedTheme = 3
	LedOff       LedTheme = 4
	LedAuto      LedTheme = 5
)

var ledThemeNames = map[LedTheme]string{
	LedRainbow:   "rainbow",
	LedBreathing: "breathing",
	LedColors:    "colors",
	LedOff:       "off",
	LedAuto:      "auto",
}

// LedThemes lists the LED modes in wire order.
var LedThemes = []LedTheme{LedRainbow, LedBreathing, LedColors, LedOff, LedAuto}

func (t LedTheme) String() string {
	if n, ok := ledThemeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("LedTheme(%d)", uint8(t))
}

// Valid reports whether t is one of the five modes.
func (t LedTheme) Valid() bool {
	_, ok := ledThemeNames[t]
	return ok
}

// MarshalText encodes the theme by name.
func (t LedTheme) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, Invalid("led theme", "%d out of range [1,5]", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts a name or a digit.
func (t *LedTheme) UnmarshalText(b []byte) error {
	v, err := ParseLedTheme(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// UnmarshalJSON accepts a name, a quoted digit or a bare number.
func (t *LedTheme) UnmarshalJSON(b []byte) error {
	s := string(b)
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	return t.UnmarshalText([]byte(s))
}

// ParseLedTheme accepts "breathing" or "2".
func ParseLedTheme(s string) (LedTheme, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 5 {
			return 0, Invalid("led theme", "%d out of range [1,5]", n)
		}
		return LedTheme(n), nil
	}
	for t, name := range ledThemeNames {
		if name == v {
			return t, nil
		}
	}
	return 0, Invalid("led theme", "unknown theme %q", s)
}

// IPDisplay selects which address of the monitored interface is shown.
type IPDisplay string

const (
	IPv6GUA IPDisplay = "ipv6-gua"
	IPv6LLA IPDisplay = "ipv6-lla"
	IPv6ULA IPDisplay = "ipv6-ula"
	IPv4    IPDisplay = "ipv4"
)

// IPDisplays lists every accepted address preference.
var IPDisplays = []IPDisplay{IPv6GUA, IPv6LLA, IPv6ULA, IPv4}

// ParseIPDisplay accepts the canonical names in any case, with
// underscores or hyphens.
func ParseIPDisplay(s string) (IPDisplay, error) {
	v := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, d := range IPDisplays {
		if string(d) == v {
			return d, nil
		}
	}
	return "", Invalid("ip display", "unknown option %q", s)
}

// LcdState is the configuration and connection status of the LCD.
//
// NetworkInterface and IPDisplay choose what the network widgets show;
// NetworkInterface is AutoDetect or an interface name.
type LcdState struct {
	Device           string      `json:"device"`
	Orientation      Orientation `json:"orientation"`
	Theme            string      `json:"theme"`
	RefreshMs        int         `json:"refresh_ms"`
	NetworkInterface string      `json:"network_interface"`
	IPDisplay        IPDisplay   `json:"ip_display"`
	Connected        bool        `json:"connected"`
}

// LedState is the configuration and connection status of the LED strip.
type LedState struct {
	Device    string   `json:"device"`
	Theme     LedTheme `json:"theme"`
	Intensity int      `json:"intensity"`
	Speed     int      `json:"speed"`
	Connected bool     `json:"connected"`
}

// State is the aggregate snapshot of both peripherals.
type State struct {
	LCD           LcdState  `json:"lcd"`
	LED           LedState  `json:"led"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Version       uint64    `json:"version"`
}

// ValidateLed checks an LED setting against the [1,5] bounds.
func ValidateLed(theme LedTheme, intensity, speed int) error {
	if !theme.Valid() {
		return Invalid("led theme", "%d out of range [1,5]", uint8(theme))
	}
	if intensity < 1 || intensity > 5 {
		return Invalid("led intensity", "%d out of range [1,5]", intensity)
	}
	if speed < 1 || speed > 5 {
		return Invalid("led speed", "%d out of range [1,5]", speed)
	}
	return nil
}
