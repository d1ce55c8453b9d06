package mqtt

import "strings"

// Command names accepted under <prefix>/set/.
const (
	CommandOrientation = "orientation"
	CommandTheme       = "theme"
	CommandRefresh     = "refresh_interval"
	CommandLed         = "led"
	CommandLedOff      = "led_off"
	CommandNetwork     = "network_interface"
	CommandIPDisplay   = "ip_display"
	CommandClear       = "clear"
)

// Topics builds topic names under a common prefix.
type Topics struct {
	Prefix string
}

// State is the retained snapshot topic.
func (t Topics) State() string { return t.Prefix + "/state" }

// Status carries online/offline availability, retained.
func (t Topics) Status() string { return t.Prefix + "/status" }

// Set is the command topic for name.
func (t Topics) Set(name string) string { return t.Prefix + "/set/" + name }

// AllSets matches every command topic.
func (t Topics) AllSets() string { return t.Prefix + "/set/+" }

// Command extracts the command name from a set topic.
func (t Topics) Command(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, t.Prefix+"/set/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
