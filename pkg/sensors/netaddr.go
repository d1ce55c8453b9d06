package sensors

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
)

// SysRoot is where sysfs is mounted.
const SysRoot = "/sys"

// ipCacheTTL bounds how stale a displayed address may be.
const ipCacheTTL = 30 * time.Second

// ListInterfaces returns the selectable network interfaces under
// root/class/net, sorted. Loopback and container veth and docker bridges
// are skipped, as is anything without traffic counters.
func ListInterfaces(root string) ([]string, error) {
	dir := filepath.Join(root, "class", "net")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if name == "lo" || strings.HasPrefix(name, "veth") || strings.HasPrefix(name, "docker") {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name, "statistics", "rx_bytes")); err != nil {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

// defaultRouteInterface reads /proc/net/route and returns the interface
// of the first default route, or "".
func defaultRouteInterface(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Scan() // header
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 1 && fields[1] == "00000000" {
			return fields[0]
		}
	}
	return ""
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return ifi.Addrs()
}

// ipSet is the first address of each kind found on an interface.
type ipSet struct {
	v4, v6        string
	gua, lla, ula string
}

func (s ipSet) pick(pref device.IPDisplay) string {
	switch pref {
	case device.IPv4:
		return s.v4
	case device.IPv6LLA:
		return s.lla
	case device.IPv6ULA:
		return s.ula
	default:
		return s.gua
	}
}

func classify(addrs []net.Addr) ipSet {
	var s ipSet
	first := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
			continue
		}
		text := ip.String()
		if ip.To4() != nil {
			first(&s.v4, text)
			continue
		}
		switch {
		case ip.IsLinkLocalUnicast():
			first(&s.lla, text)
			continue
		case ip.IsPrivate():
			first(&s.ula, text)
		case ip.IsGlobalUnicast():
			first(&s.gua, text)
		}
		first(&s.v6, text)
	}
	return s
}

// ipCache holds one interface's addresses for ipCacheTTL.
type ipCache struct {
	iface string
	at    time.Time
	set   ipSet
}

func (c *ipCache) get(iface string, now time.Time, lookup func(string) ([]net.Addr, error)) ipSet {
	if c.iface == iface && !c.at.IsZero() && now.Sub(c.at) >= 0 && now.Sub(c.at) < ipCacheTTL {
		return c.set
	}
	c.iface, c.at, c.set = iface, now, ipSet{}
	if addrs, err := lookup(iface); err == nil {
		c.set = classify(addrs)
	}
	return c.set
}
