package sensors

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
)

// ProcRoot is where the kernel's process filesystem is mounted.
const ProcRoot = "/proc"

// CPU reports whole-system utilisation from /proc/stat deltas.
type CPU struct {
	root       string
	busy, idle uint64
	primed     bool
}

// NewCPU creates a CPU source reading root/stat.
func NewCPU(root string) *CPU {
	return &CPU{root: root}
}

func (c *CPU) Name() string { return "cpu" }

func (c *CPU) Keys() []string { return []string{"cpu.percent"} }

// Sample returns 0% on the first call since there is no previous reading
// to diff against.
func (c *CPU) Sample(ctx context.Context, now time.Time) (Reading, error) {
	busy, idle, err := readCPU(filepath.Join(c.root, "stat"))
	if err != nil {
		return Reading{}, err
	}

	pct := 0.0
	if c.primed {
		db, di := busy-c.busy, idle-c.idle
		if total := db + di; total > 0 {
			pct = float64(db) / float64(total) * 100
		}
	}
	c.busy, c.idle, c.primed = busy, idle, true

	return Reading{
		Values:  map[string]float64{"cpu.percent": pct},
		Strings: map[string]string{},
	}, nil
}

// readCPU parses the aggregate line of /proc/stat:
//
//	cpu  user nice system idle iowait irq softirq steal ...
func readCPU(path string) (busy, idle uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, 0, fmt.Errorf("%s: empty", path)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 9 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("%s: unexpected format", path)
	}
	v := make([]uint64, 8)
	for i := range v {
		v[i], err = strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", path, err)
		}
	}
	busy = v[0] + v[1] + v[2] + v[5] + v[6] + v[7]
	idle = v[3] + v[4]
	return busy, idle, nil
}

// Memory reports RAM usage from /proc/meminfo.
type Memory struct {
	root string
}

// NewMemory creates a Memory source reading root/meminfo.
func NewMemory(root string) *Memory {
	return &Memory{root: root}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Keys() []string {
	return []string{"mem.percent", "mem.used", "mem.total"}
}

func (m *Memory) Sample(ctx context.Context, now time.Time) (Reading, error) {
	path := filepath.Join(m.root, "meminfo")
	f, err := os.Open(path)
	if err != nil {
		return Reading{}, err
	}
	defer f.Close()

	var total, avail float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = kb * 1024
		case "MemAvailable:":
			avail = kb * 1024
		}
	}
	if total == 0 {
		return Reading{}, fmt.Errorf("%s: MemTotal missing", path)
	}

	used := total - avail
	return Reading{
		Values: map[string]float64{
			"mem.percent": used / total * 100,
			"mem.used":    used,
			"mem.total":   total,
		},
		Strings: map[string]string{
			"mem.used":  FormatBytes(used),
			"mem.total": FormatBytes(total),
		},
	}, nil
}

// Network reports receive and transmit rates for one interface from
// /proc/net/dev, plus that interface's addresses. It is safe to
// reconfigure while the registry samples it.
type Network struct {
	root  string
	addrs func(iface string) ([]net.Addr, error)

	mu     sync.Mutex
	iface  string
	pref   device.IPDisplay
	rx, tx uint64
	last   time.Time
	seen   string // interface the counters belong to
	ips    ipCache
}

// NewNetwork creates a Network source. An empty iface or "auto" selects
// the default-route interface, falling back to the busiest non-loopback
// interface.
func NewNetwork(root, iface string) *Network {
	n := &Network{root: root, addrs: interfaceAddrs, pref: device.IPv6GUA}
	n.Configure(iface, device.IPv6GUA)
	return n
}

// Configure changes the monitored interface and the address shown as
// net.ip. Rates restart from zero when the interface changes.
func (n *Network) Configure(iface string, pref device.IPDisplay) {
	if iface == device.AutoDetect {
		iface = ""
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.iface = iface
	if pref != "" {
		n.pref = pref
	}
}

func (n *Network) Name() string { return "network" }

func (n *Network) Keys() []string {
	return []string{"net.rx_rate", "net.tx_rate", "net.interface", "net.ipv4", "net.ipv6", "net.ip"}
}

func (n *Network) Sample(ctx context.Context, now time.Time) (Reading, error) {
	counters, err := readNetDev(filepath.Join(n.root, "net", "dev"))
	if err != nil {
		return Reading{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	iface := n.iface
	if iface == "" {
		iface = defaultRouteInterface(filepath.Join(n.root, "net", "route"))
	}
	if _, ok := counters[iface]; !ok && n.iface == "" {
		iface = busiest(counters)
	}
	c, ok := counters[iface]
	if !ok {
		return Reading{}, fmt.Errorf("interface %q not found", iface)
	}
	if iface != n.seen {
		n.seen, n.last = iface, time.Time{}
	}

	var rxRate, txRate float64
	if !n.last.IsZero() {
		if secs := now.Sub(n.last).Seconds(); secs > 0 && c[0] >= n.rx && c[1] >= n.tx {
			rxRate = float64(c[0]-n.rx) / secs
			txRate = float64(c[1]-n.tx) / secs
		}
	}
	n.rx, n.tx, n.last = c[0], c[1], now

	r := Reading{
		Values: map[string]float64{
			"net.rx_rate": rxRate,
			"net.tx_rate": txRate,
		},
		Strings: map[string]string{
			"net.interface": iface,
			"net.rx_rate":   FormatRate(rxRate),
			"net.tx_rate":   FormatRate(txRate),
		},
	}

	ips := n.ips.get(iface, now, n.addrs)
	for key, v := range map[string]string{"net.ipv4": ips.v4, "net.ipv6": ips.v6, "net.ip": ips.pick(n.pref)} {
		if v != "" {
			r.Strings[key] = v
		}
	}
	return r, nil
}

// busiest returns the non-loopback interface with the most traffic.
func busiest(counters map[string][2]uint64) string {
	var iface string
	var best uint64
	for name, c := range counters {
		if name == "lo" {
			continue
		}
		if total := c[0] + c[1]; iface == "" || total > best || (total == best && name < iface) {
			iface, best = name, total
		}
	}
	return iface
}

// readNetDev returns rx and tx byte counters per interface.
func readNetDev(path string) (map[string][2]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string][2]uint64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 9 {
			continue
		}
		rx, err1 := strconv.ParseUint(fields[0], 10, 64)
		tx, err2 := strconv.ParseUint(fields[8], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out[strings.TrimSpace(name)] = [2]uint64{rx, tx}
	}
	return out, sc.Err()
}

// System reports hostname, uptime and wall-clock time.
type System struct {
	root     string
	hostname func() (string, error)
}

// NewSystem creates a System source reading root/uptime.
func NewSystem(root string) *System {
	return &System{root: root, hostname: os.Hostname}
}

func (s *System) Name() string { return "system" }

func (s *System) Keys() []string {
	return []string{"sys.hostname", "sys.uptime", "sys.time", "sys.date"}
}

func (s *System) Sample(ctx context.Context, now time.Time) (Reading, error) {
	host, err := s.hostname()
	if err != nil {
		return Reading{}, fmt.Errorf("hostname: %w", err)
	}

	r := Reading{
		Values: map[string]float64{},
		Strings: map[string]string{
			"sys.hostname": host,
			"sys.time":     now.Format("15:04"),
			"sys.date":     now.Format("Mon 02 Jan"),
		},
	}

	raw, err := os.ReadFile(filepath.Join(s.root, "uptime"))
	if err != nil {
		return r, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return r, fmt.Errorf("uptime: empty")
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return r, fmt.Errorf("uptime: %w", err)
	}
	r.Values["sys.uptime"] = secs
	r.Strings["sys.uptime"] = FormatUptime(time.Duration(secs * float64(time.Second)))
	return r, nil
}

// Defaults returns the built-in Linux sources. The network source is
// returned separately as well so it can be reconfigured at runtime.
func Defaults(root, iface, disk string) ([]Source, *Network) {
	network := NewNetwork(root, iface)
	return []Source{
		NewCPU(root),
		NewMemory(root),
		network,
		NewDisk(root, disk),
		NewSystem(root),
	}, network
}
