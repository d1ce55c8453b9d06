package sensors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/device"
)

var t0 = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func writeProc(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCPU(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := NewCPU(root)

	writeProc(t, root, "stat", "cpu  100 0 100 700 100 0 0 0 0 0\ncpu0 1 2 3 4 5 6 7 8\n")
	r, err := c.Sample(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Values["cpu.percent"])

	// +150 busy, +50 idle
	writeProc(t, root, "stat", "cpu  200 0 150 750 100 0 0 0 0 0\n")
	r, err = c.Sample(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, r.Values["cpu.percent"], 0.001)
}

func TestCPU_Malformed(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "stat", "intr 1 2 3\n")
	_, err := NewCPU(root).Sample(context.Background(), t0)
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "meminfo", "MemTotal:       8000 kB\nMemFree:        1000 kB\nMemAvailable:   2000 kB\n")

	r, err := NewMemory(root).Sample(context.Background(), t0)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, r.Values["mem.percent"], 0.001)
	assert.Equal(t, 6000.0*1024, r.Values["mem.used"])
	assert.Equal(t, "5.9 MiB", r.Strings["mem.used"])
}

const netDev = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo: %d 10 0 0 0 0 0 0 %d 10 0 0 0 0 0 0
  eth0: %d 10 0 0 0 0 0 0 %d 10 0 0 0 0 0 0
 wlan0: 5 1 0 0 0 0 0 0 5 1 0 0 0 0 0 0
`

func TestNetwork_AutoSelectsBusiest(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	n := NewNetwork(root, "")

	writeProc(t, root, "net/dev", sprintf(netDev, 999999, 999999, 1000, 500))
	r, err := n.Sample(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, "eth0", r.Strings["net.interface"])
	assert.Equal(t, 0.0, r.Values["net.rx_rate"])

	writeProc(t, root, "net/dev", sprintf(netDev, 999999, 999999, 3000, 1500))
	r, err = n.Sample(ctx, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, r.Values["net.rx_rate"])
	assert.Equal(t, 500.0, r.Values["net.tx_rate"])
	assert.Equal(t, "1.0 KB/s", r.Strings["net.rx_rate"])
}

func TestNetwork_MissingInterface(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "net/dev", sprintf(netDev, 1, 1, 1, 1))
	_, err := NewNetwork(root, "eth9").Sample(context.Background(), t0)
	assert.Error(t, err)
}

func TestNetwork_DefaultRouteAndAddresses(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	writeProc(t, root, "net/dev", sprintf(netDev, 1, 1, 999999, 999999))
	writeProc(t, root, "net/route", "Iface\tDestination\tGateway\tFlags\n"+
		"eth0\t0000A8C0\t00000000\t0001\n"+
		"wlan0\t00000000\t0100A8C0\t0003\n")

	n := NewNetwork(root, device.AutoDetect)
	var lookups int
	n.addrs = func(iface string) ([]net.Addr, error) {
		lookups++
		require.Equal(t, "wlan0", iface)
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("192.168.1.20").To4(), Mask: net.CIDRMask(24, 32)},
			&net.IPNet{IP: net.ParseIP("fd00::20"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("2001:db8::20"), Mask: net.CIDRMask(64, 128)},
		}, nil
	}

	r, err := n.Sample(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, "wlan0", r.Strings["net.interface"])
	assert.Equal(t, "192.168.1.20", r.Strings["net.ipv4"])
	assert.Equal(t, "fd00::20", r.Strings["net.ipv6"])
	assert.Equal(t, "2001:db8::20", r.Strings["net.ip"])

	n.Configure(device.AutoDetect, device.IPv6LLA)
	r, err = n.Sample(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "fe80::1", r.Strings["net.ip"])
	assert.Equal(t, 1, lookups, "addresses are cached")

	n.Configure("eth0", device.IPv4)
	n.addrs = func(string) ([]net.Addr, error) { return nil, errors.New("gone") }
	r, err = n.Sample(ctx, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "eth0", r.Strings["net.interface"])
	assert.Equal(t, 0.0, r.Values["net.rx_rate"], "rates restart on a new interface")
	assert.NotContains(t, r.Strings, "net.ip")
}

func TestListInterfaces(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"wlan0", "eth0", "lo", "veth12ab", "docker0"} {
		writeProc(t, root, "class/net/"+name+"/statistics/rx_bytes", "0\n")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "class/net/bond0"), 0o755))

	got, err := ListInterfaces(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", "wlan0"}, got)
}

const diskstats = `   8       0 sda 100 0 %d 0 200 0 %d 0 0 0 0
   8       1 sda1 100 0 50 0 200 0 50 0 0 0 0
 259       0 nvme0n1 100 0 %d 0 200 0 %d 0 0 0 0
`

func TestDisk(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	d := NewDisk(root, "")

	writeProc(t, root, "diskstats", sprintf(diskstats, 0, 0, 1000, 2000))
	r, err := d.Sample(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, "nvme0n1", r.Strings["disk.device"])
	assert.Equal(t, 0.0, r.Values["disk.read_rate"])

	// +20 sectors read, +40 written over 2s
	writeProc(t, root, "diskstats", sprintf(diskstats, 0, 0, 1020, 2040))
	r, err = d.Sample(ctx, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 20.0*512/2, r.Values["disk.read_rate"])
	assert.Equal(t, 40.0*512/2, r.Values["disk.write_rate"])
	assert.Equal(t, "10.2 KB/s", r.Strings["disk.write_rate"])

	_, err = NewDisk(root, "vdb").Sample(ctx, t0)
	assert.Error(t, err)
}

func TestSystem(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "uptime", "93784.52 12345.00\n")
	s := NewSystem(root)
	s.hostname = func() (string, error) { return "panel-box", nil }

	r, err := s.Sample(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, "panel-box", r.Strings["sys.hostname"])
	assert.Equal(t, "12:30", r.Strings["sys.time"])
	assert.Equal(t, "1d 2h 3m", r.Strings["sys.uptime"])
}

type failing struct{}

func (failing) Name() string   { return "failing" }
func (failing) Keys() []string { return []string{"bad.value"} }
func (failing) Sample(context.Context, time.Time) (Reading, error) {
	return Reading{}, errors.New("sensor offline")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(3)
	require.NoError(t, r.Register(NewStatic("static", map[string]float64{"cpu.percent": 42}, map[string]string{"sys.hostname": "box"})))
	require.NoError(t, r.Register(failing{}))

	err := r.Register(NewStatic("dup", map[string]float64{"cpu.percent": 1}, nil))
	assert.Error(t, err)

	assert.True(t, r.Has("cpu.percent"))
	assert.True(t, r.Has("bad.value"))
	assert.False(t, r.Has("gpu.temp"))
	assert.Equal(t, []string{"bad.value", "cpu.percent", "sys.hostname"}, r.Keys())

	var d Data
	for i := 0; i < 5; i++ {
		d, err = r.Sample(context.Background(), t0)
		assert.ErrorContains(t, err, "sensor offline")
	}
	v, ok := d.Value("cpu.percent")
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)
	assert.Equal(t, []float64{42, 42, 42}, d.History("cpu.percent"))

	s, ok := d.Text("sys.hostname")
	assert.True(t, ok)
	assert.Equal(t, "box", s)

	s, ok = d.Text("cpu.percent")
	assert.True(t, ok)
	assert.Equal(t, "42", s)
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "512 B/s", FormatRate(512))
	assert.Equal(t, "1.2 MB/s", FormatRate(1_234_567))
	assert.Equal(t, "3.0 GB/s", FormatRate(3e9))
}

func sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
