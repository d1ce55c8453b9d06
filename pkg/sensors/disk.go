package sensors

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
)

// sectorSize is the unit /proc/diskstats counts in, whatever the
// hardware sector size.
const sectorSize = 512

// diskCandidates are tried in order when no disk is configured.
var diskCandidates = []string{"nvme0n1", "sda", "vda", "xvda", "mmcblk0"}

// Disk reports read and write throughput of one block device from
// /proc/diskstats.
type Disk struct {
	root   string
	device string

	read, written uint64
	last          time.Time
}

// NewDisk creates a Disk source. An empty dev or "auto" picks the first
// common boot disk present.
func NewDisk(root, dev string) *Disk {
	if dev == device.AutoDetect {
		dev = ""
	}
	return &Disk{root: root, device: dev}
}

func (d *Disk) Name() string { return "disk" }

func (d *Disk) Keys() []string {
	return []string{"disk.read_rate", "disk.write_rate", "disk.device"}
}

func (d *Disk) Sample(ctx context.Context, now time.Time) (Reading, error) {
	stats, err := readDiskstats(filepath.Join(d.root, "diskstats"))
	if err != nil {
		return Reading{}, err
	}

	dev := d.device
	if dev == "" {
		for _, c := range diskCandidates {
			if _, ok := stats[c]; ok {
				dev = c
				break
			}
		}
	}
	c, ok := stats[dev]
	if !ok {
		return Reading{}, fmt.Errorf("block device %q not found", dev)
	}

	var readRate, writeRate float64
	if !d.last.IsZero() {
		if secs := now.Sub(d.last).Seconds(); secs > 0 && c[0] >= d.read && c[1] >= d.written {
			readRate = float64((c[0]-d.read)*sectorSize) / secs
			writeRate = float64((c[1]-d.written)*sectorSize) / secs
		}
	}
	d.read, d.written, d.last = c[0], c[1], now

	return Reading{
		Values: map[string]float64{
			"disk.read_rate":  readRate,
			"disk.write_rate": writeRate,
		},
		Strings: map[string]string{
			"disk.device":     dev,
			"disk.read_rate":  FormatRate(readRate),
			"disk.write_rate": FormatRate(writeRate),
		},
	}, nil
}

// readDiskstats returns sectors read and written per device:
//
//	major minor name reads merged sectors_read ms writes merged sectors_written ...
func readDiskstats(path string) (map[string][2]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string][2]uint64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 10 {
			continue
		}
		rd, err1 := strconv.ParseUint(fields[5], 10, 64)
		wr, err2 := strconv.ParseUint(fields[9], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out[fields[2]] = [2]uint64{rd, wr}
	}
	return out, sc.Err()
}
