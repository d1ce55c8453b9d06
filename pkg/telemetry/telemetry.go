// Package telemetry exports sensor samples and peripheral status to
// InfluxDB through the non-blocking write API.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/sensors"
	"github.com/urmzd/ht32-panel/pkg/state"
)

// Measurement names.
const (
	MeasurementSensors = "panel_sensors"
	MeasurementStatus  = "panel_status"
)

const (
	pingTimeout   = 5 * time.Second
	batchSize     = 100
	flushInterval = 10_000 // milliseconds
)

// ErrConnectionFailed is returned when the server cannot be reached.
var ErrConnectionFailed = errors.New("influxdb connection failed")

// Options configure an Exporter.
type Options struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// PointWriter accepts points without blocking.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Exporter turns samples and state changes into points.
type Exporter struct {
	client influxdb2.Client
	writer PointWriter
	host   string
}

// Connect pings the server and opens a batched write API.
func Connect(ctx context.Context, opts Options) (*Exporter, error) {
	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushInterval),
	)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(opts.Org, opts.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn().Err(err).Msg("InfluxDB write failed")
		}
	}()

	e := NewExporter(writeAPI)
	e.client = client
	log.Info().Str("url", opts.URL).Str("bucket", opts.Bucket).Msg("InfluxDB telemetry enabled")
	return e, nil
}

// NewExporter writes through w.
func NewExporter(w PointWriter) *Exporter {
	host, _ := os.Hostname()
	return &Exporter{writer: w, host: host}
}

// Record writes one sensor sample. It matches the scheduler's OnSample hook.
func (e *Exporter) Record(data sensors.Data) {
	if p := SamplePoint(e.host, data); p != nil {
		e.writer.WritePoint(p)
	}
}

// Run writes a status point on every connection change until ctx is done.
func (e *Exporter) Run(ctx context.Context, store *state.Store) error {
	sub := store.Subscribe(0)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-sub.C():
			if !ok {
				return nil
			}
			for _, f := range change.Fields {
				if f == state.FieldLcdConnected || f == state.FieldLedConnected {
					e.writer.WritePoint(StatusPoint(e.host, change.State, time.Now()))
					break
				}
			}
		}
	}
}

// Close flushes pending points and closes the client.
func (e *Exporter) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

// SamplePoint converts a sample into a point, or nil if it has no values.
func SamplePoint(host string, data sensors.Data) *write.Point {
	if len(data.Values) == 0 {
		return nil
	}
	fields := make(map[string]any, len(data.Values))
	for k, v := range data.Values {
		fields[k] = v
	}
	ts := data.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementSensors, map[string]string{"host": host}, fields, ts)
}

// StatusPoint records both peripherals' connection flags.
func StatusPoint(host string, st device.State, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementStatus,
		map[string]string{"host": host},
		map[string]any{
			"lcd_connected": st.LCD.Connected,
			"led_connected": st.LED.Connected,
			"version":       int64(st.Version),
		},
		at,
	)
}
