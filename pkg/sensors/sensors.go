// Package sensors provides the live data that theme widgets bind to.
//
// A Source contributes a fixed set of dotted keys ("cpu.percent",
// "sys.hostname"). The Registry samples every source on the poll cadence
// and keeps a bounded history per numeric key for graph widgets.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// DefaultHistory is the number of samples retained per numeric key.
const DefaultHistory = 60

// Reading is what one source reports for one sample.
type Reading struct {
	Values  map[string]float64
	Strings map[string]string
}

// Source produces readings for a fixed set of keys.
type Source interface {
	Name() string
	Keys() []string
	Sample(ctx context.Context, now time.Time) (Reading, error)
}

// Data is an immutable snapshot of every source's latest reading.
type Data struct {
	Time    time.Time
	Values  map[string]float64
	Strings map[string]string
	Series  map[string][]float64
}

// Value returns a numeric reading.
func (d Data) Value(key string) (float64, bool) {
	v, ok := d.Values[key]
	return v, ok
}

// Text returns a string reading, falling back to the numeric reading.
func (d Data) Text(key string) (string, bool) {
	if s, ok := d.Strings[key]; ok {
		return s, true
	}
	if v, ok := d.Values[key]; ok {
		return fmt.Sprintf("%.0f", v), true
	}
	return "", false
}

// History returns the retained samples of a numeric key, oldest first.
func (d Data) History(key string) []float64 {
	return d.Series[key]
}

// Registry aggregates sources.
type Registry struct {
	mu      sync.Mutex
	sources []Source
	keys    map[string]string
	history map[string][]float64
	depth   int
}

// NewRegistry creates a registry retaining depth samples per key.
func NewRegistry(depth int) *Registry {
	if depth <= 0 {
		depth = DefaultHistory
	}
	return &Registry{
		keys:    make(map[string]string),
		history: make(map[string][]float64),
		depth:   depth,
	}
}

// Register adds a source. Keys must be unique across sources.
func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range s.Keys() {
		if owner, ok := r.keys[k]; ok {
			return fmt.Errorf("key %q from %s already provided by %s", k, s.Name(), owner)
		}
	}
	for _, k := range s.Keys() {
		r.keys[k] = s.Name()
	}
	r.sources = append(r.sources, s)
	return nil
}

// Has reports whether some registered source provides key.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keys[key]
	return ok
}

// Keys returns every resolvable key, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.keys))
}

// Sample reads every source. A failing source contributes nothing to the
// snapshot; its error is joined into the returned error so the caller can
// log it.
func (r *Registry) Sample(ctx context.Context, now time.Time) (Data, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := Data{
		Time:    now,
		Values:  make(map[string]float64),
		Strings: make(map[string]string),
		Series:  make(map[string][]float64),
	}

	var errs []error
	for _, s := range r.sources {
		rd, err := s.Sample(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		maps.Copy(d.Values, rd.Values)
		maps.Copy(d.Strings, rd.Strings)
	}

	for k, v := range d.Values {
		h := append(r.history[k], v)
		if len(h) > r.depth {
			h = h[len(h)-r.depth:]
		}
		r.history[k] = h
	}
	for k, h := range r.history {
		d.Series[k] = slices.Clone(h)
	}

	return d, errors.Join(errs...)
}

// Static is a source with fixed readings.
type Static struct {
	name    string
	values  map[string]float64
	strings map[string]string
}

// NewStatic creates a fixed source.
func NewStatic(name string, values map[string]float64, strings map[string]string) *Static {
	return &Static{name: name, values: values, strings: strings}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Keys() []string {
	keys := slices.Collect(maps.Keys(s.values))
	keys = append(keys, slices.Collect(maps.Keys(s.strings))...)
	slices.Sort(keys)
	return keys
}

func (s *Static) Sample(ctx context.Context, now time.Time) (Reading, error) {
	return Reading{Values: maps.Clone(s.values), Strings: maps.Clone(s.strings)}, nil
}
