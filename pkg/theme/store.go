package theme

import (
	"embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
)

// DefaultID is the embedded theme used when nothing else loads.
const DefaultID = "default"

//go:embed builtin/*.toml
var builtin embed.FS

// document is the TOML shape of a theme file.
type document struct {
	Name        string      `toml:"name"`
	Description string      `toml:"description"`
	Palette     paletteSpec `toml:"palette"`
	Widgets     []Widget    `toml:"widgets"`
}

// Store holds every loaded theme by id.
type Store struct {
	mu        sync.RWMutex
	themes    map[string]*Theme
	fallback  *Theme // embedded default, never replaced
	catalog   Catalog
	validator *schema.Validator
}

// NewStore creates a store holding the built-in themes. Built-ins are
// validated against catalog too; one that fails is a programming error.
func NewStore(catalog Catalog, validator *schema.Validator) (*Store, error) {
	if validator == nil {
		validator = schema.NewValidator()
	}
	s := &Store{
		themes:    make(map[string]*Theme),
		catalog:   catalog,
		validator: validator,
	}

	entries, err := builtin.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name := path.Join("builtin", e.Name())
		raw, err := builtin.ReadFile(name)
		if err != nil {
			return nil, err
		}
		t, err := s.parse(name, raw)
		if err != nil {
			return nil, err
		}
		s.themes[t.ID] = t
	}
	def, ok := s.themes[DefaultID]
	if !ok {
		return nil, fmt.Errorf("built-in %q theme missing", DefaultID)
	}
	s.fallback = def
	return s, nil
}

// Load parses and validates the theme at path and registers it under
// its file stem. A failed load leaves the store unchanged. A file may
// replace a built-in id, including DefaultID; Default still returns the
// embedded theme.
func (s *Store) Load(path string) (*Theme, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	t, err := s.parse(path, raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev, replaced := s.themes[t.ID]
	s.themes[t.ID] = t
	s.mu.Unlock()

	if replaced && prev.Builtin() {
		log.Warn().Str("theme", t.ID).Str("path", path).Msg("Theme file replaces the built-in theme of the same id")
	}

	log.Info().Str("theme", t.ID).Str("path", path).Int("widgets", len(t.Widgets)).Msg("Theme loaded")
	return t, nil
}

// LoadOrDefault loads path and falls back to the embedded default on any
// failure. The returned error is the load failure, for the caller to log
// or surface; the theme is always usable.
func (s *Store) LoadOrDefault(path string) (*Theme, error) {
	if path == "" {
		return s.Default(), nil
	}
	t, err := s.Load(path)
	if err != nil {
		return s.Default(), err
	}
	return t, nil
}

// LoadDir loads every *.toml file in dir. Files that fail are skipped and
// their errors joined.
func (s *Store) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		if _, err := s.Load(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) parse(path string, raw []byte) (*Theme, error) {
	var generic map[string]any
	if _, err := toml.Decode(string(raw), &generic); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := s.validator.Validate(schema.ThemeSchema, generic); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	var doc document
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	pal, err := doc.Palette.build()
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	for i, w := range doc.Widgets {
		if err := w.check(s.catalog); err != nil {
			return nil, &Error{Path: path, Err: fmt.Errorf("widget %d: %w", i, err)}
		}
	}

	return &Theme{
		ID:          strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Name:        doc.Name,
		Description: doc.Description,
		Palette:     pal,
		Widgets:     slices.Clone(doc.Widgets),
		Path:        path,
	}, nil
}

// Get returns the theme registered as id.
func (s *Store) Get(id string) (*Theme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.themes[id]
	return t, ok
}

// Has reports whether id is registered.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Default returns the embedded default theme.
func (s *Store) Default() *Theme {
	return s.fallback
}

// List returns every theme id, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.themes))
}
