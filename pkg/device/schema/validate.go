package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var builtin embed.FS

// Built-in schema documents.
var (
	ThemeSchema      = mustRead("schemas/theme.json")
	LedCommandSchema = mustRead("schemas/led_command.json")
	LcdCommandSchema = mustRead("schemas/lcd_command.json")
)

func mustRead(name string) json.RawMessage {
	b, err := builtin.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}

// Validator validates decoded documents against JSON Schema documents.
// Compiled schemas are cached by their raw bytes.
type Validator struct {
	cache sync.Map // string -> *jsonschema.Schema
}

// NewValidator returns a Validator with the built-in schemas compiled.
func NewValidator() *Validator {
	v := &Validator{}
	for _, doc := range []json.RawMessage{ThemeSchema, LedCommandSchema, LcdCommandSchema} {
		if _, err := v.compile(doc); err != nil {
			panic(fmt.Sprintf("built-in schema: %v", err))
		}
	}
	return v
}

// Validate checks payload against schemaDoc. An empty schema accepts
// anything. Payloads that did not come from encoding/json (TOML tables,
// structs) are normalised through a JSON round trip first.
func (v *Validator) Validate(schemaDoc json.RawMessage, payload any) error {
	switch string(bytes.TrimSpace(schemaDoc)) {
	case "", "{}", "null":
		return nil
	}

	compiled, err := v.compile(schemaDoc)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	inst, err := normalise(payload)
	if err != nil {
		return err
	}
	return compiled.Validate(inst)
}

func normalise(payload any) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return inst, nil
}

func (v *Validator) compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)
	if s, ok := v.cache.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDoc))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, err
	}

	// Two goroutines may compile the same document; either result is fine.
	actual, _ := v.cache.LoadOrStore(key, compiled)
	return actual.(*jsonschema.Schema), nil
}
