package schema

import (
	"encoding/json"
	"testing"
)

func TestValidate_LedCommand(t *testing.T) {
	v := NewValidator()

	err := v.Validate(LedCommandSchema, map[string]any{
		"theme":     "breathing",
		"intensity": 3,
		"speed":     5,
	})
	if err != nil {
		t.Errorf("expected valid payload, got: %v", err)
	}

	err = v.Validate(LedCommandSchema, map[string]any{
		"theme":     float64(4),
		"intensity": float64(1),
		"speed":     float64(1),
	})
	if err != nil {
		t.Errorf("expected numeric theme to validate, got: %v", err)
	}
}

func TestValidate_LedOutOfRange(t *testing.T) {
	v := NewValidator()

	for _, payload := range []map[string]any{
		{"theme": 2, "intensity": 0, "speed": 3},
		{"theme": 2, "intensity": 3, "speed": 6},
		{"theme": 6, "intensity": 3, "speed": 3},
		{"theme": "strobe", "intensity": 3, "speed": 3},
	} {
		if err := v.Validate(LedCommandSchema, payload); err == nil {
			t.Errorf("expected validation error for %v", payload)
		}
	}
}

func TestValidate_UnknownProperty(t *testing.T) {
	v := NewValidator()

	err := v.Validate(LedCommandSchema, map[string]any{
		"theme":     1,
		"intensity": 1,
		"speed":     1,
		"color":     "red",
	})
	if err == nil {
		t.Error("expected validation error for unknown property")
	}
}

func TestValidate_LcdCommand(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(LcdCommandSchema, map[string]any{"orientation": "portrait"}); err != nil {
		t.Errorf("expected valid payload, got: %v", err)
	}
	if err := v.Validate(LcdCommandSchema, map[string]any{}); err == nil {
		t.Error("expected empty LCD command to fail")
	}
}

func TestValidate_ThemeDocument(t *testing.T) {
	v := NewValidator()

	// TOML decodes integers as int64
	doc := map[string]any{
		"name":    "test",
		"palette": "nord",
		"widgets": []map[string]any{
			{"type": "label", "x": int64(4), "y": int64(4), "label": "CPU"},
			{"type": "bar", "x": int64(4), "y": int64(20), "w": int64(100), "h": int64(8), "source": "cpu.percent"},
		},
	}
	if err := v.Validate(ThemeSchema, doc); err != nil {
		t.Errorf("expected valid theme, got: %v", err)
	}

	doc["palette"] = map[string]any{"primary": "#GG0000"}
	if err := v.Validate(ThemeSchema, doc); err == nil {
		t.Error("expected invalid colour to fail")
	}
}

func TestValidate_ThemeNegativeGeometry(t *testing.T) {
	v := NewValidator()

	err := v.Validate(ThemeSchema, map[string]any{
		"name":    "bad",
		"widgets": []any{map[string]any{"type": "rect", "x": -1, "y": 0}},
	})
	if err == nil {
		t.Error("expected validation error for negative x")
	}
}

func TestValidate_EmptySchema(t *testing.T) {
	v := NewValidator()

	// Empty schema means no validation
	err := v.Validate(json.RawMessage(`{}`), map[string]any{
		"anything": "goes",
	})
	if err != nil {
		t.Errorf("empty schema should skip validation, got: %v", err)
	}
}

func TestValidate_NilSchema(t *testing.T) {
	v := NewValidator()

	err := v.Validate(nil, map[string]any{
		"anything": "goes",
	})
	if err != nil {
		t.Errorf("nil schema should skip validation, got: %v", err)
	}
}

func TestValidate_CachesSchema(t *testing.T) {
	v := NewValidator()

	// First call compiles
	err := v.Validate(LcdCommandSchema, map[string]any{"theme": "default"})
	if err != nil {
		t.Fatal(err)
	}

	// Second call should use cache
	err = v.Validate(LcdCommandSchema, map[string]any{"theme": "nord"})
	if err != nil {
		t.Fatal(err)
	}

	v.mu.RLock()
	cacheSize := len(v.cache)
	v.mu.RUnlock()
	if cacheSize != 1 {
		t.Errorf("expected 1 cached schema, got %d", cacheSize)
	}
}
