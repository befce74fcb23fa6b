package schema

import (
	"encoding/json"
	"testing"
)

func mustCompile(t *testing.T, raw string) *Schema {
	t.Helper()
	s, err := Compile(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return s
}

func TestValidateRequiredField(t *testing.T) {
	s := mustCompile(t, `{"type":"object","required":["command"]}`)
	errs := s.Validate(map[string]any{}, ModeInput)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
}

func TestValidateEnum(t *testing.T) {
	s := mustCompile(t, `{"type":"string","enum":["a","b"]}`)
	if errs := s.Validate("a", ModeInput); len(errs) != 0 {
		t.Fatalf("expected valid, got %v", errs)
	}
	if errs := s.Validate("c", ModeInput); len(errs) == 0 {
		t.Fatal("expected enum violation")
	}
}

func TestValidateIntegerType(t *testing.T) {
	s := mustCompile(t, `{"type":"integer"}`)
	if errs := s.Validate(float64(3), ModeInput); len(errs) != 0 {
		t.Fatalf("expected valid integer, got %v", errs)
	}
	if errs := s.Validate(float64(3.5), ModeInput); len(errs) == 0 {
		t.Fatal("expected fractional number to fail integer check")
	}
}

func TestValidateAdditionalPropertiesFalse(t *testing.T) {
	s := mustCompile(t, `{"type":"object","properties":{"a":{"type":"string"}},"additionalProperties":false}`)
	errs := s.Validate(map[string]any{"a": "x", "b": "y"}, ModeInput)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for unexpected field, got %v", errs)
	}
}

func TestValidateOneOfDiscriminator(t *testing.T) {
	raw := `{
		"oneOf": [
			{"properties": {"kind": {"const": "a"}, "x": {"type": "string"}}},
			{"properties": {"kind": {"const": "b"}, "y": {"type": "number"}}}
		],
		"discriminator": {"propertyName": "kind"}
	}`
	s := mustCompile(t, raw)
	if errs := s.Validate(map[string]any{"kind": "a", "x": "hi"}, ModeInput); len(errs) != 0 {
		t.Fatalf("expected valid branch a, got %v", errs)
	}
	if errs := s.Validate(map[string]any{"kind": "b", "y": float64(1)}, ModeInput); len(errs) != 0 {
		t.Fatalf("expected valid branch b, got %v", errs)
	}
	if errs := s.Validate(map[string]any{"kind": "c"}, ModeInput); len(errs) == 0 {
		t.Fatal("expected no branch to match discriminator c")
	}
}

func TestFillDefaultsDoesNotIntroduceErrors(t *testing.T) {
	raw := `{"type":"object","properties":{"level":{"type":"string","default":"info"}}}`
	s := mustCompile(t, raw)
	input := map[string]any{}
	filled := s.FillDefaults(input)
	if errs := s.Validate(filled, ModeInput); len(errs) != 0 {
		t.Fatalf("default-filled value should validate cleanly: %v", errs)
	}
	m := filled.(map[string]any)
	if m["level"] != "info" {
		t.Fatalf("expected default applied, got %v", m["level"])
	}
}

func TestCacheDeduplicatesIdenticalSchemas(t *testing.T) {
	c := NewCache(4)
	raw := json.RawMessage(`{"type":"string"}`)
	a, err := c.CompileCached(raw)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.CompileCached(raw)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected identical schema documents to share one compiled Schema")
	}
}
