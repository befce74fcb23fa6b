// Package schema compiles and evaluates a small JSON-Schema subset: type,
// enum, const, required, properties, additionalProperties, items,
// minItems/maxItems, uniqueItems, minLength/maxLength, pattern,
// minimum/maximum, multipleOf, format, oneOf+discriminator, default.
//
// internal/gateway/validation.go hand-rolls an equivalent
// type/enum/required/properties/min-max/pattern/items validator directly
// against map[string]any schema documents with no third-party JSON-Schema
// library; this package follows the same approach and extends it with
// default-fill, oneOf+discriminator, const, multipleOf, uniqueItems, format,
// and additionalProperties:false. See DESIGN.md for why no ecosystem
// JSON-Schema library is used instead.
package schema

import (
	"encoding/json"
	"fmt"
)

// Error is one validation failure, reported with a JSON-Pointer-ish path
// prefixed with "$." the way the gateway validator does.
type Error struct {
	Path    string
	Message string
}

func (e Error) String() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Mode controls whether extra object properties are rejected under
// additionalProperties:false. Input validation always fills defaults;
// output validation only enforces additionalProperties in Strict mode.
type Mode int

const (
	ModeInput Mode = iota
	ModeOutputLenient
	ModeOutputStrict
)

// Schema is a compiled validator node tree. Compiling once at spectrum-load
// time and caching the result avoids re-parsing the raw JSON document on
// every Pulse.
type Schema struct {
	raw json.RawMessage
	doc map[string]any
}

// Compile parses and compiles a raw JSON-Schema document. It never fails on
// unknown keywords — the supported subset is deliberately small, and
// unknown keywords are ignored rather than rejected so authors can carry
// forward editor/documentation hints.
func Compile(raw json.RawMessage) (*Schema, error) {
	if len(raw) == 0 {
		return &Schema{raw: raw, doc: map[string]any{}}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{raw: raw, doc: doc}, nil
}

// Raw returns the original document this Schema was compiled from.
func (s *Schema) Raw() json.RawMessage { return s.raw }

// StreamField returns the x-uv-stream marker's value at the schema's top
// level, and whether it was present.
func (s *Schema) StreamField() (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.doc["x-uv-stream"]
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

// Validate checks value against the compiled schema and returns every
// violation found; an empty slice means valid.
func (s *Schema) Validate(value any, mode Mode) []Error {
	if s == nil || len(s.doc) == 0 {
		return nil
	}
	return validateNode("$", s.doc, value, mode)
}

// FillDefaults returns a copy of value with any missing object field whose
// schema declares "default" filled in, applied recursively. Unknown/absent
// fields without a default are left untouched. Validating a default-filled
// value against the same schema must never introduce new errors.
func (s *Schema) FillDefaults(value any) any {
	if s == nil || len(s.doc) == 0 {
		return value
	}
	return fillDefaults(s.doc, value)
}
