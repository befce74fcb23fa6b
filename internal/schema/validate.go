package schema

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"time"
)

func validateNode(path string, node map[string]any, value any, mode Mode) []Error {
	var errs []Error

	if oneOf, ok := node["oneOf"].([]any); ok {
		errs = append(errs, validateOneOf(path, node, oneOf, value, mode)...)
		return errs
	}

	if t, ok := node["type"].(string); ok {
		if e := checkType(path, t, value); e != nil {
			return append(errs, *e)
		}
	}

	if constVal, ok := node["const"]; ok {
		if !deepEqual(constVal, value) {
			errs = append(errs, Error{path, fmt.Sprintf("value must equal const %v", constVal)})
		}
	}

	if enumRaw, ok := node["enum"].([]any); ok {
		if !enumContains(enumRaw, value) {
			errs = append(errs, Error{path, "value not in allowed enum values"})
		}
	}

	switch v := value.(type) {
	case string:
		errs = append(errs, validateString(path, node, v)...)
	case float64:
		errs = append(errs, validateNumber(path, node, v)...)
	case map[string]any:
		errs = append(errs, validateObject(path, node, v, mode)...)
	case []any:
		errs = append(errs, validateArray(path, node, v, mode)...)
	}

	return errs
}

// validateOneOf treats a oneOf+discriminator block as a tagged variant keyed
// by propertyName: it validates the value against only the branch whose
// discriminator const/enum matches the value's tag, instead of requiring
// exactly one of all branches to validate (the plain JSON-Schema oneOf
// semantics), which gives a far more specific error message. The matching
// branch is found by scanning the branches on every call; no switch is
// built ahead of time.
func validateOneOf(path string, node map[string]any, branches []any, value any, mode Mode) []Error {
	disc, _ := node["discriminator"].(map[string]any)
	propName, _ := disc["propertyName"].(string)

	obj, isObj := value.(map[string]any)
	if propName != "" && isObj {
		tag, _ := obj[propName].(string)
		for _, b := range branches {
			branch, ok := b.(map[string]any)
			if !ok {
				continue
			}
			props, _ := branch["properties"].(map[string]any)
			tagSchema, _ := props[propName].(map[string]any)
			if tagConst, ok := tagSchema["const"].(string); ok && tagConst == tag {
				return validateNode(path, branch, value, mode)
			}
			if tagEnum, ok := tagSchema["enum"].([]any); ok && enumContains(tagEnum, tag) {
				return validateNode(path, branch, value, mode)
			}
		}
		return []Error{{path, fmt.Sprintf("no oneOf branch matches discriminator %q=%q", propName, tag)}}
	}

	// No discriminator: fall back to plain oneOf — exactly one branch must
	// validate cleanly.
	matches := 0
	for _, b := range branches {
		branch, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if len(validateNode(path, branch, value, mode)) == 0 {
			matches++
		}
	}
	if matches != 1 {
		return []Error{{path, fmt.Sprintf("value matches %d oneOf branches, expected exactly 1", matches)}}
	}
	return nil
}

func checkType(path, expected string, value any) *Error {
	actual := jsonTypeOf(value)
	if expected == "integer" {
		if actual != "number" {
			return &Error{path, fmt.Sprintf("expected type integer, got %s", actual)}
		}
		f := value.(float64)
		if f != math.Trunc(f) {
			return &Error{path, "expected integer, got fractional number"}
		}
		return nil
	}
	if actual != expected {
		return &Error{path, fmt.Sprintf("expected type %s, got %s", expected, actual)}
	}
	return nil
}

func jsonTypeOf(value any) string {
	switch value.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		if deepEqual(e, value) {
			return true
		}
	}
	return false
}

func deepEqual(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func validateString(path string, node map[string]any, v string) []Error {
	var errs []Error
	if minLen, ok := numberOf(node["minLength"]); ok && len(v) < int(minLen) {
		errs = append(errs, Error{path, fmt.Sprintf("string length %d below minLength %d", len(v), int(minLen))})
	}
	if maxLen, ok := numberOf(node["maxLength"]); ok && len(v) > int(maxLen) {
		errs = append(errs, Error{path, fmt.Sprintf("string length %d exceeds maxLength %d", len(v), int(maxLen))})
	}
	if pattern, ok := node["pattern"].(string); ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			errs = append(errs, Error{path, fmt.Sprintf("invalid pattern %q: %v", pattern, err)})
		} else if !re.MatchString(v) {
			errs = append(errs, Error{path, fmt.Sprintf("value does not match pattern %q", pattern)})
		}
	}
	if format, ok := node["format"].(string); ok {
		if msg := checkFormat(format, v); msg != "" {
			errs = append(errs, Error{path, msg})
		}
	}
	return errs
}

func checkFormat(format, v string) string {
	switch format {
	case "email":
		if _, err := mail.ParseAddress(v); err != nil {
			return "value is not a valid email address"
		}
	case "uri":
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" {
			return "value is not a valid uri"
		}
	case "date":
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return "value is not a valid date (YYYY-MM-DD)"
		}
	case "date-time":
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return "value is not a valid date-time (RFC3339)"
		}
	case "password":
		// No structural constraint beyond being a string; format:password
		// is a display hint for clients, not a validation rule.
	}
	return ""
}

func validateNumber(path string, node map[string]any, v float64) []Error {
	var errs []Error
	if min, ok := numberOf(node["minimum"]); ok && v < min {
		errs = append(errs, Error{path, fmt.Sprintf("value %v below minimum %v", v, min)})
	}
	if max, ok := numberOf(node["maximum"]); ok && v > max {
		errs = append(errs, Error{path, fmt.Sprintf("value %v exceeds maximum %v", v, max)})
	}
	if mult, ok := numberOf(node["multipleOf"]); ok && mult != 0 {
		q := v / mult
		if math.Abs(q-math.Round(q)) > 1e-9 {
			errs = append(errs, Error{path, fmt.Sprintf("value %v is not a multiple of %v", v, mult)})
		}
	}
	return errs
}

func validateObject(path string, node map[string]any, obj map[string]any, mode Mode) []Error {
	var errs []Error

	if required, ok := node["required"].([]any); ok {
		for _, r := range required {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := obj[name]; !present {
				errs = append(errs, Error{path, fmt.Sprintf("missing required field %q", name)})
			}
		}
	}

	props, _ := node["properties"].(map[string]any)
	for name, fieldVal := range obj {
		fieldSchema, declared := props[name].(map[string]any)
		if !declared {
			if addl, ok := node["additionalProperties"].(bool); ok && !addl {
				if mode == ModeOutputStrict || mode == ModeInput {
					errs = append(errs, Error{path, fmt.Sprintf("unexpected field %q (additionalProperties: false)", name)})
				}
			}
			continue
		}
		errs = append(errs, validateNode(path+"."+name, fieldSchema, fieldVal, mode)...)
	}

	return errs
}

func validateArray(path string, node map[string]any, arr []any, mode Mode) []Error {
	var errs []Error
	if minItems, ok := numberOf(node["minItems"]); ok && len(arr) < int(minItems) {
		errs = append(errs, Error{path, fmt.Sprintf("array length %d below minItems %d", len(arr), int(minItems))})
	}
	if maxItems, ok := numberOf(node["maxItems"]); ok && len(arr) > int(maxItems) {
		errs = append(errs, Error{path, fmt.Sprintf("array length %d exceeds maxItems %d", len(arr), int(maxItems))})
	}
	if unique, ok := node["uniqueItems"].(bool); ok && unique {
		seen := make(map[string]bool, len(arr))
		for _, item := range arr {
			key := fmt.Sprintf("%v", item)
			if seen[key] {
				errs = append(errs, Error{path, "array items must be unique"})
				break
			}
			seen[key] = true
		}
	}
	if itemSchema, ok := node["items"].(map[string]any); ok {
		for i, item := range arr {
			errs = append(errs, validateNode(fmt.Sprintf("%s[%d]", path, i), itemSchema, item, mode)...)
		}
	}
	return errs
}

func numberOf(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
