package refraction

import (
	"fmt"

	"github.com/ultraviolet/uv/internal/domain"
)

// buildCalleeInput applies a refraction's transpose mapping, keyed by the
// callee-side field name, against the caller's own wavefront input. A
// source field marked optional with a trailing "?" may be absent from
// callerInput; any other missing source field is TransposeMissing.
func buildCalleeInput(transpose map[string]string, callerInput any) (map[string]any, error) {
	callerMap, _ := callerInput.(map[string]any)
	out := make(map[string]any, len(transpose))
	for calleeField, source := range transpose {
		base, optional := domain.IsOptionalBinding(source)
		value, present := callerMap[base]
		if !present {
			if optional {
				continue
			}
			return nil, fmt.Errorf("transpose %q: caller field %q is missing", calleeField, base)
		}
		out[calleeField] = value
	}
	return out, nil
}

// applyReflection maps one callee photon value into the caller-visible
// photon a refraction call reports, using the same optional-suffix
// convention as transpose. Returns ok=false when a required source field is
// absent, in which case the photon should be dropped rather than forwarded
// half-built.
func applyReflection(reflection map[string]string, calleeValue map[string]any) (out map[string]any, ok bool) {
	if len(reflection) == 0 {
		return calleeValue, true
	}
	out = make(map[string]any, len(reflection))
	for newField, source := range reflection {
		base, optional := domain.IsOptionalBinding(source)
		value, present := calleeValue[base]
		if !present {
			if optional {
				continue
			}
			return nil, false
		}
		out[newField] = value
	}
	return out, true
}
