// Package domain holds the core value types shared by every UV component:
// prism identity, spectrum descriptions, wire frames, and the error kinds
// that terminate a correlation.
package domain

import (
	"fmt"
	"strings"
)

// PrismId is the (namespace, name) tuple that identifies a prism across the
// registry, the wire protocol, and refraction declarations.
type PrismId struct {
	Namespace string
	Name      string
}

// String returns the canonical "namespace:name" textual form.
func (id PrismId) String() string {
	return id.Namespace + ":" + id.Name
}

// ParsePrismId parses the canonical "namespace:name" form produced by
// String. It is the inverse used whenever an ID crosses a text boundary:
// spectrum.refractions[].target_prism_id, CLI arguments, wavefront.prism.
func ParsePrismId(s string) (PrismId, error) {
	ns, name, ok := strings.Cut(s, ":")
	if !ok || ns == "" || name == "" {
		return PrismId{}, fmt.Errorf("invalid prism id %q: expected \"namespace:name\"", s)
	}
	return PrismId{Namespace: ns, Name: name}, nil
}

// Frequency names an operation on a prism.
type Frequency string

// RefractionName names a declared call from one prism to another.
type RefractionName string
