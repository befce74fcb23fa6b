package spectrum

import "encoding/json"

// DisplayDocument returns a wavelength's display hint document verbatim, or
// nil when the wavelength declares none. There is no canonical schema for
// this document: the runtime passes it through untouched for clients to
// interpret, the same way the wavelength's own input/output schemas are
// opaque to anything but the schema package.
func DisplayDocument(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
