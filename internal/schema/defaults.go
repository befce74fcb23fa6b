package schema

// fillDefaults recursively applies each property's "default" to an object
// value when the field is absent.
func fillDefaults(node map[string]any, value any) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}

	props, _ := node["properties"].(map[string]any)
	if props == nil {
		return obj
	}

	filled := make(map[string]any, len(obj))
	for k, v := range obj {
		filled[k] = v
	}

	for name, rawSchema := range props {
		fieldSchema, ok := rawSchema.(map[string]any)
		if !ok {
			continue
		}
		if existing, present := filled[name]; present {
			filled[name] = fillDefaults(fieldSchema, existing)
			continue
		}
		if def, hasDefault := fieldSchema["default"]; hasDefault {
			filled[name] = def
		}
	}

	return filled
}
