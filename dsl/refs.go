package dsl

import "fmt"

// maxRefDepth bounds recursive $ref resolution as a defensive guard; a
// well-formed batch never approaches it.
const maxRefDepth = 32

// catalogOf indexes raws by "<Kind>/<name>" for $ref resolution.
func catalogOf(raws []map[string]any) map[string]map[string]any {
	catalog := make(map[string]map[string]any, len(raws))
	for _, m := range raws {
		kind, _ := m["kind"].(string)
		meta, _ := m["metadata"].(map[string]any)
		name, _ := meta["name"].(string)
		if kind != "" && name != "" {
			catalog[kind+"/"+name] = m
		}
	}
	return catalog
}

// resolveAll replaces every {"$ref": "<Kind>/<name>"} value across raws with
// its referenced document from the same batch.
func resolveAll(raws []map[string]any) ([]map[string]any, error) {
	catalog := catalogOf(raws)
	out := make([]map[string]any, 0, len(raws))
	for _, m := range raws {
		rv, err := resolveRefs(m, catalog, 0)
		if err != nil {
			return nil, err
		}
		mm, ok := rv.(map[string]any)
		if !ok {
			return nil, &DanglingReferenceError{Ref: "<root>"}
		}
		out = append(out, mm)
	}
	return out, nil
}

func resolveRefs(v any, catalog map[string]map[string]any, depth int) (any, error) {
	if depth > maxRefDepth {
		return nil, fmt.Errorf("dsl: $ref resolution exceeded depth %d, likely a cycle", maxRefDepth)
	}
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok && len(t) == 1 {
			target, ok := catalog[ref]
			if !ok {
				return nil, &DanglingReferenceError{Ref: ref}
			}
			return resolveRefs(target, catalog, depth+1)
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			rv, err := resolveRefs(val, catalog, depth)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			rv, err := resolveRefs(val, catalog, depth)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}
