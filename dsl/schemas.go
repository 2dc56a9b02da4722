package dsl

// builtinSchemas returns the JSON-schema documents used to validate the six
// kinds the control plane knows natively, keyed by kind name the same way a
// custom resource definition is keyed by "<group>/<kind>" — here simply the
// bare kind string, since built-ins have no group.
func builtinSchemas() map[string]map[string]any {
	return map[string]map[string]any{
		"Tool": {
			"type":     "object",
			"required": []any{"id", "execute"},
			"properties": map[string]any{
				"id":          map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"execute":     map[string]any{"type": "string"},
				"parameters":  map[string]any{"type": "object"},
			},
		},
		"Agent": {
			"type":     "object",
			"required": []any{"instructions", "model"},
			"properties": map[string]any{
				"instructions": map[string]any{"type": "string"},
				"model":        map[string]any{"type": "object"},
				"tools":        map[string]any{"type": "object"},
				"memory":       map[string]any{"type": "object"},
				"voice":        map[string]any{"type": "object"},
			},
		},
		"Workflow": {
			"type":     "object",
			"required": []any{"initialStep", "steps"},
			"properties": map[string]any{
				"initialStep": map[string]any{"type": "string"},
				"steps":       map[string]any{"type": "array", "minItems": 1},
			},
		},
		"Network": {
			"type":     "object",
			"required": []any{"agents", "router"},
			"properties": map[string]any{
				"instructions": map[string]any{"type": "string"},
				"agents":       map[string]any{"type": "array", "minItems": 1},
				"router":       map[string]any{"type": "object"},
				"state":        map[string]any{"type": "object"},
			},
		},
		"LLM": {
			"type":     "object",
			"required": []any{"provider", "model"},
			"properties": map[string]any{
				"provider":    map[string]any{"type": "string"},
				"model":       map[string]any{"type": "string"},
				"apiKeyEnv":   map[string]any{"type": "string"},
				"baseURL":     map[string]any{"type": "string"},
				"maxTokens":   map[string]any{"type": "integer"},
				"temperature": map[string]any{"type": "number"},
			},
		},
		"CustomResourceDefinition": {
			"type":     "object",
			"required": []any{"group", "names", "scope", "validation"},
			"properties": map[string]any{
				"group": map[string]any{"type": "string"},
				"names": map[string]any{
					"type":     "object",
					"required": []any{"kind", "plural"},
				},
				"scope":      map[string]any{"type": "string", "enum": []any{"Namespaced", "Cluster"}},
				"validation": map[string]any{"type": "object"},
			},
		},
	}
}
