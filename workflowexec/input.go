package workflowexec

import (
	"fmt"
	"regexp"
	"strings"
)

var templatePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// buildStepInput resolves every (key, source) pair in step.Input: a string
// starting with "$" substitutes the named variable, a string containing a
// "{{ path }}" template evaluates that path against templateCtx, anything
// else is used as a literal.
func buildStepInput(input map[string]any, variables map[string]any, templateCtx map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = resolveInputValue(v, variables, templateCtx)
	}
	return out
}

func resolveInputValue(v any, variables map[string]any, templateCtx map[string]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if strings.HasPrefix(s, "$") {
		name := strings.TrimPrefix(s, "$")
		return variables[name]
	}
	if templatePattern.MatchString(s) {
		return renderTemplate(s, templateCtx)
	}
	return s
}

// renderTemplate replaces every "{{ path }}" occurrence in s with the
// stringified value resolved from ctx by dot-separated path. A path that
// resolves to nothing is replaced with an empty string.
func renderTemplate(s string, ctx map[string]any) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := templatePattern.FindStringSubmatch(match)
		value := resolvePath(ctx, groups[1])
		if value == nil {
			return ""
		}
		if str, ok := value.(string); ok {
			return str
		}
		return fmt.Sprint(value)
	})
}

// resolvePath walks a dot-separated path through nested maps, e.g.
// "workflow.input.topic" or "step.fetch.result".
func resolvePath(ctx map[string]any, path string) any {
	segments := strings.Split(path, ".")
	var current any = ctx
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return current
}

// extractPath navigates a decoded result (maps and slices) by dot-separated
// path, e.g. "choices.0.message.content". An empty path returns value
// unchanged.
func extractPath(value any, path string) any {
	if path == "" {
		return value
	}
	current := value
	for _, seg := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			current = v[seg]
		case []any:
			idx := indexOf(seg)
			if idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}
	return current
}

func indexOf(segment string) int {
	n := 0
	for _, r := range segment {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	if segment == "" {
		return -1
	}
	return n
}

// extractText pulls a display string out of a step's raw result, trying in
// order: a plain string, {"text": ...}, {"content": ...}, and
// {"choices": [{"message": {"content": ...}}]} before falling back to a
// generic stringification.
func extractText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			return s
		}
		if s, ok := t["content"].(string); ok {
			return s
		}
		if choices, ok := t["choices"].([]any); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]any); ok {
				if msg, ok := choice["message"].(map[string]any); ok {
					if s, ok := msg["content"].(string); ok {
						return s
					}
				}
			}
		}
	}
	return fmt.Sprint(v)
}
