package dsl

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mastra-run/mastra-go/resource"
)

// defaultDirPattern is used by ScanDirectory and a MastraPod's directory
// include when no pattern is given.
const defaultDirPattern = "*.yaml"

// ParseFile reads path and parses its contents with ParseContent.
func (l *Loader) ParseFile(path string) ([]*resource.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dsl: read %s: %w", path, err)
	}
	return l.ParseContent(data)
}

// ScanDirectory parses every file under root matching pattern (a
// filepath.Match glob against the base name; defaults to "*.yaml") and
// returns the concatenation of their resources.
func (l *Loader) ScanDirectory(root, pattern string) ([]*resource.Resource, error) {
	if pattern == "" {
		pattern = defaultDirPattern
	}
	var out []*resource.Resource
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		rs, err := l.ParseFile(path)
		if err != nil {
			return fmt.Errorf("dsl: %s: %w", path, err)
		}
		out = append(out, rs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pod is the result of parsing a MastraPod: its config block plus every
// resource it includes, inline or via file/directory/$ref entries.
type Pod struct {
	Config    map[string]any
	Resources []*resource.Resource
}

// ParseMastraPod loads the MastraPod manifest at path: a document of form
// {kind: MastraPod, config: {...}, resources: [...]}, where each resources
// entry is an inline resource, {file: relPath}, {directory: relPath,
// pattern?: glob}, or {$ref: "<Kind>/<name>"} pointing at another entry in
// this same pod. Relative paths resolve against path's directory. A file
// that re-includes an ancestor in its own inclusion chain fails with
// CircularReferenceError.
func (l *Loader) ParseMastraPod(path string) (*Pod, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("dsl: resolve %s: %w", path, err)
	}
	return l.parseMastraPod(abs, nil)
}

func (l *Loader) parseMastraPod(path string, stack []string) (*Pod, error) {
	if err := checkCycle(path, stack); err != nil {
		return nil, err
	}
	stack = append(stack, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dsl: read pod %s: %w", path, err)
	}
	nodes, err := decodeYAMLDocuments(data)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("dsl: %s: empty document", path)
	}
	substituteEnvNode(nodes[0], l.env)
	raw, err := nodeToMap(nodes[0])
	if err != nil {
		return nil, err
	}
	if kind, _ := raw["kind"].(string); kind != "MastraPod" {
		return nil, fmt.Errorf("dsl: %s: expected kind MastraPod, got %q", path, kind)
	}

	config, _ := raw["config"].(map[string]any)
	entries, _ := raw["resources"].([]any)
	dir := filepath.Dir(path)

	var rawResources []map[string]any
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dsl: %s: resource entry must be a mapping", path)
		}
		switch {
		case entry["file"] != nil:
			rel, _ := entry["file"].(string)
			incPath, err := filepath.Abs(filepath.Join(dir, rel))
			if err != nil {
				return nil, err
			}
			docs, err := l.loadRawFile(incPath, stack)
			if err != nil {
				return nil, err
			}
			rawResources = append(rawResources, docs...)
		case entry["directory"] != nil:
			rel, _ := entry["directory"].(string)
			pattern, _ := entry["pattern"].(string)
			if pattern == "" {
				pattern = defaultDirPattern
			}
			docs, err := l.loadRawDirectory(filepath.Join(dir, rel), pattern, stack)
			if err != nil {
				return nil, err
			}
			rawResources = append(rawResources, docs...)
		default:
			// Either an inline resource or a {$ref: "<Kind>/<name>"}
			// placeholder; both are resolved uniformly by resolveAll below
			// against the pod-wide catalog.
			rawResources = append(rawResources, entry)
		}
	}

	resolved, err := resolveAll(rawResources)
	if err != nil {
		return nil, err
	}

	pod := &Pod{Config: config, Resources: make([]*resource.Resource, 0, len(resolved))}
	for _, m := range resolved {
		res, err := l.materialize(m)
		if err != nil {
			return nil, err
		}
		pod.Resources = append(pod.Resources, res)
	}
	return pod, nil
}

func (l *Loader) loadRawFile(path string, stack []string) ([]map[string]any, error) {
	if err := checkCycle(path, stack); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dsl: read %s: %w", path, err)
	}
	nodes, err := decodeYAMLDocuments(data)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		substituteEnvNode(n, l.env)
		m, err := nodeToMap(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (l *Loader) loadRawDirectory(root, pattern string, stack []string) ([]map[string]any, error) {
	var out []map[string]any
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		docs, err := l.loadRawFile(abs, stack)
		if err != nil {
			return err
		}
		out = append(out, docs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkCycle(path string, stack []string) error {
	for _, s := range stack {
		if s == path {
			return &CircularReferenceError{Path: path, Stack: append([]string(nil), stack...)}
		}
	}
	return nil
}

