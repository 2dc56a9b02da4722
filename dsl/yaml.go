package dsl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"
)

// decodeYAMLDocuments splits data on "---" document boundaries and returns
// the root content node of each document (unwrapping yaml.v3's
// DocumentNode wrapper), preserving the order documents appear in.
func decodeYAMLDocuments(data []byte) ([]*yaml.Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var nodes []*yaml.Node
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("dsl: parse yaml: %w", err)
		}
		root := &doc
		if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
			root = doc.Content[0]
		}
		nodes = append(nodes, root)
	}
	return nodes, nil
}

// nodeToMap decodes a YAML node into its generic map[string]any form,
// matching the shape encoding/json would produce so the same schema
// validator and struct-decode helpers work for both YAML and JSON input.
func nodeToMap(n *yaml.Node) (map[string]any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("dsl: decode document: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dsl: document must be a mapping, got %T", v)
	}
	return m, nil
}

// envPattern matches "${env.NAME}" placeholders in scalar string leaves.
var envPattern = regexp.MustCompile(`\$\{env\.([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvNode replaces "${env.NAME}" occurrences in every scalar leaf
// of n with env[NAME], using an explicit map rather than the process
// environment. A placeholder whose name is absent from env is left as-is.
func substituteEnvNode(n *yaml.Node, env map[string]string) {
	if n == nil {
		return
	}
	if n.Kind == yaml.ScalarNode {
		n.Value = envPattern.ReplaceAllStringFunc(n.Value, func(match string) string {
			sub := envPattern.FindStringSubmatch(match)
			if val, ok := env[sub[1]]; ok {
				return val
			}
			return match
		})
		return
	}
	for _, c := range n.Content {
		substituteEnvNode(c, env)
	}
}
