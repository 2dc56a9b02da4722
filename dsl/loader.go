// Package dsl loads YAML manifests into typed resource.Resource values:
// multi-document parsing, built-in and custom-resource schema validation,
// "${env.NAME}" substitution, and cross-document "$ref" resolution.
package dsl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mastra-run/mastra-go/crd"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/schema"
)

// Loader parses YAML documents into resource.Resource values, validating
// each against either a built-in kind schema or a registered custom
// resource definition.
type Loader struct {
	validator *schema.Validator
	crds      *crd.Registry
	env       map[string]string
}

// New constructs a Loader. validator is shared with the CRD registry (crds
// registers "<group>/<kind>" schemas into the same instance this Loader
// registers its built-in kind schemas into), so a single validator serves
// both lookups. crds may be nil if custom resources are not supported by
// the caller. env supplies values for "${env.NAME}" substitution; a nil map
// means no substitutions ever match, so every placeholder is left as-is.
func New(validator *schema.Validator, crds *crd.Registry, env map[string]string) *Loader {
	for kind, doc := range builtinSchemas() {
		// Built-in schemas are static and well-formed; registration cannot
		// fail short of a programming error.
		if err := validator.Register(kind, doc); err != nil {
			panic(fmt.Sprintf("dsl: built-in schema %q failed to compile: %v", kind, err))
		}
	}
	return &Loader{validator: validator, crds: crds, env: env}
}

// ParseContent parses one or more "---"-separated YAML documents into
// resources, resolving "${env.NAME}" substitutions and "$ref" references
// within the batch before validating and decoding each document.
func (l *Loader) ParseContent(data []byte) ([]*resource.Resource, error) {
	nodes, err := decodeYAMLDocuments(data)
	if err != nil {
		return nil, err
	}

	raws := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		substituteEnvNode(n, l.env)
		m, err := nodeToMap(n)
		if err != nil {
			return nil, err
		}
		raws = append(raws, m)
	}

	resolved, err := resolveAll(raws)
	if err != nil {
		return nil, err
	}

	out := make([]*resource.Resource, 0, len(resolved))
	for _, m := range resolved {
		res, err := l.materialize(m)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func builtinKinds() map[string]bool {
	return map[string]bool{
		"Tool": true, "Agent": true, "Workflow": true,
		"Network": true, "LLM": true, "CustomResourceDefinition": true,
	}
}

func isBuiltinKind(kind string) bool { return builtinKinds()[kind] }

func nameOf(m map[string]any) string {
	meta, _ := m["metadata"].(map[string]any)
	name, _ := meta["name"].(string)
	return name
}

func namespaceOf(m map[string]any) string {
	meta, _ := m["metadata"].(map[string]any)
	ns, _ := meta["namespace"].(string)
	return ns
}

func groupOf(apiVersion string) string {
	if idx := strings.LastIndex(apiVersion, "/"); idx >= 0 {
		return apiVersion[:idx]
	}
	return ""
}

// materialize validates m's spec against the appropriate schema and decodes
// it into a typed resource.Resource.
func (l *Loader) materialize(m map[string]any) (*resource.Resource, error) {
	kind, _ := m["kind"].(string)
	if kind == "" {
		return nil, fmt.Errorf("dsl: document missing kind")
	}
	apiVersion, _ := m["apiVersion"].(string)
	specRaw := m["spec"]

	if isBuiltinKind(kind) {
		if err := l.validateAgainst(kind, specRaw); err != nil {
			return nil, &ValidationFailedError{Kind: kind, Name: nameOf(m), Err: err}
		}
	} else {
		if l.crds == nil {
			return nil, &UnknownKindError{Kind: kind}
		}
		group := groupOf(apiVersion)
		doc, err := schema.DecodeJSON(specRaw)
		if err != nil {
			return nil, err
		}
		if err := l.crds.Validate(group, kind, doc); err != nil {
			var unknown *crd.UnknownKindError
			if errors.As(err, &unknown) {
				return nil, &UnknownKindError{Kind: kind}
			}
			return nil, &ValidationFailedError{Kind: kind, Name: nameOf(m), Err: err}
		}
		if ns := namespaceOf(m); ns != "" {
			if err := l.crds.ValidateScope(group, kind, ns); err != nil {
				return nil, &ValidationFailedError{Kind: kind, Name: nameOf(m), Err: err}
			}
		}
	}

	spec, err := decodeSpec(kind, specRaw)
	if err != nil {
		return nil, &ValidationFailedError{Kind: kind, Name: nameOf(m), Err: err}
	}

	var meta resource.Metadata
	if metaRaw, ok := m["metadata"]; ok {
		data, err := json.Marshal(metaRaw)
		if err != nil {
			return nil, fmt.Errorf("dsl: marshal metadata: %w", err)
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("dsl: decode metadata: %w", err)
		}
	}

	return &resource.Resource{
		APIVersion: apiVersion,
		Kind:       resource.Kind(kind),
		Metadata:   meta,
		Spec:       spec,
	}, nil
}

func (l *Loader) validateAgainst(kind string, specRaw any) error {
	doc, err := schema.DecodeJSON(specRaw)
	if err != nil {
		return err
	}
	return l.validator.Validate(kind, doc)
}

// decodeSpec decodes raw (a generic map[string]any, as produced by
// nodeToMap/DecodeJSON) into the concrete spec type for kind, or returns it
// unchanged for a CRD-registered kind with no static Go type.
func decodeSpec(kind string, raw any) (any, error) {
	switch kind {
	case "Tool":
		return decodeInto[resource.ToolSpec](raw)
	case "Agent":
		return decodeInto[resource.AgentSpec](raw)
	case "Workflow":
		return decodeInto[resource.WorkflowSpec](raw)
	case "Network":
		return decodeInto[resource.NetworkSpec](raw)
	case "LLM":
		return decodeInto[resource.LLMSpec](raw)
	case "CustomResourceDefinition":
		return decodeInto[resource.CRDSpec](raw)
	default:
		return raw, nil
	}
}

func decodeInto[T any](raw any) (T, error) {
	var zero T
	data, err := json.Marshal(raw)
	if err != nil {
		return zero, fmt.Errorf("dsl: marshal spec: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("dsl: decode spec: %w", err)
	}
	return out, nil
}
