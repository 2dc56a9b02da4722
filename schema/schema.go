// Package schema validates decoded resource documents against JSON-schema
// validators, compiled once per kind and cached for reuse across
// validations.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles and caches JSON schemas keyed by an arbitrary string
// (built-in kind name or "<group>/<kind>" for a CustomResourceDefinition).
type Validator struct {
	mu    sync.RWMutex
	byKey map[string]*jsonschema.Schema
}

// New constructs an empty Validator.
func New() *Validator {
	return &Validator{byKey: make(map[string]*jsonschema.Schema)}
}

// Register compiles schemaDoc (a decoded JSON-schema document, e.g. an
// openAPIV3Schema map) and stores it under key, replacing any prior schema
// registered under the same key.
func (v *Validator) Register(key string, schemaDoc map[string]any) error {
	resourceURL := "mem://" + key
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, schemaDoc); err != nil {
		return fmt.Errorf("schema: add resource %q: %w", key, err)
	}
	compiled, err := c.Compile(resourceURL)
	if err != nil {
		return fmt.Errorf("schema: compile %q: %w", key, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.byKey[key] = compiled
	return nil
}

// Unregister removes the schema registered under key, if any.
func (v *Validator) Unregister(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.byKey, key)
}

// Has reports whether a schema is registered under key.
func (v *Validator) Has(key string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.byKey[key]
	return ok
}

// Validate checks instance (a decoded JSON-compatible value: map[string]any,
// []any, or a scalar) against the schema registered under key. Returns an
// error wrapping jsonschema's validation error when instance does not
// conform; returns an error if no schema is registered under key.
func (v *Validator) Validate(key string, instance any) error {
	v.mu.RLock()
	compiled, ok := v.byKey[key]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("schema: no schema registered for %q", key)
	}
	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("schema: validation failed for %q: %w", key, err)
	}
	return nil
}

// DecodeJSON is a convenience for turning a struct (typically a resource's
// Spec) into the map[string]any / []any shape jsonschema.Schema.Validate
// expects, by round-tripping through encoding/json.
func DecodeJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal instance: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schema: unmarshal instance: %w", err)
	}
	return doc, nil
}
