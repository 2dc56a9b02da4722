// Package crd maintains the registry of custom resource definitions: the
// (group, kind) pairs and compiled schemas that let the DSL loader accept
// kinds beyond the six built in to the control plane.
package crd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/schema"
)

type (
	// Entry is one registered custom resource definition.
	Entry struct {
		Group      string
		Kind       string
		Plural     string
		Singular   string
		Scope      resource.CRDScope
		SourceName string // metadata.name of the CustomResourceDefinition resource
	}

	// Registry tracks registered CRDs and their compiled validators, keyed by
	// "<group>/<kind>".
	Registry struct {
		validator *schema.Validator
		bus       *events.Bus

		mu      sync.RWMutex
		entries map[string]Entry
	}
)

// RegistryKey builds the "<group>/<kind>" key a Registry indexes entries by.
func RegistryKey(group, kind string) string {
	return fmt.Sprintf("%s/%s", group, kind)
}

// New constructs an empty Registry. validator holds the compiled schemas;
// bus, if non-nil, receives crd.registered/crd.removed notifications.
func New(validator *schema.Validator, bus *events.Bus) *Registry {
	return &Registry{
		validator: validator,
		bus:       bus,
		entries:   make(map[string]Entry),
	}
}

// Register compiles spec's embedded schema and adds it to the registry under
// "<group>/<kind>", replacing any prior registration with the same key.
// sourceName is the metadata.name of the CustomResourceDefinition resource
// that owns this registration, recorded in the Entry so callers can tell
// which resource a registration belongs to.
func (r *Registry) Register(sourceName string, spec resource.CRDSpec) error {
	key := RegistryKey(spec.Group, spec.Names.Kind)
	if err := r.validator.Register(key, spec.Validation.OpenAPIV3Schema); err != nil {
		return fmt.Errorf("crd: register %q: %w", key, err)
	}

	entry := Entry{
		Group:      spec.Group,
		Kind:       spec.Names.Kind,
		Plural:     spec.Names.Plural,
		Singular:   spec.Names.Singular,
		Scope:      spec.Scope,
		SourceName: sourceName,
	}

	r.mu.Lock()
	r.entries[key] = entry
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(context.Background(), events.TopicCRDRegistered, entry)
	}
	return nil
}

// Unregister removes the CRD registered under "<group>/<kind>", if any, and
// reverses its schema registration. Returns true if an entry was removed.
func (r *Registry) Unregister(group, kind string) bool {
	key := RegistryKey(group, kind)

	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.validator.Unregister(key)
	if r.bus != nil {
		r.bus.Publish(context.Background(), events.TopicCRDRemoved, entry)
	}
	return true
}

// Lookup returns the entry registered under "<group>/<kind>" and whether it
// exists.
func (r *Registry) Lookup(group, kind string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[RegistryKey(group, kind)]
	return e, ok
}

// Validate checks instance against the schema registered for
// "<group>/<kind>". Returns an UnknownKindError if no CRD is registered
// under that key.
func (r *Registry) Validate(group, kind string, instance any) error {
	key := RegistryKey(group, kind)
	if !r.validator.Has(key) {
		return &UnknownKindError{Group: group, Kind: kind}
	}
	return r.validator.Validate(key, instance)
}

// ValidateScope checks that a Cluster-scoped CRD's instance omits
// metadata.namespace, per the registered entry's Scope.
func (r *Registry) ValidateScope(group, kind, namespace string) error {
	entry, ok := r.Lookup(group, kind)
	if !ok {
		return &UnknownKindError{Group: group, Kind: kind}
	}
	if entry.Scope == resource.CRDScopeCluster && strings.TrimSpace(namespace) != "" {
		return fmt.Errorf("crd: %s/%s is cluster-scoped, metadata.namespace must be empty", group, kind)
	}
	return nil
}

// UnknownKindError reports that no built-in schema or registered CRD exists
// for a (group, kind) pair.
type UnknownKindError struct {
	Group string
	Kind  string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("UnknownKind: no schema registered for %s/%s", e.Group, e.Kind)
}
