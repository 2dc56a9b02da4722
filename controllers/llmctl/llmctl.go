// Package llmctl implements the controller.Kind for LLM resources: it
// builds a model.Client for each LLM resource's provider/model
// configuration and publishes it to a shared registry that agentctl
// consults when resolving an Agent's ModelRef.
package llmctl

import (
	"context"
	"fmt"
	"sync"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/model"
	"github.com/mastra-run/mastra-go/resource"
)

// Factory builds a model.Client for a given LLMSpec, resolving apiKey from
// the environment variable named by LLMSpec.APIKeyEnv when set.
type Factory func(spec resource.LLMSpec, apiKey string) (model.Client, error)

// EnvLookup reads an environment variable by name, returning "" if unset.
// Exists so tests can substitute a fixed map instead of the process
// environment.
type EnvLookup func(name string) string

type entry struct {
	spec   resource.LLMSpec
	client model.Client
}

// Registry tracks the live model.Client built for each LLM resource, keyed
// by resource name, so agentctl can resolve an Agent's ModelRef without a
// dependency on the controller package itself.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Has reports whether a client is registered under name.
func (reg *Registry) Has(name string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.entries[name]
	return ok
}

// Get returns the client registered under name, if any.
func (reg *Registry) Get(name string) (model.Client, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	e, ok := reg.entries[name]
	if !ok {
		return nil, false
	}
	return e.client, true
}

func (reg *Registry) set(name string, spec resource.LLMSpec, client model.Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.entries[name] = entry{spec: spec, client: client}
}

func (reg *Registry) specOf(name string) (resource.LLMSpec, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	e, ok := reg.entries[name]
	return e.spec, ok
}

func (reg *Registry) delete(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.entries, name)
}

// Controller is the controller.Kind implementation for LLM resources.
type Controller struct {
	Registry *Registry
	Factory  Factory
	Env      EnvLookup
}

var _ controller.Kind = (*Controller)(nil)

func specOf(r *resource.Resource) (resource.LLMSpec, error) {
	spec, ok := r.Spec.(resource.LLMSpec)
	if !ok {
		return resource.LLMSpec{}, fmt.Errorf("llmctl: spec is %T, want resource.LLMSpec", r.Spec)
	}
	return spec, nil
}

func (c *Controller) ValidateSpec(r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	if spec.Provider == "" {
		return fmt.Errorf("llmctl: spec.provider is required")
	}
	if spec.Model == "" {
		return fmt.Errorf("llmctl: spec.model is required")
	}
	return nil
}

func (c *Controller) ResolveDependencies(ctx context.Context, r *resource.Resource) error { return nil }

func (c *Controller) DesiredState(ctx context.Context, r *resource.Resource) (any, error) {
	return specOf(r)
}

func (c *Controller) CurrentState(ctx context.Context, r *resource.Resource) (any, error) {
	spec, ok := c.Registry.specOf(r.Metadata.Name)
	if !ok {
		return nil, nil
	}
	return spec, nil
}

// UpdateState builds a fresh model.Client for the LLM's configuration and
// registers it under the resource's name, replacing any prior client.
func (c *Controller) UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	apiKey := ""
	if spec.APIKeyEnv != "" && c.Env != nil {
		apiKey = c.Env(spec.APIKeyEnv)
	}
	client, err := c.Factory(spec, apiKey)
	if err != nil {
		return fmt.Errorf("llmctl: build client for %s/%s: %w", spec.Provider, spec.Model, err)
	}
	c.Registry.set(r.Metadata.Name, spec, client)
	return nil
}

func (c *Controller) Cleanup(ctx context.Context, r *resource.Resource) error {
	c.Registry.delete(r.Metadata.Name)
	return nil
}
