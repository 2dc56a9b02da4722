// Package agentctl implements the controller.Kind for Agent resources: it
// validates an Agent's bound Tools exist, resolves its ModelRef to a live
// model.Client (inline provider/model or a named LLM resource), and
// publishes the resolved binding to a registry the workflow and network
// executors call through.
package agentctl

import (
	"context"
	"fmt"
	"sync"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/controllers/llmctl"
	"github.com/mastra-run/mastra-go/model"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store"
)

// Binding is what an Agent resolves to once reconciled: its instructions,
// the model.Client it calls through, and its bound tool names.
type Binding struct {
	Instructions string
	Client       model.Client
	ToolNames    []string
}

// Registry tracks the live Binding for each reconciled Agent, keyed by
// resource name.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]Binding)}
}

// Get returns the binding registered under name, if any.
func (reg *Registry) Get(name string) (Binding, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	b, ok := reg.bindings[name]
	return b, ok
}

func (reg *Registry) set(name string, b Binding) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.bindings[name] = b
}

func (reg *Registry) delete(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.bindings, name)
}

// InlineClientFactory builds a model.Client directly from a ModelRef's
// Provider/Name, used when an Agent inlines its model instead of
// referencing an LLM resource.
type InlineClientFactory func(provider, name string) (model.Client, error)

// Controller is the controller.Kind implementation for Agent resources.
type Controller struct {
	Store       store.Store
	Registry    *Registry
	LLMs        *llmctl.Registry
	InlineModel InlineClientFactory
}

var _ controller.Kind = (*Controller)(nil)

func specOf(r *resource.Resource) (resource.AgentSpec, error) {
	spec, ok := r.Spec.(resource.AgentSpec)
	if !ok {
		return resource.AgentSpec{}, fmt.Errorf("agentctl: spec is %T, want resource.AgentSpec", r.Spec)
	}
	return spec, nil
}

func (c *Controller) ValidateSpec(r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	if spec.Instructions == "" {
		return fmt.Errorf("agentctl: spec.instructions is required")
	}
	if spec.Model.Ref == "" && (spec.Model.Provider == "" || spec.Model.Name == "") {
		return fmt.Errorf("agentctl: spec.model requires either ref or provider+name")
	}
	return nil
}

// ResolveDependencies checks that every bound Tool resource exists in the
// store and, for a referenced LLM, that it has been reconciled.
func (c *Controller) ResolveDependencies(ctx context.Context, r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	for alias, binding := range spec.Tools {
		name := binding.Ref
		if name == "" {
			name = alias
		}
		tool, err := c.Store.Get(ctx, resource.KindTool, r.Metadata.Namespace, name)
		if err != nil {
			return err
		}
		if tool == nil {
			return &controller.ToolNotFoundError{Name: name}
		}
	}
	if spec.Model.Ref != "" && c.LLMs != nil && !c.LLMs.Has(spec.Model.Ref) {
		return fmt.Errorf("agentctl: referenced LLM %q is not registered", spec.Model.Ref)
	}
	return nil
}

func (c *Controller) DesiredState(ctx context.Context, r *resource.Resource) (any, error) {
	return specOf(r)
}

func (c *Controller) CurrentState(ctx context.Context, r *resource.Resource) (any, error) {
	binding, ok := c.Registry.Get(r.Metadata.Name)
	if !ok {
		return nil, nil
	}
	spec, err := specOf(r)
	if err != nil {
		return nil, err
	}
	if binding.Instructions != spec.Instructions {
		return nil, nil
	}
	return spec, nil
}

// UpdateState resolves the Agent's ModelRef to a live model.Client and
// registers the resulting Binding.
func (c *Controller) UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}

	client, err := c.resolveClient(spec.Model)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(spec.Tools))
	for alias, binding := range spec.Tools {
		name := binding.Ref
		if name == "" {
			name = alias
		}
		names = append(names, name)
	}

	c.Registry.set(r.Metadata.Name, Binding{Instructions: spec.Instructions, Client: client, ToolNames: names})
	return nil
}

func (c *Controller) resolveClient(ref resource.ModelRef) (model.Client, error) {
	if ref.Ref != "" {
		if c.LLMs == nil {
			return nil, fmt.Errorf("agentctl: no LLM registry configured to resolve ref %q", ref.Ref)
		}
		client, ok := c.LLMs.Get(ref.Ref)
		if !ok {
			return nil, fmt.Errorf("agentctl: referenced LLM %q is not registered", ref.Ref)
		}
		return client, nil
	}
	if c.InlineModel == nil {
		return nil, fmt.Errorf("agentctl: no inline model factory configured")
	}
	return c.InlineModel(ref.Provider, ref.Name)
}

func (c *Controller) Cleanup(ctx context.Context, r *resource.Resource) error {
	c.Registry.delete(r.Metadata.Name)
	return nil
}
