// Package networkctl implements the controller.Kind for Network resources:
// it validates a Network's agent roster and router configuration, resolves
// every rostered Agent to an existing resource, and publishes the resolved
// roster to a registry that networkexec calls through to route turns.
package networkctl

import (
	"context"
	"fmt"
	"sync"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store"
)

// Roster is what a Network resolves to once reconciled: its member agent
// names (by resource name) and its router configuration.
type Roster struct {
	Instructions string
	AgentNames   []string
	Router       resource.RouterSpec
	State        *resource.NetworkStateSpec
}

// Registry tracks the live Roster for each reconciled Network, keyed by
// resource name.
type Registry struct {
	mu      sync.RWMutex
	rosters map[string]Roster
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rosters: make(map[string]Roster)}
}

// Get returns the roster registered under name, if any.
func (reg *Registry) Get(name string) (Roster, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rosters[name]
	return r, ok
}

func (reg *Registry) set(name string, r Roster) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.rosters[name] = r
}

func (reg *Registry) delete(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rosters, name)
}

// Controller is the controller.Kind implementation for Network resources.
type Controller struct {
	Store    store.Store
	Registry *Registry
}

var _ controller.Kind = (*Controller)(nil)

func specOf(r *resource.Resource) (resource.NetworkSpec, error) {
	spec, ok := r.Spec.(resource.NetworkSpec)
	if !ok {
		return resource.NetworkSpec{}, fmt.Errorf("networkctl: spec is %T, want resource.NetworkSpec", r.Spec)
	}
	return spec, nil
}

func (c *Controller) ValidateSpec(r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	if len(spec.Agents) == 0 {
		return fmt.Errorf("networkctl: spec.agents must not be empty")
	}
	seen := make(map[string]bool, len(spec.Agents))
	for _, a := range spec.Agents {
		if a.Name == "" {
			return fmt.Errorf("networkctl: every roster entry requires a name")
		}
		if seen[a.Name] {
			return fmt.Errorf("networkctl: duplicate roster entry %q", a.Name)
		}
		seen[a.Name] = true
	}
	if spec.State != nil && spec.State.TTLSeconds < 0 {
		return fmt.Errorf("networkctl: spec.state.ttl must not be negative")
	}
	return nil
}

// ResolveDependencies checks that every rostered Agent exists in the store.
func (c *Controller) ResolveDependencies(ctx context.Context, r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	for _, a := range spec.Agents {
		name := a.Ref
		if name == "" {
			name = a.Name
		}
		agent, err := c.Store.Get(ctx, resource.KindAgent, r.Metadata.Namespace, name)
		if err != nil {
			return err
		}
		if agent == nil {
			return &controller.AgentNotFoundError{Name: name}
		}
	}
	return nil
}

func (c *Controller) DesiredState(ctx context.Context, r *resource.Resource) (any, error) {
	return specOf(r)
}

func (c *Controller) CurrentState(ctx context.Context, r *resource.Resource) (any, error) {
	roster, ok := c.Registry.Get(r.Metadata.Name)
	if !ok {
		return nil, nil
	}
	spec, err := specOf(r)
	if err != nil {
		return nil, err
	}
	if roster.Instructions != spec.Instructions || len(roster.AgentNames) != len(spec.Agents) {
		return nil, nil
	}
	return spec, nil
}

// UpdateState publishes the Network's resolved roster to the registry.
func (c *Controller) UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(spec.Agents))
	for _, a := range spec.Agents {
		name := a.Ref
		if name == "" {
			name = a.Name
		}
		names = append(names, name)
	}
	c.Registry.set(r.Metadata.Name, Roster{
		Instructions: spec.Instructions,
		AgentNames:   names,
		Router:       spec.Router,
		State:        spec.State,
	})
	return nil
}

func (c *Controller) Cleanup(ctx context.Context, r *resource.Resource) error {
	c.Registry.delete(r.Metadata.Name)
	return nil
}
