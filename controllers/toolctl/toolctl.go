// Package toolctl implements the controller.Kind for Tool resources: it
// verifies that the callable named by a ToolSpec's Execute field is
// registered with the embedding application before marking the Tool Ready.
package toolctl

import (
	"context"
	"fmt"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/resource"
)

// CallableRegistry reports whether a callable is registered under a given
// key. The embedding application owns the actual callables; Tool resources
// only carry the opaque key.
type CallableRegistry interface {
	Has(key string) bool
}

// Controller is the controller.Kind implementation for Tool resources.
type Controller struct {
	Callables CallableRegistry
}

var _ controller.Kind = (*Controller)(nil)

func specOf(r *resource.Resource) (resource.ToolSpec, error) {
	spec, ok := r.Spec.(resource.ToolSpec)
	if !ok {
		return resource.ToolSpec{}, fmt.Errorf("toolctl: spec is %T, want resource.ToolSpec", r.Spec)
	}
	return spec, nil
}

func (c *Controller) ValidateSpec(r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	if spec.ID == "" {
		return fmt.Errorf("toolctl: spec.id is required")
	}
	if spec.Execute == "" {
		return fmt.Errorf("toolctl: spec.execute is required")
	}
	return nil
}

// ResolveDependencies checks that spec.Execute names a callable the
// embedding application has registered.
func (c *Controller) ResolveDependencies(ctx context.Context, r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	if c.Callables == nil {
		return nil
	}
	if !c.Callables.Has(spec.Execute) {
		return &controller.ToolNotFoundError{Name: spec.Execute}
	}
	return nil
}

// DesiredState and CurrentState both resolve to the tool's Execute key: a
// Tool has no converging infrastructure beyond the callable-exists check
// ResolveDependencies already performs, so UpdateState is never exercised.
func (c *Controller) DesiredState(ctx context.Context, r *resource.Resource) (any, error) {
	spec, err := specOf(r)
	if err != nil {
		return nil, err
	}
	return spec.Execute, nil
}

func (c *Controller) CurrentState(ctx context.Context, r *resource.Resource) (any, error) {
	spec, err := specOf(r)
	if err != nil {
		return nil, err
	}
	return spec.Execute, nil
}

func (c *Controller) UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error {
	return nil
}

func (c *Controller) Cleanup(ctx context.Context, r *resource.Resource) error { return nil }
