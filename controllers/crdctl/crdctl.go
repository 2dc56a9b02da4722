// Package crdctl implements the controller.Kind for CustomResourceDefinition
// resources: it compiles a CRD's embedded schema and registers the
// (group, kind) pair in the CRD registry on reconcile, and reverses the
// registration on deletion.
package crdctl

import (
	"context"
	"fmt"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/crd"
	"github.com/mastra-run/mastra-go/resource"
)

// Controller is the controller.Kind implementation for
// CustomResourceDefinition resources.
type Controller struct {
	Registry *crd.Registry
}

var _ controller.Kind = (*Controller)(nil)

func specOf(r *resource.Resource) (resource.CRDSpec, error) {
	spec, ok := r.Spec.(resource.CRDSpec)
	if !ok {
		return resource.CRDSpec{}, fmt.Errorf("crdctl: spec is %T, want resource.CRDSpec", r.Spec)
	}
	return spec, nil
}

func (c *Controller) ValidateSpec(r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	if spec.Group == "" {
		return fmt.Errorf("crdctl: spec.group is required")
	}
	if spec.Names.Kind == "" {
		return fmt.Errorf("crdctl: spec.names.kind is required")
	}
	if spec.Scope != resource.CRDScopeNamespaced && spec.Scope != resource.CRDScopeCluster {
		return fmt.Errorf("crdctl: spec.scope must be Namespaced or Cluster, got %q", spec.Scope)
	}
	if spec.Validation.OpenAPIV3Schema == nil {
		return fmt.Errorf("crdctl: spec.validation.openAPIV3Schema is required")
	}
	if r.Metadata.Namespace != "" {
		return fmt.Errorf("crdctl: CustomResourceDefinition is cluster-scoped, metadata.namespace must be empty")
	}
	return nil
}

func (c *Controller) ResolveDependencies(ctx context.Context, r *resource.Resource) error { return nil }

func (c *Controller) DesiredState(ctx context.Context, r *resource.Resource) (any, error) {
	return specOf(r)
}

func (c *Controller) CurrentState(ctx context.Context, r *resource.Resource) (any, error) {
	spec, err := specOf(r)
	if err != nil {
		return nil, err
	}
	entry, ok := c.Registry.Lookup(spec.Group, spec.Names.Kind)
	if !ok || entry.SourceName != r.Metadata.Name {
		return nil, nil
	}
	return spec, nil
}

// UpdateState compiles spec's embedded schema and registers it in the CRD
// registry under "<group>/<kind>".
func (c *Controller) UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	return c.Registry.Register(r.Metadata.Name, spec)
}

// Cleanup unregisters the CRD, so future instances of its kind are rejected
// and the schema validator forgets it.
func (c *Controller) Cleanup(ctx context.Context, r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	c.Registry.Unregister(spec.Group, spec.Names.Kind)
	return nil
}
