// Package resource defines the universal envelope every kind the control
// plane manages is wrapped in, plus the lifecycle status machine that
// governs how a resource moves between phases.
package resource

import (
	"fmt"
	"time"
)

type (
	// Kind discriminates the concrete spec/status shape carried by a Resource.
	// Declarative polymorphism over kinds is modeled as a tagged variant rather
	// than class inheritance: every controller, the scheduler, and the DSL
	// loader dispatch on Kind alone.
	Kind string

	// Resource is the envelope every manifest decodes into. Identity is the
	// triple (Kind, Namespace, Name); Key returns its canonical string form.
	Resource struct {
		APIVersion string   `json:"apiVersion" yaml:"apiVersion"`
		Kind       Kind     `json:"kind" yaml:"kind"`
		Metadata   Metadata `json:"metadata" yaml:"metadata"`
		Spec       any      `json:"spec" yaml:"spec"`
		Status     *Status  `json:"status,omitempty" yaml:"status,omitempty"`
	}

	// Metadata carries identity, organization, and lifecycle markers common to
	// every resource kind.
	Metadata struct {
		Name              string            `json:"name" yaml:"name"`
		Namespace         string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
		Labels            map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
		Annotations       map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
		DeletionTimestamp *time.Time        `json:"deletionTimestamp,omitempty" yaml:"deletionTimestamp,omitempty"`
		CreationTimestamp *time.Time        `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
		Generation        int64             `json:"generation,omitempty" yaml:"generation,omitempty"`
	}
)

const defaultNamespace = "default"

// Key returns the canonical identity string "<kind>.<namespace>.<name>" used
// throughout the control plane (store keys, scheduler resourceKey, per-resource
// locks, executor lookups).
func (r *Resource) Key() string {
	return Key(r.Kind, r.Metadata.Namespace, r.Metadata.Name)
}

// Key builds the canonical identity string for a (kind, namespace, name)
// triple, defaulting namespace to "default" when empty, mirroring
// Metadata.Namespace's documented default.
func Key(kind Kind, namespace, name string) string {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return fmt.Sprintf("%s.%s.%s", kind, namespace, name)
}

// NamespaceOrDefault returns the resource's namespace, defaulting to "default" when
// unset, per the data model's documented default.
func (m Metadata) NamespaceOrDefault() string {
	if m.Namespace == "" {
		return defaultNamespace
	}
	return m.Namespace
}

// DeepCopy returns an independent copy of the resource, including its spec
// map/slice graph where it was decoded from YAML into generic maps. Callers
// that hold long-lived references (executors, controllers) must never mutate
// a Resource obtained from the store; DeepCopy exists so they can safely
// derive a working copy instead.
func (r *Resource) DeepCopy() *Resource {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Metadata = r.Metadata.deepCopy()
	cp.Spec = deepCopyValue(r.Spec)
	if r.Status != nil {
		s := r.Status.DeepCopy()
		cp.Status = &s
	}
	return &cp
}

func (m Metadata) deepCopy() Metadata {
	cp := m
	if m.Labels != nil {
		cp.Labels = make(map[string]string, len(m.Labels))
		for k, v := range m.Labels {
			cp.Labels[k] = v
		}
	}
	if m.Annotations != nil {
		cp.Annotations = make(map[string]string, len(m.Annotations))
		for k, v := range m.Annotations {
			cp.Annotations[k] = v
		}
	}
	if m.DeletionTimestamp != nil {
		t := *m.DeletionTimestamp
		cp.DeletionTimestamp = &t
	}
	if m.CreationTimestamp != nil {
		t := *m.CreationTimestamp
		cp.CreationTimestamp = &t
	}
	return cp
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, val := range t {
			cp[k] = deepCopyValue(val)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, val := range t {
			cp[i] = deepCopyValue(val)
		}
		return cp
	default:
		return v
	}
}
