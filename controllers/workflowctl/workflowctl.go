// Package workflowctl implements the controller.Kind for Workflow
// resources: it validates the step DAG is well-formed (every Next target
// resolves to a step ID or the reserved END token) and that every step's
// referenced Agent/Tool exists, then leaves execution to workflowexec.
package workflowctl

import (
	"context"
	"fmt"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store"
)

// Controller is the controller.Kind implementation for Workflow resources.
type Controller struct {
	Store store.Store
}

var _ controller.Kind = (*Controller)(nil)

func specOf(r *resource.Resource) (resource.WorkflowSpec, error) {
	spec, ok := r.Spec.(resource.WorkflowSpec)
	if !ok {
		return resource.WorkflowSpec{}, fmt.Errorf("workflowctl: spec is %T, want resource.WorkflowSpec", r.Spec)
	}
	return spec, nil
}

// ValidateSpec checks that InitialStep and every step's Next reference a
// defined step ID or resource.EndStep, and that step types carry the field
// they require (agent/tool/function/condition).
func (c *Controller) ValidateSpec(r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	if spec.InitialStep == "" {
		return fmt.Errorf("workflowctl: spec.initialStep is required")
	}
	if len(spec.Steps) == 0 {
		return fmt.Errorf("workflowctl: spec.steps must not be empty")
	}

	ids := make(map[string]bool, len(spec.Steps))
	var collect func(steps []resource.WorkflowStep) error
	collect = func(steps []resource.WorkflowStep) error {
		for _, s := range steps {
			if s.ID == "" {
				return fmt.Errorf("workflowctl: step with empty id")
			}
			ids[s.ID] = true
			switch s.Type {
			case resource.StepTypeAgent:
				if s.Agent == "" {
					return fmt.Errorf("workflowctl: step %q of type agent requires spec.agent", s.ID)
				}
			case resource.StepTypeTool:
				if s.Tool == "" {
					return fmt.Errorf("workflowctl: step %q of type tool requires spec.tool", s.ID)
				}
			case resource.StepTypeFunction:
				if s.Function == "" {
					return fmt.Errorf("workflowctl: step %q of type function requires spec.function", s.ID)
				}
			case resource.StepTypeCondition:
				if s.Condition == "" {
					return fmt.Errorf("workflowctl: step %q of type condition requires spec.condition", s.ID)
				}
			case resource.StepTypeParallel:
				if len(s.Steps) == 0 {
					return fmt.Errorf("workflowctl: step %q of type parallel requires nested steps", s.ID)
				}
			default:
				return fmt.Errorf("workflowctl: step %q has unknown type %q", s.ID, s.Type)
			}
			if err := collect(s.Steps); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(spec.Steps); err != nil {
		return err
	}
	if !ids[spec.InitialStep] {
		return fmt.Errorf("workflowctl: initialStep %q is not a defined step", spec.InitialStep)
	}

	var checkNext func(steps []resource.WorkflowStep) error
	checkNext = func(steps []resource.WorkflowStep) error {
		for _, s := range steps {
			if err := validateNext(s.Next, ids); err != nil {
				return fmt.Errorf("workflowctl: step %q: %w", s.ID, err)
			}
			if err := checkNext(s.Steps); err != nil {
				return err
			}
		}
		return nil
	}
	return checkNext(spec.Steps)
}

func validateNext(next any, ids map[string]bool) error {
	switch v := next.(type) {
	case nil:
		return nil
	case string:
		if v == resource.EndStep || ids[v] {
			return nil
		}
		return &controller.StepNotFoundError{StepID: v}
	case []any:
		for _, target := range v {
			if err := validateNext(target, ids); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, target := range v {
			if err := validateNext(target, ids); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported next value %T", next)
	}
}

// ResolveDependencies checks that every step's referenced Agent or Tool
// resource exists in the store.
func (c *Controller) ResolveDependencies(ctx context.Context, r *resource.Resource) error {
	spec, err := specOf(r)
	if err != nil {
		return err
	}
	var walk func(steps []resource.WorkflowStep) error
	walk = func(steps []resource.WorkflowStep) error {
		for _, s := range steps {
			switch s.Type {
			case resource.StepTypeAgent:
				agent, err := c.Store.Get(ctx, resource.KindAgent, r.Metadata.Namespace, s.Agent)
				if err != nil {
					return err
				}
				if agent == nil {
					return &controller.AgentNotFoundError{Name: s.Agent}
				}
			case resource.StepTypeTool:
				tool, err := c.Store.Get(ctx, resource.KindTool, r.Metadata.Namespace, s.Tool)
				if err != nil {
					return err
				}
				if tool == nil {
					return &controller.ToolNotFoundError{Name: s.Tool}
				}
			}
			if err := walk(s.Steps); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(spec.Steps)
}

// DesiredState and CurrentState both resolve to the workflow's own spec: a
// Workflow's live state is its execution history, owned by workflowexec,
// not by the controller.
func (c *Controller) DesiredState(ctx context.Context, r *resource.Resource) (any, error) {
	return specOf(r)
}

func (c *Controller) CurrentState(ctx context.Context, r *resource.Resource) (any, error) {
	return specOf(r)
}

func (c *Controller) UpdateState(ctx context.Context, r *resource.Resource, desired, current any) error {
	return nil
}

func (c *Controller) Cleanup(ctx context.Context, r *resource.Resource) error { return nil }
