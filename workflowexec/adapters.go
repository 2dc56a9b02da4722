package workflowexec

import (
	"context"
	"fmt"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/controllers/agentctl"
	"github.com/mastra-run/mastra-go/model"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store"
)

// AgentGenerator is the default AgentCaller: it resolves an agent step's
// bound Agent through agentctl's registry and calls its model.Client with
// the binding's instructions as a system message.
type AgentGenerator struct {
	Agents *agentctl.Registry
}

func (g *AgentGenerator) Generate(ctx context.Context, agentName, prompt string) (any, error) {
	binding, ok := g.Agents.Get(agentName)
	if !ok {
		return nil, &controller.AgentNotFoundError{Name: agentName}
	}
	resp, err := binding.Client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: binding.Instructions},
			{Role: model.RoleUser, Text: prompt},
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Text, nil
}

// Callable is a single registered tool or function implementation.
type Callable func(ctx context.Context, params map[string]any) (any, error)

// CallableRegistry resolves a Tool's opaque Execute key to the callable the
// embedding application registered for it.
type CallableRegistry interface {
	Lookup(key string) (Callable, bool)
}

// ToolInvoker is the default ToolCaller: it reads the Tool resource's
// Execute key from the store, then dispatches to the registered callable.
type ToolInvoker struct {
	Store     store.Store
	Callables CallableRegistry
}

func (t *ToolInvoker) Invoke(ctx context.Context, namespace, toolName string, params map[string]any) (any, error) {
	res, err := t.Store.Get(ctx, resource.KindTool, namespace, toolName)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &controller.ToolNotFoundError{Name: toolName}
	}
	spec, ok := res.Spec.(resource.ToolSpec)
	if !ok {
		return nil, fmt.Errorf("workflowexec: tool %q has unexpected spec type %T", toolName, res.Spec)
	}
	fn, ok := t.Callables.Lookup(spec.Execute)
	if !ok {
		return nil, &controller.ToolNotFoundError{Name: spec.Execute}
	}
	return fn(ctx, params)
}

// FunctionRegistry is the default FunctionCaller: a flat map of named
// function-step callables.
type FunctionRegistry map[string]func(ctx context.Context, input, variables map[string]any) (any, error)

func (f FunctionRegistry) Call(ctx context.Context, name string, input, variables map[string]any) (any, error) {
	fn, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("workflowexec: unknown function %q", name)
	}
	return fn(ctx, input, variables)
}
