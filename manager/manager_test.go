package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/model"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store/memstore"
)

type fakeCallables struct{ known map[string]bool }

func (f fakeCallables) Has(key string) bool { return f.known[key] }

type fakeClient struct{ text string }

func (c fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return &model.Response{Text: c.text}, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st := memstore.New()
	bus := events.New(nil)
	m := New(Config{
		Store:     st,
		Bus:       bus,
		Callables: fakeCallables{known: map[string]bool{"run-tests": true}},
		InlineModel: func(provider, name string) (model.Client, error) {
			return fakeClient{text: "hi from " + name}, nil
		},
	})
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func TestAddResourceReconcilesAgentAndExposesBinding(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	agent := &resource.Resource{
		Kind:     resource.KindAgent,
		Metadata: resource.Metadata{Name: "assistant", Namespace: "default"},
		Spec: resource.AgentSpec{
			Instructions: "be helpful",
			Model:        resource.ModelRef{Provider: "openai", Name: "gpt-4o-mini"},
		},
	}
	require.NoError(t, m.AddResource(ctx, agent))

	binding, ok := m.GetAgent("assistant")
	require.True(t, ok)
	assert.Equal(t, "be helpful", binding.Instructions)

	reply, err := m.RunAgent(ctx, "assistant", "ping")
	require.NoError(t, err)
	assert.Contains(t, reply, "hi from")
}

func TestAddResourceRejectsInvalidToolSpec(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	tool := &resource.Resource{
		Kind:     resource.KindTool,
		Metadata: resource.Metadata{Name: "broken", Namespace: "default"},
		Spec:     resource.ToolSpec{ID: "broken"},
	}
	err := m.AddResource(ctx, tool)
	assert.Error(t, err)
}

func TestRunWorkflowExecutesReconciledWorkflow(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	wf := &resource.Resource{
		Kind:     resource.KindWorkflow,
		Metadata: resource.Metadata{Name: "greet", Namespace: "default"},
		Spec: resource.WorkflowSpec{
			InitialStep: "a",
			Steps: []resource.WorkflowStep{
				{ID: "a", Type: resource.StepTypeFunction, Function: "noop", Next: resource.EndStep},
			},
		},
	}
	require.NoError(t, m.AddResource(ctx, wf))

	result, err := m.RunWorkflow(ctx, "default", "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "failed", result.Status, "no function registered for 'noop' so the step must fail cleanly")
}

func TestRunWorkflowMissingReturnsError(t *testing.T) {
	m := newTestManager(t)
	_, err := m.RunWorkflow(context.Background(), "default", "missing", nil)
	assert.Error(t, err)
}

func TestRemoveResourceDeletesFromStore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	tool := &resource.Resource{
		Kind:     resource.KindTool,
		Metadata: resource.Metadata{Name: "run-tests", Namespace: "default"},
		Spec:     resource.ToolSpec{ID: "run-tests", Execute: "run-tests"},
	}
	require.NoError(t, m.AddResource(ctx, tool))

	require.NoError(t, m.RemoveResource(ctx, resource.KindTool, "default", "run-tests"))

	got, err := m.store.Get(ctx, resource.KindTool, "default", "run-tests")
	require.NoError(t, err)
	assert.Nil(t, got)
}
