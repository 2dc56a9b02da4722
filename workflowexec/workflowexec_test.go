package workflowexec

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/resource"
)

type fakeAgents struct {
	text string
	err  error
}

func (f *fakeAgents) Generate(ctx context.Context, agentName, prompt string) (any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"text": f.text}, nil
}

type fakeTools struct {
	calls int32
	out   any
	err   error
	delay time.Duration
}

func (f *fakeTools) Invoke(ctx context.Context, namespace, toolName string, params map[string]any) (any, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func workflowResource(spec resource.WorkflowSpec) *resource.Resource {
	return &resource.Resource{
		Kind:     resource.KindWorkflow,
		Metadata: resource.Metadata{Name: "w", Namespace: "default"},
		Spec:     spec,
	}
}

func TestRunExecutesSequentialChain(t *testing.T) {
	tools := &fakeTools{out: "searched"}
	exec := New(Config{Tools: tools})
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "a",
		Steps: []resource.WorkflowStep{
			{ID: "a", Type: resource.StepTypeTool, Tool: "search", Next: "b"},
			{ID: "b", Type: resource.StepTypeFunction, Function: "noop", Next: resource.EndStep},
		},
	})
	exec.functions = FunctionRegistry{
		"noop": func(ctx context.Context, input, variables map[string]any) (any, error) {
			return "done", nil
		},
	}

	result := exec.Run(context.Background(), r, map[string]any{"topic": "go"})
	require.NoError(t, result.Err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "done", result.Output)
	assert.Len(t, result.History, 2)
	assert.Equal(t, int32(1), tools.calls)
}

func TestRunFollowsConditionBranch(t *testing.T) {
	exec := New(Config{})
	exec.functions = FunctionRegistry{
		"yes": func(ctx context.Context, input, variables map[string]any) (any, error) { return "yes-path", nil },
		"no":  func(ctx context.Context, input, variables map[string]any) (any, error) { return "no-path", nil },
	}
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "check",
		Steps: []resource.WorkflowStep{
			{ID: "check", Type: resource.StepTypeCondition, Condition: "context.score > 5", Next: map[string]any{
				"true": "yes", "false": "no",
			}},
			{ID: "yes", Type: resource.StepTypeFunction, Function: "yes"},
			{ID: "no", Type: resource.StepTypeFunction, Function: "no"},
		},
	})

	result := exec.Run(context.Background(), r, map[string]any{"score": 10})
	require.NoError(t, result.Err)
	assert.Equal(t, "yes-path", result.Output)
}

func TestRunTimeoutIsNotRetried(t *testing.T) {
	tools := &fakeTools{delay: 50 * time.Millisecond, out: "late"}
	exec := New(Config{Tools: tools})
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "a",
		Steps: []resource.WorkflowStep{
			{ID: "a", Type: resource.StepTypeTool, Tool: "slow", TimeoutMs: 5, Retries: 3},
		},
	})

	result := exec.Run(context.Background(), r, nil)
	assert.Equal(t, "timeout", result.Status)
	assert.Equal(t, int32(1), tools.calls, "a timed-out step must not be retried")
}

func TestRunRetriesNonTimeoutFailures(t *testing.T) {
	attempts := int32(0)
	exec := New(Config{})
	exec.functions = FunctionRegistry{
		"flaky": func(ctx context.Context, input, variables map[string]any) (any, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return nil, fmt.Errorf("transient failure")
			}
			return "recovered", nil
		},
	}
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "a",
		Steps: []resource.WorkflowStep{
			{ID: "a", Type: resource.StepTypeFunction, Function: "flaky", Retries: 2},
		},
	})

	result := exec.Run(context.Background(), r, nil)
	require.NoError(t, result.Err)
	assert.Equal(t, "recovered", result.Output)
	assert.Equal(t, int32(3), attempts)
	assert.Len(t, result.History, 3)
}

func TestRunFailsAfterExhaustingRetries(t *testing.T) {
	exec := New(Config{})
	exec.functions = FunctionRegistry{
		"alwaysFails": func(ctx context.Context, input, variables map[string]any) (any, error) {
			return nil, fmt.Errorf("boom")
		},
	}
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "a",
		Steps: []resource.WorkflowStep{
			{ID: "a", Type: resource.StepTypeFunction, Function: "alwaysFails", Retries: 1},
		},
	})

	result := exec.Run(context.Background(), r, nil)
	assert.Equal(t, "failed", result.Status)
	assert.Error(t, result.Err)
}

func TestRunCachesStepResultWithinTTL(t *testing.T) {
	tools := &fakeTools{out: "cached-value"}
	exec := New(Config{Tools: tools, CacheEnabled: true, CacheTTL: time.Minute})
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "a",
		Steps: []resource.WorkflowStep{
			{ID: "a", Type: resource.StepTypeTool, Tool: "search", Input: map[string]any{"q": "go"}},
		},
	})

	first := exec.Run(context.Background(), r, nil)
	require.NoError(t, first.Err)
	second := exec.Run(context.Background(), r, nil)
	require.NoError(t, second.Err)

	assert.Equal(t, int32(1), tools.calls, "second run should be served from cache")
	assert.True(t, second.History[0].FromCache)
}

func TestRunParallelStepExecutesSubStepsConcurrently(t *testing.T) {
	exec := New(Config{})
	exec.functions = FunctionRegistry{
		"a": func(ctx context.Context, input, variables map[string]any) (any, error) { return "a-result", nil },
		"b": func(ctx context.Context, input, variables map[string]any) (any, error) { return "b-result", nil },
	}
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "fan",
		Steps: []resource.WorkflowStep{
			{ID: "fan", Type: resource.StepTypeParallel, Steps: []resource.WorkflowStep{
				{ID: "a", Type: resource.StepTypeFunction, Function: "a"},
				{ID: "b", Type: resource.StepTypeFunction, Function: "b"},
			}},
		},
	})

	result := exec.Run(context.Background(), r, nil)
	require.NoError(t, result.Err)
	assert.Equal(t, []any{"a-result", "b-result"}, result.Output)
	assert.Len(t, result.History, 3) // fan + 2 sub-steps
}

func TestRunUnknownInitialStepFails(t *testing.T) {
	exec := New(Config{})
	r := workflowResource(resource.WorkflowSpec{InitialStep: "missing"})
	result := exec.Run(context.Background(), r, nil)
	assert.Equal(t, "failed", result.Status)
	assert.Error(t, result.Err)
}

func TestRunAgentStepExtractsText(t *testing.T) {
	exec := New(Config{Agents: &fakeAgents{text: "hello there"}})
	r := workflowResource(resource.WorkflowSpec{
		InitialStep: "ask",
		Steps: []resource.WorkflowStep{
			{ID: "ask", Type: resource.StepTypeAgent, Agent: "researcher", Input: map[string]any{"prompt": "hi"}},
		},
	})
	result := exec.Run(context.Background(), r, nil)
	require.NoError(t, result.Err)
	assert.Equal(t, "hello there", result.Output)
}
