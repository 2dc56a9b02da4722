package workflowexec

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/resource"
)

// executeStepWithRetry resolves step's input, serves a cache hit if one
// applies, and otherwise runs the step up to 1+Retries times. A timeout
// never triggers a retry, per the executor's timeout contract.
func (e *Executor) executeStepWithRetry(ctx context.Context, ex *execState, step resource.WorkflowStep) (any, *bool, error) {
	templateCtx := ex.templateContext()
	resolvedInput := buildStepInput(step.Input, ex.snapshotVariables(), templateCtx)

	cacheable := step.Cacheable == nil || *step.Cacheable
	key := cacheKey(step.ID, resolvedInput)
	if e.cacheEnabled && cacheable {
		if cached, ok := e.cache.get(ctx, key); ok {
			now := time.Now()
			ex.appendHistory(StepRecord{
				StepID: step.ID, Attempt: 1, Status: "completed",
				Input: resolvedInput, Output: cached, FromCache: true,
				StartTime: now, EndTime: now, DurationMs: 1,
			})
			return cached, conditionPointer(step, cached), nil
		}
	}

	attempts := step.Retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		output, cond, err := e.executeOnce(ctx, ex, step, resolvedInput, templateCtx, attempt)
		if err == nil {
			if e.cacheEnabled && cacheable {
				e.cache.set(ctx, key, output, e.cacheTTL)
			}
			return output, cond, nil
		}
		lastErr = err
		if _, isTimeout := err.(*StepTimeoutError); isTimeout {
			return nil, nil, err
		}
		if attempt < attempts && step.RetryDelayMs > 0 {
			select {
			case <-time.After(time.Duration(step.RetryDelayMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}
	}
	return nil, nil, lastErr
}

// conditionPointer re-derives the branch result for a cached condition
// step's output, so a cache hit still lets flattenNext pick the right
// branch.
func conditionPointer(step resource.WorkflowStep, cached any) *bool {
	if step.Type != resource.StepTypeCondition {
		return nil
	}
	b, _ := cached.(bool)
	return &b
}

func (e *Executor) executeOnce(ctx context.Context, ex *execState, step resource.WorkflowStep, resolvedInput map[string]any, templateCtx map[string]any, attempt int) (any, *bool, error) {
	stepCtx := ctx
	cancel := func() {}
	if step.TimeoutMs > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutMs)*time.Millisecond)
	}
	defer cancel()

	e.emit(ctx, events.TopicWorkflowStepStarted, StepEvent{StepID: step.ID, Attempt: attempt})
	start := time.Now()

	var (
		output any
		cond   *bool
		runErr error
	)
	switch step.Type {
	case resource.StepTypeAgent:
		output, runErr = e.runAgentStep(stepCtx, step, resolvedInput)
	case resource.StepTypeTool:
		output, runErr = e.runToolStep(stepCtx, ex, step, resolvedInput)
	case resource.StepTypeFunction:
		output, runErr = e.runFunctionStep(stepCtx, step, resolvedInput, ex.snapshotVariables())
	case resource.StepTypeCondition:
		var result bool
		result, runErr = evaluateCondition(step.Condition, templateCtx)
		cond = &result
		output = result
	case resource.StepTypeParallel:
		output, runErr = e.runParallelStep(stepCtx, ex, step)
	default:
		runErr = fmt.Errorf("workflowexec: unsupported step type %q", step.Type)
	}

	end := time.Now()
	status := "completed"
	errMsg := ""
	if runErr != nil {
		status = "failed"
		if stepCtx.Err() == context.DeadlineExceeded {
			status = "timeout"
		}
		errMsg = runErr.Error()
	}
	ex.appendHistory(StepRecord{
		StepID: step.ID, Attempt: attempt, Status: status,
		Input: resolvedInput, Output: output, Error: errMsg,
		StartTime: start, EndTime: end, DurationMs: durationMs(start, end),
	})

	if runErr != nil {
		e.emit(ctx, events.TopicWorkflowStepFailed, StepEvent{StepID: step.ID, Attempt: attempt, Err: errMsg})
		if status == "timeout" {
			return nil, nil, &StepTimeoutError{StepID: step.ID}
		}
		return nil, nil, runErr
	}
	e.emit(ctx, events.TopicWorkflowStepComplete, StepEvent{StepID: step.ID, Attempt: attempt})
	return output, cond, nil
}

func (e *Executor) runAgentStep(ctx context.Context, step resource.WorkflowStep, input map[string]any) (any, error) {
	if e.agents == nil {
		return nil, fmt.Errorf("workflowexec: no agent caller configured for step %q", step.ID)
	}
	prompt, ok := input["prompt"].(string)
	if !ok {
		prompt = extractText(input)
	}
	raw, err := e.agents.Generate(ctx, step.Agent, prompt)
	if err != nil {
		return nil, err
	}
	return extractText(raw), nil
}

func (e *Executor) runToolStep(ctx context.Context, ex *execState, step resource.WorkflowStep, input map[string]any) (any, error) {
	if e.tools == nil {
		return nil, fmt.Errorf("workflowexec: no tool caller configured for step %q", step.ID)
	}
	return e.tools.Invoke(ctx, ex.namespace, step.Tool, input)
}

func (e *Executor) runFunctionStep(ctx context.Context, step resource.WorkflowStep, input, variables map[string]any) (any, error) {
	if e.functions == nil {
		return nil, fmt.Errorf("workflowexec: no function caller configured for step %q", step.ID)
	}
	return e.functions.Call(ctx, step.Function, input, variables)
}

// runParallelStep executes step.Steps concurrently and returns their
// results in declaration order. Each sub-step records its own history entry
// prefixed by the parent step's id.
func (e *Executor) runParallelStep(ctx context.Context, ex *execState, step resource.WorkflowStep) (any, error) {
	results := make([]any, len(step.Steps))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range step.Steps {
		i, sub := i, sub
		sub.ID = step.ID + "." + sub.ID
		g.Go(func() error {
			out, _, err := e.executeStepWithRetry(gctx, ex, sub)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
