// Package workflowexec runs a Workflow resource's step DAG: it walks steps
// from initialStep, dispatches each by type (agent, tool, function,
// condition, parallel), resolves branching "next" targets, and always
// produces a Result rather than letting a step failure
// propagate out of Run.
package workflowexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/telemetry"
)

// AgentCaller invokes a bound Agent capability with a formatted prompt,
// returning its raw response structure for extractText to pull a display
// string from.
type AgentCaller interface {
	Generate(ctx context.Context, agentName, prompt string) (any, error)
}

// ToolCaller invokes a Tool's callable with prepared params.
type ToolCaller interface {
	Invoke(ctx context.Context, namespace, toolName string, params map[string]any) (any, error)
}

// FunctionCaller invokes a named function-step callable with its resolved
// input and the run's current variable snapshot.
type FunctionCaller interface {
	Call(ctx context.Context, name string, input, variables map[string]any) (any, error)
}

// StepEvent is the payload published on workflow.step.* topics.
type StepEvent struct {
	WorkflowName string
	StepID       string
	Attempt      int
	Err          string
}

// RunEvent is the payload published on workflow.started/completed/failed.
type RunEvent struct {
	WorkflowName string
	Status       string
}

// Config configures an Executor.
type Config struct {
	Agents       AgentCaller
	Tools        ToolCaller
	Functions    FunctionCaller
	Bus          *events.Bus
	Logger       telemetry.Logger
	CacheEnabled bool
	CacheTTL     time.Duration
	// Redis, when set and CacheEnabled, backs the step cache with Redis
	// instead of an in-memory map so cached results survive an Executor
	// restart. Nil keeps the in-memory default.
	Redis *redis.Client
}

// Executor runs Workflow resources.
type Executor struct {
	agents       AgentCaller
	tools        ToolCaller
	functions    FunctionCaller
	bus          *events.Bus
	logger       telemetry.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	cache        stepCacheBackend
}

// New constructs an Executor. CacheTTL defaults to 5 minutes when caching is
// enabled but no TTL is given.
func New(cfg Config) *Executor {
	ttl := cfg.CacheTTL
	if cfg.CacheEnabled && ttl <= 0 {
		ttl = 5 * time.Minute
	}
	var cache stepCacheBackend = newStepCache()
	if cfg.Redis != nil {
		cache = newRedisStepCache(cfg.Redis)
	}
	return &Executor{
		agents:       cfg.Agents,
		tools:        cfg.Tools,
		functions:    cfg.Functions,
		bus:          cfg.Bus,
		logger:       cfg.Logger,
		cacheEnabled: cfg.CacheEnabled,
		cacheTTL:     ttl,
		cache:        cache,
	}
}

func specOf(r *resource.Resource) (resource.WorkflowSpec, error) {
	spec, ok := r.Spec.(resource.WorkflowSpec)
	if !ok {
		return resource.WorkflowSpec{}, fmt.Errorf("workflowexec: spec is %T, want resource.WorkflowSpec", r.Spec)
	}
	return spec, nil
}

func indexSteps(steps []resource.WorkflowStep, into map[string]resource.WorkflowStep) {
	for _, s := range steps {
		into[s.ID] = s
		indexSteps(s.Steps, into)
	}
}

// Run executes the Workflow resource's step DAG starting at initialStep and
// always returns a Result: step failures are captured in Result.Status and
// Result.Err, never returned as a Go error.
func (e *Executor) Run(ctx context.Context, r *resource.Resource, input map[string]any) *Result {
	start := time.Now()
	spec, err := specOf(r)
	if err != nil {
		return e.failResult(start, err)
	}

	stepsByID := make(map[string]resource.WorkflowStep, len(spec.Steps))
	indexSteps(spec.Steps, stepsByID)

	ex := newExecState(r.Metadata.Namespace, input)
	e.emit(ctx, events.TopicWorkflowStarted, RunEvent{WorkflowName: r.Metadata.Name, Status: "started"})

	var (
		finalOutput any
		status      = "completed"
		runErr      error
	)

	pending := []string{spec.InitialStep}
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		if id == "" || id == resource.EndStep {
			continue
		}
		step, ok := stepsByID[id]
		if !ok {
			status, runErr = "failed", &controller.StepNotFoundError{StepID: id}
			break
		}

		output, cond, err := e.executeStepWithRetry(ctx, ex, step)
		if err != nil {
			var timeoutErr *StepTimeoutError
			if errors.As(err, &timeoutErr) {
				status = "timeout"
			} else {
				status = "failed"
			}
			runErr = err
			break
		}

		finalOutput = output
		ex.recordStepResult(step.ID, output)
		ex.applyOutputBindings(step.Output, output)

		targets, err := flattenNext(step.Next, cond)
		if err != nil {
			status, runErr = "failed", err
			break
		}
		pending = append(targets, pending...)
	}

	end := time.Now()
	result := &Result{
		Status:     status,
		Output:     finalOutput,
		History:    ex.historySnapshot(),
		StartTime:  start,
		EndTime:    end,
		DurationMs: durationMs(start, end),
		Err:        runErr,
	}

	topic := events.TopicWorkflowCompleted
	if status != "completed" {
		topic = events.TopicWorkflowFailed
	}
	e.emit(ctx, topic, RunEvent{WorkflowName: r.Metadata.Name, Status: status})
	return result
}

func (e *Executor) failResult(start time.Time, err error) *Result {
	end := time.Now()
	return &Result{
		Status:     "failed",
		StartTime:  start,
		EndTime:    end,
		DurationMs: durationMs(start, end),
		Err:        err,
	}
}

func durationMs(start, end time.Time) int64 {
	d := end.Sub(start).Milliseconds()
	if d < 1 {
		return 1
	}
	return d
}

// flattenNext resolves a step's Next field into the ordered list of step ids
// still to run. A plain id or END yields at most one target; an array
// (Open Question (a), resolved conservatively) yields its elements in
// declared order; a branch map requires cond and picks "true" or "false".
func flattenNext(next any, cond *bool) ([]string, error) {
	switch v := next.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("workflowexec: next array elements must be step ids, got %T", item)
			}
			ids = append(ids, s)
		}
		return ids, nil
	case map[string]any:
		if cond == nil {
			return nil, fmt.Errorf("workflowexec: branching next requires a condition step")
		}
		key := "false"
		if *cond {
			key = "true"
		}
		target, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("workflowexec: no %q branch defined", key)
		}
		s, ok := target.(string)
		if !ok {
			return nil, fmt.Errorf("workflowexec: branch target must be a step id, got %T", target)
		}
		return []string{s}, nil
	default:
		return nil, fmt.Errorf("workflowexec: unsupported next value %T", next)
	}
}

func (e *Executor) emit(ctx context.Context, topic string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, topic, payload)
}
