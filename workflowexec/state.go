package workflowexec

import (
	"sync"
	"time"
)

// StepRecord is one entry in a run's history: a single attempt of a single
// step, including retries (same StepID, increasing Attempt) and parallel
// sub-steps (StepID prefixed by the parent step's id).
type StepRecord struct {
	StepID     string
	Attempt    int
	Status     string // "completed", "failed", or "timeout"
	Input      any
	Output     any
	Error      string
	FromCache  bool
	StartTime  time.Time
	EndTime    time.Time
	DurationMs int64
}

// Result is the always-produced, never-panicking outcome of a workflow run.
type Result struct {
	Status     string // "completed", "failed", or "timeout"
	Output     any
	History    []StepRecord
	StartTime  time.Time
	EndTime    time.Time
	DurationMs int64
	Err        error
}

// execState holds everything a single workflow run accumulates: the
// variable map steps read from and write to, the step-result index
// templates and conditions reference by id, and the ordered history.
type execState struct {
	mu          sync.Mutex
	namespace   string
	input       map[string]any
	variables   map[string]any
	stepResults map[string]any
	history     []StepRecord
}

func newExecState(namespace string, input map[string]any) *execState {
	vars := make(map[string]any, len(input))
	for k, v := range input {
		vars[k] = v
	}
	return &execState{
		namespace:   namespace,
		input:       input,
		variables:   vars,
		stepResults: make(map[string]any),
		history:     make([]StepRecord, 0, 8),
	}
}

func (ex *execState) setVariable(name string, value any) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.variables[name] = value
}

func (ex *execState) snapshotVariables() map[string]any {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make(map[string]any, len(ex.variables))
	for k, v := range ex.variables {
		out[k] = v
	}
	return out
}

func (ex *execState) recordStepResult(stepID string, output any) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.stepResults[stepID] = output
}

func (ex *execState) stepResultsSnapshot() map[string]any {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make(map[string]any, len(ex.stepResults))
	for id, result := range ex.stepResults {
		out[id] = map[string]any{"result": result}
	}
	return out
}

func (ex *execState) appendHistory(record StepRecord) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.history = append(ex.history, record)
}

func (ex *execState) historySnapshot() []StepRecord {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make([]StepRecord, len(ex.history))
	copy(out, ex.history)
	return out
}

// templateContext builds the namespace "{{ }}" templates and CEL conditions
// evaluate against: workflow.input, step.<id>.result, and context.<name>.
// agent is reserved for future per-alias agent metadata and is always empty
// for now.
func (ex *execState) templateContext() map[string]any {
	return map[string]any{
		"workflow": map[string]any{"input": ex.input},
		"step":     ex.stepResultsSnapshot(),
		"context":  ex.snapshotVariables(),
		"agent":    map[string]any{},
	}
}

func (ex *execState) applyOutputBindings(output map[string]any, result any) {
	for name, pathVal := range output {
		path, _ := pathVal.(string)
		value := result
		if path != "" {
			value = extractPath(result, path)
		}
		ex.setVariable(name, value)
	}
}
