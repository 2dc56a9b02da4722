package controller

import (
	"fmt"
	"regexp"
)

// criticalPattern matches the error messages the reconcile loop treats as
// unrecoverable for a resource: a critical error stops that resource's
// periodic reconcile entirely, not just the current attempt.
var criticalPattern = regexp.MustCompile(`FATAL|CRITICAL|UNRECOVERABLE`)

// Critical is implemented by errors that know they are unrecoverable,
// independent of their message text.
type Critical interface {
	Critical() bool
}

// IsCritical reports whether err should stop a resource's periodic
// reconcile loop: either it implements Critical and returns true, or its
// message matches the FATAL|CRITICAL|UNRECOVERABLE vocabulary.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	if c, ok := err.(Critical); ok {
		return c.Critical()
	}
	return criticalPattern.MatchString(err.Error())
}

// ValidationFailedError reports that a resource's spec failed kind-specific
// validation.
type ValidationFailedError struct {
	Kind, Name string
	Err        error
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("ValidationFailed: %s/%s: %v", e.Kind, e.Name, e.Err)
}
func (e *ValidationFailedError) Unwrap() error { return e.Err }

// DependencyResolutionFailedError reports that a resource's referenced
// dependencies (e.g. a Workflow step's Agent name) could not be resolved.
type DependencyResolutionFailedError struct {
	Kind, Name string
	Err        error
}

func (e *DependencyResolutionFailedError) Error() string {
	return fmt.Sprintf("DependencyResolutionFailed: %s/%s: %v", e.Kind, e.Name, e.Err)
}
func (e *DependencyResolutionFailedError) Unwrap() error { return e.Err }

// StateRetrievalFailedError reports that CurrentState could not observe the
// resource's live state. Retryable unless the underlying cause is not.
type StateRetrievalFailedError struct {
	Kind, Name string
	Err        error
	retryable  bool
}

func (e *StateRetrievalFailedError) Error() string {
	return fmt.Sprintf("StateRetrievalFailed: %s/%s: %v", e.Kind, e.Name, e.Err)
}
func (e *StateRetrievalFailedError) Unwrap() error   { return e.Err }
func (e *StateRetrievalFailedError) Retryable() bool { return e.retryable }

// UpdateFailedError reports that UpdateState failed to converge current
// state to desired state.
type UpdateFailedError struct {
	Kind, Name string
	Err        error
	retryable  bool
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("UpdateFailed: %s/%s: %v", e.Kind, e.Name, e.Err)
}
func (e *UpdateFailedError) Unwrap() error   { return e.Err }
func (e *UpdateFailedError) Retryable() bool { return e.retryable }

// ReconciliationFailedError wraps an unclassified failure encountered
// somewhere in the reconcile flow outside the steps that have their own
// error kind.
type ReconciliationFailedError struct {
	Kind, Name string
	Err        error
}

func (e *ReconciliationFailedError) Error() string {
	return fmt.Sprintf("ReconciliationFailed: %s/%s: %v", e.Kind, e.Name, e.Err)
}
func (e *ReconciliationFailedError) Unwrap() error { return e.Err }

// ConflictError reports that a resource was modified concurrently with a
// reconcile attempt. Always retryable.
type ConflictError struct{ Kind, Name string }

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Conflict: %s/%s was modified concurrently", e.Kind, e.Name)
}
func (e *ConflictError) Retryable() bool { return true }

// ResourceNotFoundError reports that a resource referenced by key no longer
// exists in the store.
type ResourceNotFoundError struct{ Kind, Namespace, Name string }

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("ResourceNotFound: %s/%s/%s", e.Kind, e.Namespace, e.Name)
}

// AgentNotFoundError reports that a named Agent resource a Network roster or
// Workflow step references does not exist.
type AgentNotFoundError struct{ Name string }

func (e *AgentNotFoundError) Error() string { return fmt.Sprintf("AgentNotFound: %q", e.Name) }

// ToolNotFoundError reports that a Tool's Execute key has no registered
// callable, or that an Agent/Network's Tools reference an unknown Tool
// resource.
type ToolNotFoundError struct{ Name string }

func (e *ToolNotFoundError) Error() string { return fmt.Sprintf("ToolNotFound: %q", e.Name) }

// StepNotFoundError reports that a Workflow step's Next names a step ID
// that is not defined in the same workflow.
type StepNotFoundError struct{ StepID string }

func (e *StepNotFoundError) Error() string { return fmt.Sprintf("StepNotFound: %q", e.StepID) }

// UnknownCommandError reports that a caller invoked a command no plugin
// registered.
type UnknownCommandError struct{ Command string }

func (e *UnknownCommandError) Error() string { return fmt.Sprintf("UnknownCommand: %q", e.Command) }

// HookFailedError reports that a plugin lifecycle hook returned an error.
// Hook failures are isolated per plugin and never abort the hook pipeline
// for other plugins.
type HookFailedError struct {
	Plugin, Hook string
	Err          error
}

func (e *HookFailedError) Error() string {
	return fmt.Sprintf("HookFailed: plugin %q hook %q: %v", e.Plugin, e.Hook, e.Err)
}
func (e *HookFailedError) Unwrap() error { return e.Err }
