package dsl

import "fmt"

// UnknownKindError reports that a document's kind matches neither a
// built-in schema nor a registered custom resource definition.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("UnknownKind: %q is not a built-in kind or a registered CustomResourceDefinition", e.Kind)
}

// DanglingReferenceError reports a "$ref" that does not resolve to any
// document in the parsed batch.
type DanglingReferenceError struct {
	Ref string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("DanglingReference: %q does not resolve to any document in this batch", e.Ref)
}

// CircularReferenceError reports a file-inclusion cycle detected while
// resolving a MastraPod's resource list.
type CircularReferenceError struct {
	Path  string
	Stack []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("CircularReference: %q is already being loaded (stack: %v)", e.Path, e.Stack)
}

// ValidationFailedError wraps a schema validation failure with the
// offending document's identity.
type ValidationFailedError struct {
	Kind string
	Name string
	Err  error
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("ValidationFailed: %s/%s: %v", e.Kind, e.Name, e.Err)
}

func (e *ValidationFailedError) Unwrap() error { return e.Err }
