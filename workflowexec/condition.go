package workflowexec

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// evaluateCondition compiles and runs step.Condition as a CEL expression
// against activation, which carries the same "workflow"/"step"/"context"/
// "agent" namespaces the "{{ }}" templating uses. Each top-level key becomes
// a dynamically typed CEL variable, mirroring the library's own
// variables-from-inputs pattern for ad hoc rendering contexts.
func evaluateCondition(expression string, activation map[string]any) (bool, error) {
	opts := make([]cel.EnvOption, 0, len(activation))
	for key := range activation {
		opts = append(opts, cel.Variable(key, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return false, fmt.Errorf("workflowexec: build condition environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("workflowexec: condition %q: %w", expression, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("workflowexec: condition %q: %w", expression, err)
	}
	out, _, err := program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("workflowexec: condition %q: %w", expression, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("workflowexec: condition %q did not evaluate to a bool", expression)
	}
	return result, nil
}
