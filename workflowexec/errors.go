package workflowexec

import "fmt"

// StepTimeoutError reports that a step's timeout elapsed before it
// completed. Per the executor's timeout contract, a timed-out step is never
// retried even when the step allows retries for other failure kinds.
type StepTimeoutError struct {
	StepID string
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("workflowexec: step %q timed out", e.StepID)
}
