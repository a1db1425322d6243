package executor

import (
	"fmt"
	"strings"
)

// RunError reports the nodes whose actions failed. Skipped nodes are never
// listed. Err is the failure of the first failed node in plan order.
type RunError struct {
	Failed []string
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("execution failed for %s: %v", strings.Join(e.Failed, ", "), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
