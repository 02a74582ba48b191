package policy

import "fmt"

// Error types for remove filter expressions
type (
	// CompilationError indicates a remove filter could not be compiled
	CompilationError struct {
		Expression string
		Reason     string
		Err        error
	}

	// EvaluationError indicates a remove filter could not be evaluated
	EvaluationError struct {
		Expression string
		Torrent    string
		Err        error
	}
)

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compilation error in '%s': %s", e.Expression, e.Reason)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error for '%s' on torrent '%s': %v", e.Expression, e.Torrent, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
