package llm

import "fmt"

// GenerationExhaustedError indicates that every generation attempt produced
// output that failed parsing or schema validation.
type GenerationExhaustedError struct {
	Role     Role
	Attempts int
	Last     error
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("structured generation for %s failed after %d attempts: %v", e.Role, e.Attempts, e.Last)
}

func (e *GenerationExhaustedError) Unwrap() error {
	return e.Last
}
