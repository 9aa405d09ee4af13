package composite

import (
	"errors"
	"fmt"
)

var errEmptyImage = errors.New("empty pixel grid")

// InvalidImageError means one of the inputs could not be decoded.
type InvalidImageError struct {
	// Which is "header" or "template".
	Which string
	Err   error
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("composite: invalid %s image: %v", e.Which, e.Err)
}

func (e *InvalidImageError) Unwrap() error { return e.Err }

// CompositingError names the merge step that could not produce a valid result.
type CompositingError struct {
	Step   string
	Reason string
}

func (e *CompositingError) Error() string {
	return fmt.Sprintf("composite: %s failed: %s", e.Step, e.Reason)
}
