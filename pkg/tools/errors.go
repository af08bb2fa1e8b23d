package tools

import (
	"errors"
	"fmt"
)

// ErrUnknownTool matches any *UnknownToolError via errors.Is.
var ErrUnknownTool = errors.New("unknown tool")

// UnknownToolError is returned when the model names a function that is not
// in the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

// ArgumentError reports tool input that could not be decoded or is invalid.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid input: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }
