package tool

import (
	"errors"
	"fmt"
)

// ErrDuplicate is returned when a tool name is registered twice.
var ErrDuplicate = errors.New("tool: duplicate registration")

// UnknownToolError reports an invocation of a tool that is not registered.
type UnknownToolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + e.Name
}

// ArgumentError reports arguments that do not satisfy a tool's contract.
type ArgumentError struct {
	Tool Name
	Err  error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying error.
func (e *ArgumentError) Unwrap() error {
	return e.Err
}
