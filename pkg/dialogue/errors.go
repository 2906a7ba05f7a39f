package dialogue

import "fmt"

// Stage names the backend call that failed.
type Stage string

// Backend call stages.
const (
	StageDecide   Stage = "decide"
	StageFollowUp Stage = "follow_up"
	StageCompose  Stage = "compose"
)

// Error reports a failed backend call. It is never retried.
type Error struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("dialogue %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
