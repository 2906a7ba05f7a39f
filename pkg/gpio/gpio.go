// Package gpio reads the push-to-talk slide switch.
//
// Waits are level triggered: if the line is already in the wanted state the
// call returns at once. Every wait is cancelled through its context.
package gpio

import (
	"context"
	"time"
)

// Source is a two-state input that the interaction loop waits on.
type Source interface {
	// WaitForActivation blocks until the switch is on.
	WaitForActivation(ctx context.Context) error
	// WaitForRelease blocks until the switch is off.
	WaitForRelease(ctx context.Context) error
	// IsActive reports the current state.
	IsActive() bool
	Close() error
}

// WaitTimeout bounds wait by d. It returns context.DeadlineExceeded when the
// timeout fires first.
func WaitTimeout(ctx context.Context, d time.Duration, wait func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return wait(ctx)
}
