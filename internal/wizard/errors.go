package wizard

import (
	"fmt"

	"conceptforge/internal/model"
)

// ValidationError blocks an advance until the user corrects the input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// StreamFailure is an explicit error frame or an unusable completion payload.
// The machine has already returned to its last stable interactive state and
// kept every committed answer; the operation is safe to retry.
type StreamFailure struct {
	Message string
}

func (e *StreamFailure) Error() string {
	return fmt.Sprintf("stream failure: %s", e.Message)
}

// NetworkFailure is a request that never reached the server, returned a
// non-success status, or a stream that ended without a terminal frame.
// Recovery is identical to StreamFailure.
type NetworkFailure struct {
	Err error
}

func (e *NetworkFailure) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkFailure) Unwrap() error {
	return e.Err
}

// TransitionError is an operation invoked from a state that does not allow
// it. Invalid transitions are rejected, never silently ignored.
type TransitionError struct {
	From model.WizardState
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("operation %q not valid in state %q", e.Op, e.From)
}
