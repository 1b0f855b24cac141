package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInputSize is returned synchronously by Submit when the pixel
	// buffer does not match the runtime's input tensor.
	ErrInvalidInputSize = errors.New("invalid input size")
	// ErrPipelineShutdown rejects submissions after Stop and every future
	// still queued when the worker stops.
	ErrPipelineShutdown = errors.New("pipeline shut down")
	// ErrQueueFull is returned by Submit when a bounded queue is at capacity.
	ErrQueueFull = errors.New("task queue full")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("pipeline already started")
)

// InferenceFailure rejects the future of a single task whose inference
// failed. The worker keeps serving subsequent tasks.
type InferenceFailure struct {
	FrameID int
	Cause   error
}

func (e *InferenceFailure) Error() string {
	return fmt.Sprintf("inference failed for frame %d: %v", e.FrameID, e.Cause)
}

// Unwrap returns the runtime error.
func (e *InferenceFailure) Unwrap() error {
	return e.Cause
}
