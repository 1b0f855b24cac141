package frames

import (
	"context"

	"github.com/pkg/errors"
)

// ErrEndOfStream is returned by Next once a finite source is exhausted.
var ErrEndOfStream = errors.New("end of stream")

// Source produces camera frames.
type Source interface {
	// Next blocks until a frame is available, ctx is done, or the source
	// ends with ErrEndOfStream.
	Next(ctx context.Context) (Frame, error)
	// Size is the frame resolution.
	Size() (width, height int)
	// Close releases the source.
	Close() error
}
