package pipeline

import (
	"fmt"

	"github.com/nvr-ai/camdetect/detection"
)

// Shape is the fixed input tensor geometry of a runtime.
type Shape struct {
	Width    int `json:"width" yaml:"width"`
	Height   int `json:"height" yaml:"height"`
	Channels int `json:"channels" yaml:"channels"`
}

// Len is the number of bytes an input buffer must hold.
func (s Shape) Len() int {
	return s.Width * s.Height * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Channels)
}

// Runtime is a neural network session with one fixed-size interleaved pixel
// input and SSD style box/class/score/count outputs.
//
// A Runtime is not safe for concurrent use. The pipeline calls it from a
// single worker goroutine only.
type Runtime interface {
	// InputShape is the expected input tensor geometry.
	InputShape() Shape
	// SetInput copies a pixel buffer of InputShape().Len() bytes into the
	// input tensor.
	SetInput(data []byte) error
	// Invoke runs inference synchronously.
	Invoke() error
	// Outputs reads the output tensors populated by the last Invoke.
	Outputs() (detection.Outputs, error)
	// Close releases the session.
	Close() error
}
