package geometry

import (
	"fmt"

	"github.com/pkg/errors"
)

// SizedRegion is the pixel canvas a set of coordinates is expressed in.
//
// Rescaling between two regions uses a pixel-center convention: a coordinate
// v on a canvas of size n maps to v/(n-1)*(m-1) on a canvas of size m. The
// renderer and the detector's box denormalization depend on this exact
// mapping, so it must not be replaced by v/n*m.
type SizedRegion struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// NewSizedRegion builds a SizedRegion for a width x height canvas.
func NewSizedRegion(width, height int) SizedRegion {
	return SizedRegion{Width: width, Height: height}
}

// Validate rejects canvases too small for the pixel-center rescale, which
// divides by (dim-1).
func (s SizedRegion) Validate() error {
	if s.Width < 2 || s.Height < 2 {
		return errors.Wrapf(ErrInvalidTransformConfig, "sized region %s must be at least 2x2", s)
	}
	return nil
}

func (s SizedRegion) maxIndex() Point {
	return Pt(float32(s.Width-1), float32(s.Height-1))
}

// Transform rescales a point from this canvas to a targetWidth x targetHeight
// canvas.
func (s SizedRegion) Transform(p Point, targetWidth, targetHeight int) Point {
	return p.Div(s.maxIndex()).Mul(NewSizedRegion(targetWidth, targetHeight).maxIndex())
}

// TransformRect rescales both corners of a box from this canvas to a
// targetWidth x targetHeight canvas.
func (s SizedRegion) TransformRect(r Rect, targetWidth, targetHeight int) Rect {
	return NewRectFromPoints(
		s.Transform(r.P1(), targetWidth, targetHeight),
		s.Transform(r.P2(), targetWidth, targetHeight),
	)
}

// InverseTransform rescales a point expressed on a fromWidth x fromHeight
// canvas onto this canvas.
func (s SizedRegion) InverseTransform(p Point, fromWidth, fromHeight int) Point {
	return NewSizedRegion(fromWidth, fromHeight).Transform(p, s.Width, s.Height)
}

// Clamp restricts p to [0, Width-1] x [0, Height-1].
func (s SizedRegion) Clamp(p Point) Point {
	m := s.maxIndex()
	return Pt(clamp(p.X, 0, m.X), clamp(p.Y, 0, m.Y))
}

// ClampRect clamps both corners of r to the canvas.
func (s SizedRegion) ClampRect(r Rect) Rect {
	return NewRectFromPoints(s.Clamp(r.P1()), s.Clamp(r.P2()))
}

// Center is the geometric center of the canvas.
func (s SizedRegion) Center() Point {
	return Pt(float32(s.Width)/2, float32(s.Height)/2)
}

func (s SizedRegion) String() string {
	return fmt.Sprintf("W: %d, H: %d", s.Width, s.Height)
}
