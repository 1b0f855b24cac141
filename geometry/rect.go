package geometry

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is an axis-aligned box described by its edges.
//
// A Rect is valid when Left <= Right and Top <= Bottom. Operations that can
// produce an empty overlap report it through a boolean instead of returning
// an inverted rectangle.
type Rect struct {
	Left, Top, Right, Bottom float32
}

// R is shorthand for Rect{Left: l, Top: t, Right: r, Bottom: b}.
func R(l, t, r, b float32) Rect {
	return Rect{Left: l, Top: t, Right: r, Bottom: b}
}

// NewRectFromPoints builds a Rect from its top-left and bottom-right corners.
func NewRectFromPoints(p1, p2 Point) Rect {
	return Rect{Left: p1.X, Top: p1.Y, Right: p2.X, Bottom: p2.Y}
}

// FromImageRect converts an integral image.Rectangle. Max is exclusive in
// image.Rectangle, so the resulting Right/Bottom equal Max.X/Max.Y.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{
		Left:   float32(r.Min.X),
		Top:    float32(r.Min.Y),
		Right:  float32(r.Max.X),
		Bottom: float32(r.Max.Y),
	}
}

// ToImageRect converts the box to integral coordinates, truncating fractional
// pixels.
//
// Returns:
//   - image.Rectangle: The canonical integer rectangle.
func (r Rect) ToImageRect() image.Rectangle {
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)).Canon()
}

// Width is Right-Left. It is negative for an inverted box.
func (r Rect) Width() float32 {
	return r.Right - r.Left
}

// Height is Bottom-Top. It is negative for an inverted box.
func (r Rect) Height() float32 {
	return r.Bottom - r.Top
}

// Size returns (Width, Height) as a vector.
func (r Rect) Size() Point {
	return Point{X: r.Width(), Y: r.Height()}
}

// Center returns the midpoint of the box.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

// Area is |Width|*|Height|, so it is never negative.
func (r Rect) Area() float32 {
	return math32.Abs(r.Width()) * math32.Abs(r.Height())
}

// P1 is the top-left corner.
func (r Rect) P1() Point {
	return Point{X: r.Left, Y: r.Top}
}

// P2 is the bottom-right corner.
func (r Rect) P2() Point {
	return Point{X: r.Right, Y: r.Bottom}
}

// IsValid reports whether the edges are ordered.
func (r Rect) IsValid() bool {
	return r.Left <= r.Right && r.Top <= r.Bottom
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return r.Left <= p.X && p.X <= r.Right && r.Top <= p.Y && p.Y <= r.Bottom
}

// Intersect computes the overlap of two boxes.
//
// Boxes that only touch along an edge intersect in a zero-area box. Boxes
// that are separated on either axis do not intersect.
//
// Arguments:
//   - o: The other box.
//
// Returns:
//   - Rect: The overlapping region, zero value when ok is false.
//   - bool: False when the boxes are disjoint.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	x1 := math32.Max(r.Left, o.Left)
	y1 := math32.Max(r.Top, o.Top)
	x2 := math32.Min(r.Right, o.Right)
	y2 := math32.Min(r.Bottom, o.Bottom)

	if x2-x1 < 0 || y2-y1 < 0 {
		return Rect{}, false
	}
	return Rect{Left: x1, Top: y1, Right: x2, Bottom: y2}, true
}

// IoU returns the intersection over union of two boxes in [0, 1]. Disjoint
// boxes and degenerate unions yield 0.
func (r Rect) IoU(o Rect) float32 {
	inter, ok := r.Intersect(o)
	if !ok {
		return 0
	}
	union := r.Area() + o.Area() - inter.Area()
	if union <= 0 {
		return 0
	}
	return inter.Area() / union
}

// Clamp restricts every edge to the [0, width] x [0, height] bound.
func (r Rect) Clamp(width, height float32) Rect {
	return Rect{
		Left:   clamp(r.Left, 0, width),
		Top:    clamp(r.Top, 0, height),
		Right:  clamp(r.Right, 0, width),
		Bottom: clamp(r.Bottom, 0, height),
	}
}

// Scale grows or shrinks the box uniformly about its center.
func (r Rect) Scale(s float32) Rect {
	c := r.Center()
	half := r.Size().Scale(s / 2)
	return NewRectFromPoints(c.Sub(half), c.Add(half))
}

// Translate moves the box by v.
func (r Rect) Translate(v Point) Rect {
	return NewRectFromPoints(r.P1().Add(v), r.P2().Add(v))
}

func (r Rect) String() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", r.Left, r.Top, r.Right, r.Bottom)
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(v, hi))
}
