package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectDerivedValues(t *testing.T) {
	r := R(10, 20, 110, 70)

	assert.Equal(t, float32(100), r.Width())
	assert.Equal(t, float32(50), r.Height())
	assert.Equal(t, Pt(60, 45), r.Center())
	assert.Equal(t, float32(5000), r.Area())
	assert.Equal(t, Pt(10, 20), r.P1())
	assert.Equal(t, Pt(110, 70), r.P2())
	assert.True(t, r.IsValid())

	inverted := R(110, 70, 10, 20)
	assert.False(t, inverted.IsValid())
	assert.Equal(t, float32(5000), inverted.Area(), "area uses absolute extents")
}

func TestRectIntersect(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Rect
		expected Rect
		ok       bool
	}{
		{
			name:     "partial overlap",
			a:        R(0, 0, 100, 100),
			b:        R(50, 50, 150, 150),
			expected: R(50, 50, 100, 100),
			ok:       true,
		},
		{
			name:     "containment",
			a:        R(0, 0, 100, 100),
			b:        R(10, 10, 20, 20),
			expected: R(10, 10, 20, 20),
			ok:       true,
		},
		{
			name:     "touching edges give an empty box",
			a:        R(0, 0, 1, 1),
			b:        R(1, 0, 2, 1),
			expected: R(1, 0, 1, 1),
			ok:       true,
		},
		{
			name: "disjoint diagonally",
			a:    R(0, 0, 1, 1),
			b:    R(2, 2, 3, 3),
		},
		{
			name: "disjoint on one axis",
			a:    R(0, 0, 10, 10),
			b:    R(0, 11, 10, 20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab, okAB := tt.a.Intersect(tt.b)
			ba, okBA := tt.b.Intersect(tt.a)

			assert.Equal(t, tt.ok, okAB)
			assert.Equal(t, okAB, okBA, "intersection must be commutative")
			assert.Equal(t, ab, ba, "intersection must be commutative")
			if tt.ok {
				assert.Equal(t, tt.expected, ab)
				assert.True(t, ab.IsValid())
			}
		})
	}
}

func TestRectIoU(t *testing.T) {
	a := R(0, 0, 10, 10)
	b := R(5, 5, 15, 15)

	assert.InDelta(t, 25.0/175.0, a.IoU(b), 1e-6)
	assert.InDelta(t, 1.0, a.IoU(a), 1e-6)
	assert.Zero(t, a.IoU(R(20, 20, 30, 30)))
}

func TestRectClampScaleTranslate(t *testing.T) {
	r := R(-10, -5, 700, 500).Clamp(639, 479)
	assert.Equal(t, R(0, 0, 639, 479), r)

	scaled := R(0, 0, 10, 20).Scale(2)
	assert.Equal(t, R(-5, -10, 15, 30), scaled)
	assert.Equal(t, R(0, 0, 10, 20).Center(), scaled.Center())

	moved := R(0, 0, 10, 20).Translate(Pt(5, -5))
	assert.Equal(t, R(5, -5, 15, 15), moved)
}

func TestRectImageConversion(t *testing.T) {
	r := FromImageRect(image.Rect(80, 0, 560, 480))
	require.Equal(t, R(80, 0, 560, 480), r)
	assert.Equal(t, image.Rect(80, 0, 560, 480), r.ToImageRect())

	// Fractional pixels are truncated and the result is canonical.
	assert.Equal(t, image.Rect(10, 20, 100, 200), R(100.8, 200.2, 10.4, 20.6).ToImageRect())
}

func TestRectContains(t *testing.T) {
	r := R(0, 0, 10, 10)
	assert.True(t, r.Contains(Pt(0, 0)))
	assert.True(t, r.Contains(Pt(10, 10)))
	assert.False(t, r.Contains(Pt(10.5, 5)))
}
