package geometry

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// CropScaleTransform maps between a source canvas and a fixed-size target
// canvas produced by cropping a region of interest out of the source and
// rescaling it to the target size.
//
// The value is immutable. ToTarget and ToSource are exact inverses of one
// another up to floating point rounding.
type CropScaleTransform struct {
	width, height             int
	roi                       Rect
	targetWidth, targetHeight float32

	// invScale is ROI size / target size per axis, offset the ROI top-left.
	invScale Point
	offset   Point
}

// NewCropScaleTransform builds the transform for a region of interest within
// a width x height canvas, rescaled to targetWidth x targetHeight.
//
// Arguments:
//   - width, height: The source canvas size in pixels.
//   - roi: The region of interest, expressed in source canvas coordinates.
//   - targetWidth, targetHeight: The size of the rescaled canvas.
//
// Returns:
//   - CropScaleTransform: The transform.
//   - error: ErrInvalidTransformConfig when the target or the ROI has a zero
//     or non-finite extent.
//
// @example
// t, err := NewCropScaleTransform(640, 480, R(80, 0, 560, 480), 300, 300)
// camera := t.ToSourceRect(R(0, 0, 300, 300)) // 80,0,560,480
func NewCropScaleTransform(width, height int, roi Rect, targetWidth, targetHeight float32) (CropScaleTransform, error) {
	if !finite(targetWidth) || !finite(targetHeight) || targetWidth <= 0 || targetHeight <= 0 {
		return CropScaleTransform{}, errors.Wrapf(ErrInvalidTransformConfig,
			"target size must be positive, got %vx%v", targetWidth, targetHeight)
	}
	for _, v := range []float32{roi.Left, roi.Top, roi.Right, roi.Bottom} {
		if !finite(v) {
			return CropScaleTransform{}, errors.Wrapf(ErrInvalidTransformConfig, "roi %s is not finite", roi)
		}
	}
	if roi.Width() == 0 || roi.Height() == 0 {
		return CropScaleTransform{}, errors.Wrapf(ErrInvalidTransformConfig, "roi %s has zero extent", roi)
	}

	return CropScaleTransform{
		width:        width,
		height:       height,
		roi:          roi,
		targetWidth:  targetWidth,
		targetHeight: targetHeight,
		invScale:     roi.Size().Div(Pt(targetWidth, targetHeight)),
		offset:       roi.P1(),
	}, nil
}

// SourceWidth is the width of the source canvas.
func (t CropScaleTransform) SourceWidth() int { return t.width }

// SourceHeight is the height of the source canvas.
func (t CropScaleTransform) SourceHeight() int { return t.height }

// ROI is the region of interest in source coordinates.
func (t CropScaleTransform) ROI() Rect { return t.roi }

// TargetSize is the rescaled canvas size.
func (t CropScaleTransform) TargetSize() Point { return Pt(t.targetWidth, t.targetHeight) }

// ToTarget maps a source point into the target canvas.
func (t CropScaleTransform) ToTarget(p Point) Point {
	return p.Sub(t.offset).Div(t.invScale)
}

// ToSource maps a target point back into the source canvas.
func (t CropScaleTransform) ToSource(p Point) Point {
	return p.Mul(t.invScale).Add(t.offset)
}

// ToTargetRect maps both corners of a source box into the target canvas.
func (t CropScaleTransform) ToTargetRect(r Rect) Rect {
	return NewRectFromPoints(t.ToTarget(r.P1()), t.ToTarget(r.P2()))
}

// ToSourceRect maps both corners of a target box back into the source canvas.
func (t CropScaleTransform) ToSourceRect(r Rect) Rect {
	return NewRectFromPoints(t.ToSource(r.P1()), t.ToSource(r.P2()))
}

// TransformedROI is the region of interest expressed in target coordinates,
// which spans the whole target canvas.
func (t CropScaleTransform) TransformedROI() Rect {
	return t.ToTargetRect(t.roi)
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
