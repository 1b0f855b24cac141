package frames

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ErrInvalidROI is returned when a crop region is empty or leaves the frame.
var ErrInvalidROI = errors.New("invalid region of interest")

// CenterSquare returns the largest square centred in a width x height frame.
//
// @example
// roi := CenterSquare(640, 480) // (80,0)-(560,480)
func CenterSquare(width, height int) image.Rectangle {
	side := width
	if height < side {
		side = height
	}
	x := width/2 - side/2
	if x < 0 {
		x = 0
	}
	y := height/2 - side/2
	if y < 0 {
		y = 0
	}
	return image.Rect(x, y, x+side, y+side)
}

// CropResize crops roi out of f and resamples it bilinearly to width x
// height, returning packed RGB ready for the model input.
//
// Arguments:
//   - f: The source frame.
//   - roi: Region to crop, in frame pixel coordinates.
//   - width: Output width in pixels.
//   - height: Output height in pixels.
//
// Returns:
//   - []byte: width*height*3 bytes of RGB.
//   - error: If the frame is invalid or roi is empty or out of bounds.
func CropResize(f Frame, roi image.Rectangle, width, height int) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid output size %dx%d", width, height)
	}
	if roi.Empty() || !roi.In(f.Bounds()) {
		return nil, errors.Wrapf(ErrInvalidROI, "%v not inside %v", roi, f.Bounds())
	}

	src := f.ToRGBA().SubImage(roi)
	if roi.Dx() == width && roi.Dy() == height {
		return FromImage(f.ID, src).Pix, nil
	}

	resized := resize.Resize(uint(width), uint(height), src, resize.Bilinear)
	return FromImage(f.ID, resized).Pix, nil
}
