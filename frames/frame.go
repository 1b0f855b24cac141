// Package frames - Camera frame model, ROI crop/resize and frame sources.
package frames

import (
	"image"
	"image/color"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/camdetect/geometry"
)

// Channels is the number of interleaved bytes per pixel (R, G, B).
const Channels = 3

// ErrInvalidFrame is returned for frames whose buffer does not match their
// dimensions.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one packed RGB camera image.
type Frame struct {
	// ID increases monotonically per source.
	ID int `json:"id"`
	// Width of the frame in pixels.
	Width int `json:"width"`
	// Height of the frame in pixels.
	Height int `json:"height"`
	// Pix holds Width*Height*3 bytes, row-major RGB.
	Pix []byte `json:"-"`
	// Timestamp is when the frame was captured or produced.
	Timestamp time.Time `json:"timestamp"`
}

// NewFrame wraps an RGB buffer, validating its length.
func NewFrame(id, width, height int, pix []byte) (Frame, error) {
	f := Frame{ID: id, Width: width, Height: height, Pix: pix, Timestamp: time.Now()}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// FromImage converts any image to a packed RGB frame. Alpha is dropped.
//
// Arguments:
//   - id: Frame identifier.
//   - img: Source image; its bounds need not start at the origin.
//
// Returns:
//   - Frame: The converted frame.
func FromImage(id int, img image.Image) Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*Channels)

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				copy(pix[(y*w+x)*Channels:], row[x*4:x*4+3])
			}
		}
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
				i += Channels
			}
		}
	}

	return Frame{ID: id, Width: w, Height: h, Pix: pix, Timestamp: time.Now()}
}

// Validate checks that the frame has positive dimensions and a matching
// buffer.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Wrapf(ErrInvalidFrame, "dimensions %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * Channels; len(f.Pix) != want {
		return errors.Wrapf(ErrInvalidFrame, "buffer has %d bytes, want %d", len(f.Pix), want)
	}
	return nil
}

// Region is the frame's pixel extent.
func (f Frame) Region() geometry.SizedRegion {
	return geometry.NewSizedRegion(f.Width, f.Height)
}

// Bounds is the frame rectangle anchored at the origin.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// ToRGBA expands the frame into an opaque RGBA image.
func (f Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for i, j := 0, 0; i+Channels <= len(f.Pix) && j+4 <= len(img.Pix); i, j = i+Channels, j+4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = f.Pix[i], f.Pix[i+1], f.Pix[i+2], 0xff
	}
	return img
}
