package frames

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(t *testing.T, w, h int, c color.RGBA) Frame {
	t.Helper()
	pix := make([]byte, w*h*Channels)
	for i := 0; i < len(pix); i += Channels {
		pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
	}
	f, err := NewFrame(1, w, h, pix)
	require.NoError(t, err)
	return f
}

func TestFrameValidate(t *testing.T) {
	_, err := NewFrame(1, 2, 2, make([]byte, 11))
	assert.True(t, errors.Is(err, ErrInvalidFrame))

	_, err = NewFrame(1, 0, 2, nil)
	assert.True(t, errors.Is(err, ErrInvalidFrame))

	f, err := NewFrame(3, 2, 2, make([]byte, 12))
	require.NoError(t, err)
	assert.Equal(t, "W: 2, H: 2", f.Region().String())
}

func TestFromImageAndToRGBA(t *testing.T) {
	img := image.NewNRGBA(image.Rect(10, 10, 13, 12))
	img.Set(10, 10, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(12, 11, color.NRGBA{R: 7, G: 8, B: 9, A: 255})

	f := FromImage(5, img)
	require.NoError(t, f.Validate())
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, []byte{1, 2, 3}, f.Pix[:3])
	assert.Equal(t, []byte{7, 8, 9}, f.Pix[len(f.Pix)-3:])

	rgba := f.ToRGBA()
	assert.Equal(t, color.RGBA{R: 7, G: 8, B: 9, A: 255}, rgba.RGBAAt(2, 1))

	back := FromImage(5, rgba)
	assert.Equal(t, f.Pix, back.Pix)
}

func TestCenterSquare(t *testing.T) {
	assert.Equal(t, image.Rect(80, 0, 560, 480), CenterSquare(640, 480))
	assert.Equal(t, image.Rect(0, 80, 480, 560), CenterSquare(480, 640))
	assert.Equal(t, image.Rect(0, 0, 300, 300), CenterSquare(300, 300))
}

func TestCropResize(t *testing.T) {
	f := solidFrame(t, 64, 48, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	out, err := CropResize(f, CenterSquare(64, 48), 10, 10)
	require.NoError(t, err)
	require.Len(t, out, 10*10*3)
	for i := 0; i < len(out); i += 3 {
		assert.InDelta(t, 200, out[i], 1)
		assert.InDelta(t, 100, out[i+1], 1)
		assert.InDelta(t, 50, out[i+2], 1)
	}

	f.Pix[(1*64+2)*3] = 9
	exact, err := CropResize(f, image.Rect(2, 1, 4, 3), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, byte(9), exact[0], "an unscaled crop copies pixels")

	_, err = CropResize(f, image.Rect(60, 0, 70, 10), 10, 10)
	assert.True(t, errors.Is(err, ErrInvalidROI))

	_, err = CropResize(f, image.Rectangle{}, 10, 10)
	assert.True(t, errors.Is(err, ErrInvalidROI))

	_, err = CropResize(f, CenterSquare(64, 48), 0, 10)
	assert.Error(t, err)
}
