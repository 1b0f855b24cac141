package frames

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestListImageFilesSortsByFrameNumber(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame-10.png"), 4, 3, color.RGBA{A: 255})
	writePNG(t, filepath.Join(dir, "frame-2.png"), 4, 3, color.RGBA{A: 255})
	writePNG(t, filepath.Join(dir, "frame-1.png"), 4, 3, color.RGBA{A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{files[0].Frame, files[1].Frame, files[2].Frame})

	_, err = ListImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame-1.png"), 4, 3, color.RGBA{R: 10, A: 255})
	writePNG(t, filepath.Join(dir, "frame-2.png"), 4, 3, color.RGBA{R: 20, A: 255})
	ctx := context.Background()

	src, err := NewDirectorySource(dir, false)
	require.NoError(t, err)
	w, h := src.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)
	assert.Equal(t, 2, src.Len())

	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, byte(10), first.Pix[0])

	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(20), second.Pix[0])

	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))
	require.NoError(t, src.Close())

	looping, err := NewDirectorySource(dir, true)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		f, err := looping.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, f.ID, "ids keep increasing across loops")
		if i == 3 {
			assert.Equal(t, byte(10), f.Pix[0], "the third frame replays frame-1")
		}
	}

	require.NoError(t, looping.Close())
	_, err = looping.Next(ctx)
	assert.Error(t, err)
}

func TestDirectorySourceDecodesGIFAndBMP(t *testing.T) {
	dir := t.TempDir()
	fill := color.RGBA{R: 30, G: 60, B: 90, A: 255}

	paletted := image.NewPaletted(image.Rect(0, 0, 4, 3), color.Palette{fill})
	gf, err := os.Create(filepath.Join(dir, "frame-1.gif"))
	require.NoError(t, err)
	require.NoError(t, gif.Encode(gf, paletted, nil))
	require.NoError(t, gf.Close())

	rgba := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := 0; i < len(rgba.Pix); i += 4 {
		rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2], rgba.Pix[i+3] = fill.R, fill.G, fill.B, fill.A
	}
	bf, err := os.Create(filepath.Join(dir, "frame-2.BMP"))
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(bf, rgba))
	require.NoError(t, bf.Close())

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	src, err := NewDirectorySource(dir, false)
	require.NoError(t, err)
	defer src.Close()

	for i := 1; i <= 2; i++ {
		f, err := src.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, f.ID)
		assert.Equal(t, []byte{30, 60, 90}, f.Pix[:3])
	}
}

func TestDirectorySourceRejectsEmptyDir(t *testing.T) {
	_, err := NewDirectorySource(t.TempDir(), false)
	assert.Error(t, err)
}

func TestSyntheticSource(t *testing.T) {
	src := NewSyntheticSource(32, 24, 2)
	ctx := context.Background()

	a, err := src.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Validate())
	assert.Equal(t, 1, a.ID)

	b, err := src.Next(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.Pix, b.Pix, "the square moves between frames")

	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))

	again := NewSyntheticSource(32, 24, 0)
	c, err := again.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, c.Pix, "rendering is deterministic")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = again.Next(cancelled)
	assert.True(t, errors.Is(err, context.Canceled))
}
