package camera

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/camdetect/detection"
)

// DefaultScoreThreshold hides low confidence boxes when drawing.
const DefaultScoreThreshold = 0.25

// Overlay draws detection snapshots onto BGR frames.
type Overlay struct {
	// ScoreThreshold is the minimum score drawn.
	ScoreThreshold float32
	BoxColor       color.RGBA
	ROIColor       color.RGBA
	Thickness      int
}

// NewOverlay returns an overlay with the default threshold and green boxes.
func NewOverlay() Overlay {
	return Overlay{
		ScoreThreshold: DefaultScoreThreshold,
		BoxColor:       color.RGBA{G: 255},
		ROIColor:       color.RGBA{R: 255, G: 255},
		Thickness:      2,
	}
}

// Draw renders every detection at or above the threshold with a
// "label: score" caption.
//
// Arguments:
//   - img: The BGR frame the results were mapped onto.
//   - results: The snapshot to draw.
//
// Returns:
//   - int: The number of boxes drawn.
//   - error: If OpenCV fails to draw.
func (o Overlay) Draw(img *gocv.Mat, results detection.Results) (int, error) {
	drawn := 0
	for _, d := range results.Flatten() {
		if d.Score < o.ScoreThreshold {
			continue
		}
		box := d.Box.ToImageRect()
		if err := gocv.Rectangle(img, box, o.BoxColor, o.Thickness); err != nil {
			return drawn, errors.Wrap(err, "draw box")
		}
		label := fmt.Sprintf("%s: %.2f", d.Category, d.Score)
		pt := image.Pt(box.Min.X, max(box.Min.Y-5, 12))
		if err := gocv.PutText(img, label, pt, gocv.FontHersheySimplex, 0.5, o.BoxColor, 1); err != nil {
			return drawn, errors.Wrap(err, "draw label")
		}
		drawn++
	}
	return drawn, nil
}

// DrawROI outlines the region fed to the detector.
func (o Overlay) DrawROI(img *gocv.Mat, roi image.Rectangle) error {
	return errors.Wrap(gocv.Rectangle(img, roi, o.ROIColor, 1), "draw roi")
}

// DrawStatus writes a status line in the top-left corner.
func (o Overlay) DrawStatus(img *gocv.Mat, text string) error {
	return errors.Wrap(gocv.PutText(img, text, image.Pt(10, 30), gocv.FontHersheyPlain, 1.2, color.RGBA{R: 255, G: 255, B: 255}, 2), "draw status")
}
