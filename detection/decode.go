package detection

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/camdetect/geometry"
)

// ErrMalformedOutputs is returned when the output arrays do not hold the
// expected number of slots.
var ErrMalformedOutputs = errors.New("malformed detector outputs")

// Outputs holds the four parallel output tensors of an SSD post-processing
// head, flattened.
type Outputs struct {
	// Boxes holds 4 normalized values per slot in top, left, bottom, right
	// order.
	Boxes []float32
	// Classes holds the raw 0-indexed class value per slot.
	Classes []float32
	// Scores holds the confidence per slot.
	Scores []float32
	// Count is the number of valid slots reported by the model. The decoder
	// reads a fixed number of slots and relies on background padding instead.
	Count float32
}

// Slots is the number of complete slots present in every array.
func (o Outputs) Slots() int {
	n := len(o.Boxes) / 4
	if len(o.Classes) < n {
		n = len(o.Classes)
	}
	if len(o.Scores) < n {
		n = len(o.Scores)
	}
	return n
}

// Decode turns raw detector outputs into a per-category result set.
//
// Every slot up to maxDetections is read. Box coordinates and scores are
// clamped to [0, 1] since runtimes may emit slightly out of range values, and
// boxes are denormalized onto region with the (size-1) pixel-center scale.
// Slots whose class resolves to Background are padding and are dropped
// whatever their score.
//
// Arguments:
//   - out: The raw output arrays.
//   - table: The category table used to resolve class ids.
//   - region: The detector input canvas.
//   - frameID: The frame the outputs were computed for.
//   - maxDetections: The number of slots to read.
//
// Returns:
//   - Results: Detections grouped by category in slot order.
//   - error: ErrMalformedOutputs when fewer than maxDetections slots exist.
//
// @example
// results, err := Decode(out, COCO, geometry.NewSizedRegion(300, 300), 42, 10)
func Decode(out Outputs, table Table, region geometry.SizedRegion, frameID int, maxDetections int) (Results, error) {
	if maxDetections <= 0 {
		return Results{}, nil
	}
	if out.Slots() < maxDetections {
		return nil, errors.Wrapf(ErrMalformedOutputs, "need %d slots, have boxes=%d classes=%d scores=%d",
			maxDetections, len(out.Boxes), len(out.Classes), len(out.Scores))
	}

	boxes := tensor.New(
		tensor.WithShape(maxDetections, 4),
		tensor.WithBacking(out.Boxes[:maxDetections*4]),
	)

	scaleX := float32(region.Width - 1)
	scaleY := float32(region.Height - 1)

	results := make(Results)
	for i := 0; i < maxDetections; i++ {
		category := Resolve(table, out.Classes[i])
		if category == Background {
			continue
		}

		coords, err := slot(boxes, i)
		if err != nil {
			return nil, err
		}

		results.Add(Detection{
			Category: category,
			Score:    clamp01(out.Scores[i]),
			Box: geometry.Rect{
				Left:   clamp01(coords[1]) * scaleX,
				Top:    clamp01(coords[0]) * scaleY,
				Right:  clamp01(coords[3]) * scaleX,
				Bottom: clamp01(coords[2]) * scaleY,
			},
			Region:  region,
			FrameID: frameID,
		})
	}

	return results, nil
}

// slot reads the four box values of row i.
func slot(boxes *tensor.Dense, i int) ([4]float32, error) {
	var coords [4]float32
	for j := range coords {
		v, err := boxes.At(i, j)
		if err != nil {
			return coords, errors.Wrapf(ErrMalformedOutputs, "box %d: %v", i, err)
		}
		coords[j] = v.(float32)
	}
	return coords, nil
}

func clamp01(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return math32.Max(0, math32.Min(v, 1))
}
