package detection

import (
	"fmt"
	"sort"

	"github.com/nvr-ai/camdetect/geometry"
)

// Detection is a single scored box for one category on one frame.
type Detection struct {
	Category Category
	// Score is the model confidence in [0, 1].
	Score float32
	Box   geometry.Rect
	// Region is the canvas Box is expressed in.
	Region  geometry.SizedRegion
	FrameID int
}

func (d Detection) String() string {
	return fmt.Sprintf("Category: %s, Score: %.3f, Box: %s, Frame size: %s, Frame ID: %d",
		d.Category, d.Score, d.Box, d.Region, d.FrameID)
}

// Results partitions the detections of one frame by category. Each list keeps
// detector output order and is never empty.
type Results map[Category][]Detection

// Add appends d to its category's list.
func (r Results) Add(d Detection) {
	r[d.Category] = append(r[d.Category], d)
}

// Count is the number of detections across all categories.
func (r Results) Count() int {
	n := 0
	for _, list := range r {
		n += len(list)
	}
	return n
}

// Categories returns the present categories in ascending id order.
func (r Results) Categories() []Category {
	out := make([]Category, 0, len(r))
	for c := range r {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Flatten lists every detection, ordered by category id and then by
// detector output order within a category.
func (r Results) Flatten() []Detection {
	out := make([]Detection, 0, r.Count())
	for _, c := range r.Categories() {
		out = append(out, r[c]...)
	}
	return out
}

// Remap builds a new Results by passing every detection through fn. fn
// returns false to drop a detection; categories left without detections are
// omitted. The mapped detection is filed under its own Category.
//
// Arguments:
//   - fn: The per-detection mapping.
//
// Returns:
//   - Results: A new, independent result set.
func (r Results) Remap(fn func(Detection) (Detection, bool)) Results {
	out := make(Results, len(r))
	for _, c := range r.Categories() {
		for _, d := range r[c] {
			if nd, ok := fn(d); ok {
				out.Add(nd)
			}
		}
	}
	return out
}

// Filter keeps detections scoring at least minScore.
func (r Results) Filter(minScore float32) Results {
	return r.Remap(func(d Detection) (Detection, bool) {
		return d, d.Score >= minScore
	})
}

// Postprocessor filters or rewrites a result set.
type Postprocessor func(Results) Results

// NewScoreFilter returns a Postprocessor dropping detections below minScore.
func NewScoreFilter(minScore float32) Postprocessor {
	return func(r Results) Results {
		return r.Filter(minScore)
	}
}
