// Package detection - Detection records, per-category result sets and the
// decoding of raw SSD output tensors into them.
package detection

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
)

// Category is a 1-indexed object class id. Zero is reserved for "no object".
type Category int

// Background is the padding class the detector emits for empty slots.
const Background Category = 0

// String returns the COCO label for c, or a numeric placeholder.
func (c Category) String() string {
	if label, ok := COCO.Label(c); ok {
		return label
	}
	return fmt.Sprintf("unknown_%d", int(c))
}

// Table is an id to label lookup for a model's output classes.
type Table interface {
	// Label returns the label for c and whether c is defined.
	Label(c Category) (string, bool)
	// Max is the largest defined id.
	Max() Category
}

// Resolve converts a raw class value emitted by the model into a Category.
//
// The model emits 0-indexed class ids as floats; they are rounded to the
// nearest integer and shifted by one so they line up with the table, where 0
// means background. Values outside [0, table.Max()] or not defined in the
// table resolve to Background.
//
// Arguments:
//   - table: The category table the model was trained against.
//   - raw: The raw class value from the output tensor.
//
// Returns:
//   - Category: The resolved category.
func Resolve(table Table, raw float32) Category {
	if math32.IsNaN(raw) || math32.IsInf(raw, 0) {
		return Background
	}
	id := math32.Round(raw) + 1
	if id < 0 || id > float32(table.Max()) {
		return Background
	}
	c := Category(id)
	if _, ok := table.Label(c); !ok {
		return Background
	}
	return c
}

// MapTable is a Table backed by a map.
type MapTable struct {
	labels map[Category]string
	max    Category
}

// NewTable builds a Table from an id to label map. Background is always
// defined.
func NewTable(labels map[Category]string) *MapTable {
	t := &MapTable{labels: make(map[Category]string, len(labels)+1)}
	t.labels[Background] = "background"
	for c, label := range labels {
		if c < 0 {
			continue
		}
		t.labels[c] = label
		if c > t.max {
			t.max = c
		}
	}
	return t
}

// Label implements Table.
func (t *MapTable) Label(c Category) (string, bool) {
	label, ok := t.labels[c]
	return label, ok
}

// Max implements Table.
func (t *MapTable) Max() Category {
	return t.max
}

// Categories returns the defined ids in ascending order, Background excluded.
func (t *MapTable) Categories() []Category {
	out := make([]Category, 0, len(t.labels))
	for c := range t.labels {
		if c != Background {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// COCO categories as numbered by the TensorFlow object detection API. The id
// space is sparse: 12, 26, 29, 30, 45, 66, 68, 69, 71 and 83 are unused.
const (
	Person       Category = 1
	Bicycle      Category = 2
	Car          Category = 3
	Motorcycle   Category = 4
	Bus          Category = 6
	Truck        Category = 8
	TrafficLight Category = 10
	StopSign     Category = 13
	Cat          Category = 17
	Dog          Category = 18
)

// COCO is the 90-id category table of SSD MobileNet COCO models.
var COCO = NewTable(map[Category]string{
	1: "person", 2: "bicycle", 3: "car", 4: "motorcycle", 5: "airplane",
	6: "bus", 7: "train", 8: "truck", 9: "boat", 10: "traffic light", 11: "fire hydrant",
	13: "stop sign", 14: "parking meter", 15: "bench", 16: "bird", 17: "cat", 18: "dog", 19: "horse",
	20: "sheep", 21: "cow", 22: "elephant", 23: "bear", 24: "zebra", 25: "giraffe", 27: "backpack",
	28: "umbrella", 31: "handbag", 32: "tie", 33: "suitcase", 34: "frisbee", 35: "skis", 36: "snowboard",
	37: "sports ball", 38: "kite", 39: "baseball bat", 40: "baseball glove", 41: "skateboard",
	42: "surfboard", 43: "tennis racket", 44: "bottle", 46: "wine glass", 47: "cup", 48: "fork",
	49: "knife", 50: "spoon", 51: "bowl", 52: "banana", 53: "apple", 54: "sandwich", 55: "orange",
	56: "broccoli", 57: "carrot", 58: "hot dog", 59: "pizza", 60: "donut", 61: "cake", 62: "chair",
	63: "couch", 64: "potted plant", 65: "bed", 67: "dining table", 70: "toilet", 72: "tv",
	73: "laptop", 74: "mouse", 75: "remote", 76: "keyboard", 77: "cell phone", 78: "microwave",
	79: "oven", 80: "toaster", 81: "sink", 82: "refrigerator", 84: "book", 85: "clock", 86: "vase",
	87: "scissors", 88: "teddy bear", 89: "hair drier", 90: "toothbrush",
})
