package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/camdetect/geometry"
)

// slotOutputs builds outputs with n background-padded slots and the given
// slots filled in at the front.
func slotOutputs(n int, filled ...rawSlot) Outputs {
	out := Outputs{
		Boxes:   make([]float32, n*4),
		Classes: make([]float32, n),
		Scores:  make([]float32, n),
		Count:   float32(len(filled)),
	}
	for i := range out.Classes {
		// -1 resolves to id 0, the background padding value.
		out.Classes[i] = -1
	}
	for i, s := range filled {
		copy(out.Boxes[i*4:], s.box[:])
		out.Classes[i] = s.class
		out.Scores[i] = s.score
	}
	return out
}

type rawSlot struct {
	box   [4]float32 // top, left, bottom, right
	class float32
	score float32
}

func TestDecodeDenormalizesBoxes(t *testing.T) {
	region := geometry.NewSizedRegion(300, 300)
	out := slotOutputs(10, rawSlot{box: [4]float32{0.5, 0.5, 1.0, 1.0}, class: 0, score: 0.9})

	results, err := Decode(out, COCO, region, 7, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[Person], 1)

	d := results[Person][0]
	assert.Equal(t, Person, d.Category)
	assert.InDelta(t, 0.9, d.Score, 1e-6)
	assert.InDelta(t, 149.5, d.Box.Left, 1e-4)
	assert.InDelta(t, 149.5, d.Box.Top, 1e-4)
	assert.InDelta(t, 299, d.Box.Right, 1e-4)
	assert.InDelta(t, 299, d.Box.Bottom, 1e-4)
	assert.Equal(t, region, d.Region)
	assert.Equal(t, 7, d.FrameID)
}

func TestDecodeDropsBackground(t *testing.T) {
	out := slotOutputs(10,
		rawSlot{box: [4]float32{0, 0, 1, 1}, class: -1, score: 0.99},
		rawSlot{box: [4]float32{0, 0, 1, 1}, class: 11, score: 0.99}, // id 12 is undefined
		rawSlot{box: [4]float32{0, 0, 1, 1}, class: 500, score: 0.99},
		rawSlot{box: [4]float32{0, 0, 1, 1}, class: -7, score: 0.99},
	)

	results, err := Decode(out, COCO, geometry.NewSizedRegion(300, 300), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, results.Count())
}

func TestDecodeClampsOutOfRangeValues(t *testing.T) {
	out := slotOutputs(10, rawSlot{box: [4]float32{-0.2, -0.1, 1.3, 1.01}, class: 2.4, score: 1.5})

	results, err := Decode(out, COCO, geometry.NewSizedRegion(300, 300), 1, 10)
	require.NoError(t, err)
	require.Len(t, results[Car], 1)

	d := results[Car][0]
	assert.Equal(t, geometry.R(0, 0, 299, 299), d.Box)
	assert.Equal(t, float32(1), d.Score)
}

func TestDecodePartitionsByCategoryInSlotOrder(t *testing.T) {
	out := slotOutputs(10,
		rawSlot{box: [4]float32{0, 0, 0.1, 0.1}, class: 0, score: 0.9},
		rawSlot{box: [4]float32{0, 0, 0.2, 0.2}, class: 2, score: 0.8},
		rawSlot{box: [4]float32{0, 0, 0.3, 0.3}, class: 0, score: 0.7},
	)

	results, err := Decode(out, COCO, geometry.NewSizedRegion(300, 300), 3, 10)
	require.NoError(t, err)

	assert.Equal(t, []Category{Person, Car}, results.Categories())
	require.Len(t, results[Person], 2)
	assert.InDelta(t, 0.9, results[Person][0].Score, 1e-6)
	assert.InDelta(t, 0.7, results[Person][1].Score, 1e-6)
	assert.Equal(t, 3, results.Count())
}

func TestDecodeRejectsShortOutputs(t *testing.T) {
	out := slotOutputs(5)

	_, err := Decode(out, COCO, geometry.NewSizedRegion(300, 300), 1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutputs)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		raw      float32
		expected Category
	}{
		{raw: 0, expected: Person},
		{raw: 0.4, expected: Person},
		{raw: 1.6, expected: Car},
		{raw: -1, expected: Background},
		{raw: 11, expected: Background},
		{raw: 89, expected: Category(90)},
		{raw: 90, expected: Background},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Resolve(COCO, tt.raw), "raw=%v", tt.raw)
	}
}
