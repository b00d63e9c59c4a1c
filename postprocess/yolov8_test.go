package postprocess

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLetterbox(t *testing.T) {

	lb := NewLetterbox(1280, 720, 640, 640)

	assert.Equal(t, float32(0.5), lb.Scale)
	assert.Equal(t, 640, lb.ResizeWidth)
	assert.Equal(t, 360, lb.ResizeHeight)
	assert.Equal(t, 0, lb.XPad)
	assert.Equal(t, 140, lb.YPad)

	// portrait source pads the sides
	lb = NewLetterbox(720, 1280, 640, 640)
	assert.Equal(t, 360, lb.ResizeWidth)
	assert.Equal(t, 140, lb.XPad)
	assert.Equal(t, 0, lb.YPad)

	tests := []struct {
		srcWidth, srcHeight int
		xPad, yPad          int
		scale               float32
	}{
		{800, 1000, 64, 0, 0.64},
		{800, 800, 0, 0, 0.8},
	}

	for _, tc := range tests {
		lb := NewLetterbox(tc.srcWidth, tc.srcHeight, 640, 640)
		assert.Equal(t, tc.xPad, lb.XPad, "src %dx%d", tc.srcWidth, tc.srcHeight)
		assert.Equal(t, tc.yPad, lb.YPad, "src %dx%d", tc.srcWidth, tc.srcHeight)
		assert.InDelta(t, tc.scale, lb.Scale, 1e-6)
	}
}

func TestLetterboxToSource(t *testing.T) {

	lb := NewLetterbox(1280, 720, 640, 640)

	got := lb.ToSource(BoxRect{Left: 80, Top: 230, Right: 120, Bottom: 250})
	want := BoxRect{Left: 160, Top: 180, Right: 240, Bottom: 220}

	assert.Equal(t, want, got)

	// padding maps outside the frame and is clipped
	got = lb.ToSource(BoxRect{Left: 0, Top: 100, Right: 20, Bottom: 150})
	assert.Equal(t, float32(0), got.Top)
}

// yoloOutput lays out per anchor rows of cx, cy, w, h and class scores into
// the [4+classes, anchors] tensor order
func yoloOutput(anchors [][]float32) []float32 {

	rows := len(anchors[0])
	out := make([]float32, rows*len(anchors))

	for a, vals := range anchors {
		for r, v := range vals {
			out[r*len(anchors)+a] = v
		}
	}

	return out
}

func TestYOLOv8DetectObjects(t *testing.T) {

	y := NewYOLOv8(YOLOv8Params{BoxThreshold: 0.25, ObjectClassNum: 2, InputSize: 640})
	lb := NewLetterbox(1280, 720, 640, 640)

	output := yoloOutput([][]float32{
		{100, 240, 40, 20, 0.1, 0.9},
		{300, 300, 50, 50, 0.2, 0.1},
		{630, 490, 40, 40, 0.6, 0.3},
	})

	dets, err := y.DetectObjects(output, lb)
	require.NoError(t, err)

	want := []DetectResult{
		{
			Class:       1,
			Box:         BoxRect{Left: 160, Top: 180, Right: 240, Bottom: 220},
			Probability: 0.9,
		},
		{
			Class:       0,
			Box:         BoxRect{Left: 1220, Top: 660, Right: 1280, Bottom: 720},
			Probability: 0.6,
		},
	}

	if diff := cmp.Diff(want, dets); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}
}

func TestYOLOv8DetectObjectsShape(t *testing.T) {

	y := NewYOLOv8(YOLOv8COCOParams())

	_, err := y.DetectObjects(make([]float32, 85), NewLetterbox(640, 640, 640, 640))
	assert.True(t, errors.Is(err, ErrOutputShape))

	_, err = y.DetectObjects(nil, NewLetterbox(640, 640, 640, 640))
	assert.True(t, errors.Is(err, ErrOutputShape))

	n, err := y.Anchors(84 * 8400)
	require.NoError(t, err)
	assert.Equal(t, 8400, n)
}
