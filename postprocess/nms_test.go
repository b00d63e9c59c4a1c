package postprocess

import (
	"math"
	"testing"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func det(id int64, class int, prob, l, t, r, b float32) DetectResult {
	return DetectResult{
		ID:          id,
		Class:       class,
		Probability: prob,
		Box:         BoxRect{Left: l, Top: t, Right: r, Bottom: b},
	}
}

func ids(dets []DetectResult) []int64 {
	out := make([]int64, 0, len(dets))
	for _, d := range dets {
		out = append(out, d.ID)
	}
	return out
}

func TestCalculateOverlap(t *testing.T) {
	a := BoxRect{Left: 0, Top: 0, Right: 10, Bottom: 10}

	assert.InDelta(t, 1.0, CalculateOverlap(a, a), 1e-6)
	assert.InDelta(t, 0.0, CalculateOverlap(a, BoxRect{Left: 20, Top: 20, Right: 30, Bottom: 30}), 1e-6)
	// half overlap: intersection 50, union 150
	assert.InDelta(t, 1.0/3.0, CalculateOverlap(a, BoxRect{Left: 5, Top: 0, Right: 15, Bottom: 10}), 1e-6)
	assert.Zero(t, CalculateOverlap(BoxRect{}, BoxRect{}))
}

func TestNMS(t *testing.T) {
	dets := []DetectResult{
		det(1, 2, 0.6, 0, 0, 10, 10),
		det(2, 2, 0.9, 1, 0, 11, 10),
		det(3, 2, 0.8, 50, 50, 60, 60),
		// same place as 2 but different class
		det(4, 7, 0.7, 1, 0, 11, 10),
	}

	got := NMS(dets, 0.5)

	if diff := cmp.Diff([]int64{2, 3, 4}, ids(got)); diff != "" {
		t.Errorf("NMS kept ids mismatch (-want +got):\n%s", diff)
	}

	got = NMSAgnostic(dets, 0.5)

	if diff := cmp.Diff([]int64{2, 3}, ids(got)); diff != "" {
		t.Errorf("NMSAgnostic kept ids mismatch (-want +got):\n%s", diff)
	}
}

func TestNMSEmpty(t *testing.T) {
	assert.Empty(t, NMS(nil, 0.5))
}

func TestFilterConfidenceIsStrict(t *testing.T) {
	const thresh = float32(0.3)
	eps := float32(1e-4)

	dets := []DetectResult{
		det(1, 2, thresh, 0, 0, 1, 1),
		det(2, 2, thresh+eps, 0, 0, 1, 1),
		det(3, 2, thresh-eps, 0, 0, 1, 1),
	}

	assert.Equal(t, []int64{2}, ids(FilterConfidence(dets, thresh)))
}

func TestExcludeClasses(t *testing.T) {
	dets := []DetectResult{
		det(1, 0, 0.9, 0, 0, 1, 1),
		det(2, 2, 0.9, 0, 0, 1, 1),
		det(3, 7, 0.9, 0, 0, 1, 1),
	}

	assert.Equal(t, []int64{2, 3}, ids(ExcludeClasses(dets, []int{0})))
	assert.Equal(t, []int64{1, 2, 3}, ids(ExcludeClasses(dets, nil)))
}

func TestBoxClipAndAnchor(t *testing.T) {
	b := BoxRect{Left: -10, Top: 5, Right: 700, Bottom: 500}.Clip(640, 480)

	assert.Equal(t, BoxRect{Left: 0, Top: 5, Right: 640, Bottom: 480}, b)

	p := Anchors([]DetectResult{{Box: b}}, geometry.BottomCenter)
	assert.InDelta(t, 320, p[0].X, 1e-9)
	assert.InDelta(t, 480, p[0].Y, 1e-9)
}

func TestFilterDegenerate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	dets := []DetectResult{
		det(1, 2, 0.9, 10, 10, 50, 40),
		// zero width
		det(2, 2, 0.9, 10, 10, 10, 40),
		// zero height
		det(3, 2, 0.9, 10, 10, 50, 10),
		// inverted
		det(4, 2, 0.9, 50, 40, 10, 10),
		det(5, 2, 0.9, nan, 10, 50, 40),
		det(6, 2, 0.9, 10, 10, inf, 40),
		det(7, 2, 0.9, 0, 0, 1, 1),
	}

	assert.Equal(t, []int64{1, 7}, ids(FilterDegenerate(dets)))
	assert.Empty(t, FilterDegenerate(nil))
}
