package speed

import (
	"errors"
	"math"
	"testing"

	"github.com/Mahdijamebozorg/vehicles-track-count-and-speed-estimation/geometry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryEvictsOldest(t *testing.T) {

	h := NewHistory(3)

	_, ok := h.Oldest()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		h.Push(float64(i))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 3, h.Cap())

	if diff := cmp.Diff([]float64{3, 4, 5}, h.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	oldest, _ := h.Oldest()
	newest, _ := h.Newest()
	assert.Equal(t, 3.0, oldest)
	assert.Equal(t, 5.0, newest)
}

func TestHistoryMinimumCapacity(t *testing.T) {

	h := NewHistory(0)
	h.Push(1)
	h.Push(2)

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, []float64{2}, h.Values())
}

func TestEstimateInsufficientHistory(t *testing.T) {

	e, err := NewEstimator(30)
	require.NoError(t, err)

	_, err = e.Estimate(1)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	for i := 0; i < 14; i++ {
		e.Update(1, geometry.Pt(0, float64(i)))
	}

	_, err = e.Estimate(1)
	assert.True(t, errors.Is(err, ErrInsufficientHistory), "14 of 30 samples")

	e.Update(1, geometry.Pt(0, 14))

	v, err := e.Estimate(1)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v))
	assert.GreaterOrEqual(t, v, 0.0)
}

func TestEstimateStationary(t *testing.T) {

	e, err := NewEstimator(25)
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		e.Update(4, geometry.Pt(12, 100))
	}

	v, err := e.Estimate(4)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-9)
}

func TestEstimateConstantVelocity(t *testing.T) {

	tests := []struct {
		name string
		rate float64
		step float64
	}{
		{"30 fps forward", 30, 0.5},
		{"25 fps backward", 25, -0.8},
		{"60 fps slow", 60, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			e, err := NewEstimator(tt.rate)
			require.NoError(t, err)

			// keep going past a full window so eviction is exercised
			for i := 0; i < 3*e.Capacity(); i++ {
				e.Update(1, geometry.Pt(5, 200+tt.step*float64(i)))
			}

			want := math.Abs(tt.step) * tt.rate * KmphPerMps

			v, err := e.Estimate(1)
			require.NoError(t, err)
			assert.InEpsilon(t, want, v, 0.05)
			assert.Equal(t, e.Capacity(), e.Len(1))
		})
	}
}

func TestEstimateIgnoresHorizontalMotion(t *testing.T) {

	e, err := NewEstimator(10)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		e.Update(1, geometry.Pt(float64(i*10), 50))
	}

	v, err := e.Estimate(1)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestEstimatorRemoveAndReset(t *testing.T) {

	e, err := NewEstimator(10)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		e.Update(1, geometry.Pt(0, float64(i)))
		e.Update(2, geometry.Pt(0, float64(i)))
	}

	assert.Equal(t, 2, e.Tracks())

	e.Remove(1)
	assert.Equal(t, 0, e.Len(1))
	assert.Equal(t, 1, e.Tracks())

	_, err = e.Estimate(1)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	e.Reset()
	assert.Equal(t, 0, e.Tracks())
}

func TestEstimatorFactor(t *testing.T) {

	e, err := NewEstimatorWithFactor(10, 1)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		e.Update(1, geometry.Pt(0, float64(i)))
	}

	// 9 units over 10 samples at 10 per second
	v, err := e.Estimate(1)
	require.NoError(t, err)
	assert.InDelta(t, 9, v, 1e-9)
}

func TestNewEstimatorInvalidRate(t *testing.T) {

	for _, rate := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := NewEstimator(rate)
		assert.True(t, errors.Is(err, ErrInvalidRate), "rate %v", rate)
	}

	_, err := NewEstimatorWithFactor(30, 0)
	assert.True(t, errors.Is(err, ErrInvalidRate))
}
