package timeseries

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Date  string
	Value float64
}

func makeSeries(n int) []sample {
	out := make([]sample, n)
	for i := range out {
		out[i] = sample{Date: fmt.Sprintf("d%04d", i), Value: float64(i)}
	}
	return out
}

func sampleKey(s sample) string { return s.Date }

func TestDownsample_IdentityWhenWithinBudget(t *testing.T) {
	points := makeSeries(80)

	assert.Equal(t, points, Downsample(points, 100, sampleKey))
	assert.Equal(t, points, Downsample(points, 80, sampleKey))
	assert.Equal(t, points, Downsample(points, 0, sampleKey))

	var empty []sample
	assert.Nil(t, Downsample(empty, 100, sampleKey))
}

func TestDownsample_Bounds(t *testing.T) {
	tests := []struct {
		length int
		max    int
	}{
		{length: 101, max: 100},
		{length: 200, max: 100},
		{length: 201, max: 100},
		{length: 1000, max: 100},
		{length: 2500, max: 900},
		{length: 7, max: 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("len=%d max=%d", tt.length, tt.max), func(t *testing.T) {
			points := makeSeries(tt.length)
			out := Downsample(points, tt.max, sampleKey)

			assert.LessOrEqual(t, len(out), tt.max)
			assert.Equal(t, points[0], out[0], "first element preserved")
			assert.Equal(t, points[tt.length-1], out[len(out)-1], "last element preserved")

			// Order and exact values survive: every output element exists in the
			// input and the walk never moves backwards.
			prev := -1.0
			for _, s := range out {
				assert.Greater(t, s.Value, prev)
				prev = s.Value
			}
		})
	}
}

func TestDownsample_UniformStride(t *testing.T) {
	points := makeSeries(11)
	out := Downsample(points, 5, sampleKey)

	// stride = ceil(11/5) = 3 keeps 0,3,6,9; the trailing element is appended
	// because the walk stopped short of the budget.
	assert.Equal(t, []sample{
		points[0], points[3], points[6], points[9], points[10],
	}, out)
}

func TestDownsample_LastReplacesWhenBudgetSpent(t *testing.T) {
	// stride = 2 lands on index 198, so the walk fills the full budget without
	// the final point. It must replace the last kept sample, not grow past max.
	points := makeSeries(200)
	out := Downsample(points, 100, sampleKey)

	assert.Len(t, out, 100)
	assert.Equal(t, points[199], out[99])
	assert.Equal(t, points[196], out[98])
}
