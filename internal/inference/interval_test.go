package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Interval{}, Summarize(nil, 0.95))
}

func TestSummarize_UniformDraws(t *testing.T) {
	draws := make([]float64, 1001)
	for i := range draws {
		draws[i] = float64(i) // 0..1000
	}

	iv := Summarize(draws, 0.9)

	assert.InDelta(t, 500, iv.Mean, 1e-9)
	assert.InDelta(t, 50, iv.Lower, 1.0)
	assert.InDelta(t, 950, iv.Upper, 1.0)
	assert.Less(t, iv.Lower, iv.Upper)
}

func TestSummarize_InvalidMassFallsBack(t *testing.T) {
	draws := []float64{1, 2, 3, 4, 5}

	got := Summarize(draws, 0)
	want := Summarize(draws, DefaultCredibleMass)
	assert.Equal(t, want, got)

	got = Summarize(draws, 1.5)
	assert.Equal(t, want, got)
}

func TestSummarize_DoesNotMutateInput(t *testing.T) {
	draws := []float64{5, 1, 4, 2, 3}
	Summarize(draws, 0.5)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, draws)
}

func TestSummarize_SingleDraw(t *testing.T) {
	iv := Summarize([]float64{7}, 0.95)
	assert.Equal(t, 7.0, iv.Mean)
	assert.Equal(t, 7.0, iv.Lower)
	assert.Equal(t, 7.0, iv.Upper)
}
