package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestEnergy(t *testing.T) {
	frames := [][]float64{
		{1, 2, 3},
		{0, 0, 0},
		{-1, 0.5, 0.25},
	}

	e := Energy(frames)
	require.Len(t, e, len(frames))
	assert.Equal(t, 6.0, e[0])
	assert.Equal(t, 0.0, e[1])
	assert.Equal(t, -0.25, e[2])
	assert.Empty(t, Energy(nil))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input []float64
	}{
		{name: "small ramp", input: []float64{1, 2, 3, 4, 10}},
		{name: "two values", input: []float64{-5, 5}},
		{name: "large offset", input: []float64{1e6 + 1, 1e6 + 3, 1e6 + 2, 1e6 + 9}},
		{name: "tiny scale", input: []float64{1e-14, 3e-14, 2e-14, 9e-14}},
		{name: "tiny scale around zero", input: []float64{-2e-20, 1e-20, 4e-20, -3e-20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.input)
			require.NoError(t, err)
			require.Len(t, out, len(tt.input))

			mean, variance := stat.PopMeanVariance(out, nil)
			assert.InDelta(t, 0, mean, 1e-9)
			assert.InDelta(t, 1, variance, 1e-9)
		})
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	tests := []struct {
		name  string
		input []float64
	}{
		{name: "constant", input: []float64{3, 3, 3, 3}},
		{name: "constant with rounding", input: []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}},
		{name: "tiny constant", input: []float64{1e-14, 1e-14, 1e-14}},
		{name: "all zero", input: []float64{0, 0, 0, 0}},
		{name: "single value", input: []float64{1}},
		{name: "empty", input: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.input)
			require.ErrorIs(t, err, ErrZeroVariance)
		})
	}
}
