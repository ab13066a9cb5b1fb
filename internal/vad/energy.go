package vad

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const minRelStdDev = 1e-12

// Energy reduces every frame to the plain sum of its values.
func Energy(frames [][]float64) []float64 {
	e := make([]float64, len(frames))
	for i, f := range frames {
		e[i] = floats.Sum(f)
	}
	return e
}

// Normalize standardizes energy to zero mean and unit population variance.
func Normalize(energy []float64) ([]float64, error) {
	if len(energy) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 values, got %d", ErrZeroVariance, len(energy))
	}

	mean, std := stat.PopMeanStdDev(energy, nil)
	if !finite(mean) {
		return nil, fmt.Errorf("%w: non-finite mean %v", ErrZeroVariance, mean)
	}
	// Rounding can leave a tiny (or NaN) deviation on constant input. The
	// bound is relative so quiet recordings still normalize.
	if !finite(std) || std == 0 || std <= minRelStdDev*math.Abs(mean) {
		return nil, fmt.Errorf("%w: %d values around %v", ErrZeroVariance, len(energy), mean)
	}

	out := make([]float64, len(energy))
	for i, v := range energy {
		out[i] = (v - mean) / std
	}
	return out, nil
}
