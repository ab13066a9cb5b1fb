package vad

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// NumFrames returns ceil(|length-window| / shift).
//
// The absolute value differs from the textbook (length-window)/shift+1 count:
// a signal exactly one window long yields zero frames and a signal shorter than
// the window still yields a small positive count. Detection results depend on
// this count, so it is kept as is.
func NumFrames(length, windowLen, shift int) int {
	if shift <= 0 {
		return 0
	}
	diff := length - windowLen
	if diff < 0 {
		diff = -diff
	}
	return (diff + shift - 1) / shift
}

// Hamming returns the symmetric Hamming window of length n.
func Hamming(n int) []float64 {
	if n <= 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	if n == 1 {
		return w
	}
	return window.Hamming(w)
}

// Frame slices signal into overlapping Hamming-weighted frames of windowLen
// samples taken every shift samples. The tail is zero padded so the last
// frame is always complete.
func Frame(signal []float64, windowLen, shift int) ([][]float64, error) {
	frames, err := slice(signal, windowLen, shift)
	if err != nil {
		return nil, err
	}

	taper := Hamming(windowLen)
	for _, f := range frames {
		for j := range f {
			f[j] *= taper[j]
		}
	}
	return frames, nil
}

// slice returns the raw (unweighted) frames of the zero padded signal.
func slice(signal []float64, windowLen, shift int) ([][]float64, error) {
	if err := validateFraming(windowLen, shift); err != nil {
		return nil, err
	}

	n := NumFrames(len(signal), windowLen, shift)
	padded := make([]float64, n*shift+windowLen)
	copy(padded, signal)

	frames := make([][]float64, n)
	for i := range frames {
		start := i * shift
		frame := make([]float64, windowLen)
		copy(frame, padded[start:start+windowLen])
		frames[i] = frame
	}
	return frames, nil
}

func validateFraming(windowLen, shift int) error {
	if windowLen <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, windowLen)
	}
	if shift <= 0 {
		return fmt.Errorf("%w: shift must be positive, got %d", ErrInvalidConfig, shift)
	}
	if shift > windowLen {
		return fmt.Errorf("%w: shift (%d) must not exceed window (%d)", ErrInvalidConfig, shift, windowLen)
	}
	return nil
}

// square returns the element-wise square of signal.
func square(signal []float64) []float64 {
	out := make([]float64, len(signal))
	for i, v := range signal {
		out[i] = v * v
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
