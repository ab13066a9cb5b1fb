package audio

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Reverb convolves signal with an impulse response and keeps the centre of the
// full convolution so the output lines up with the input. The result always
// has len(signal) samples, taken from offset (len(ir)-1)/2 of the full
// convolution. numpy's mode='same' agrees unless ir is longer than signal, in
// which case numpy returns len(ir) samples.
func Reverb(signal, ir []float64) []float64 {
	out := make([]float64, len(signal))
	if len(ir) == 0 {
		return out
	}

	// full[k] = sum_j signal[k-j]*ir[j]; out[i] = full[i+offset]
	offset := (len(ir) - 1) / 2
	for i := range out {
		k := i + offset
		var acc float64
		for j := max(0, k-len(signal)+1); j <= min(k, len(ir)-1); j++ {
			acc += signal[k-j] * ir[j]
		}
		out[i] = acc
	}
	return out
}

// AddNoise adds zero mean white gaussian noise with the given deviation.
// The same seed always produces the same noise.
func AddNoise(signal []float64, sigma float64, seed uint64) ([]float64, error) {
	if sigma < 0 {
		return nil, fmt.Errorf("noise sigma cannot be negative, got %v", sigma)
	}

	out := make([]float64, len(signal))
	copy(out, signal)
	if sigma == 0 {
		return out, nil
	}

	noise := distuv.Normal{
		Mu:    0,
		Sigma: sigma,
		Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
	for i := range out {
		out[i] += noise.Rand()
	}
	return out, nil
}
