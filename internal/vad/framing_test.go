package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumFrames(t *testing.T) {
	tests := []struct {
		name   string
		length int
		window int
		shift  int
		want   int
	}{
		{name: "longer than window", length: 1000, window: 320, shift: 160, want: 5},
		{name: "two seconds at 8kHz", length: 16000, window: 320, shift: 160, want: 98},
		{name: "exactly one window", length: 320, window: 320, shift: 160, want: 0},
		{name: "shorter than window", length: 100, window: 320, shift: 160, want: 2},
		{name: "empty signal", length: 0, window: 4, shift: 2, want: 2},
		{name: "no overlap", length: 10, window: 2, shift: 2, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NumFrames(tt.length, tt.window, tt.shift))
		})
	}
}

func TestFrameValidation(t *testing.T) {
	tests := []struct {
		name   string
		window int
		shift  int
	}{
		{name: "zero window", window: 0, shift: 1},
		{name: "negative shift", window: 4, shift: -1},
		{name: "zero shift", window: 4, shift: 0},
		{name: "shift larger than window", window: 4, shift: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Frame(make([]float64, 100), tt.window, tt.shift)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSliceMatchesPaddedSignal(t *testing.T) {
	const (
		length = 1001
		window = 64
		shift  = 24
	)
	signal := make([]float64, length)
	for i := range signal {
		signal[i] = float64(i + 1)
	}

	frames, err := slice(signal, window, shift)
	require.NoError(t, err)
	require.Len(t, frames, NumFrames(length, window, shift))

	for i, f := range frames {
		require.Len(t, f, window)
		for j, v := range f {
			idx := i*shift + j
			want := 0.0
			if idx < length {
				want = signal[idx]
			}
			require.Equalf(t, want, v, "frame %d sample %d", i, j)
		}
	}
}

func TestFrameAppliesHamming(t *testing.T) {
	signal := make([]float64, 50)
	for i := range signal {
		signal[i] = 2
	}

	frames, err := Frame(signal, 8, 4)
	require.NoError(t, err)
	require.NotEmpty(t, frames)

	w := Hamming(8)
	for j, v := range frames[0] {
		assert.InDelta(t, 2*w[j], v, 1e-12)
	}
	assert.Equal(t, 2.0, signal[0], "input must not be modified")
}

func TestHamming(t *testing.T) {
	assert.Equal(t, []float64{1}, Hamming(1))
	assert.Nil(t, Hamming(0))

	w := Hamming(9)
	require.Len(t, w, 9)
	assert.InDelta(t, 0.08, w[0], 1e-12)
	assert.InDelta(t, 1.0, w[4], 1e-12)
	for i := range w {
		assert.InDelta(t, w[i], w[len(w)-1-i], 1e-12)
	}
}
