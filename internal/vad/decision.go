package vad

// Decide marks a frame as speech when its non-speech posterior is below threshold.
func Decide(posterior []float64, threshold float64) []bool {
	mask := make([]bool, len(posterior))
	for i, p := range posterior {
		mask[i] = p < threshold
	}
	return mask
}

// Upsample expands frame decisions to a sample mask of the given length.
// Frame i covers samples [i*shift, (i+1)*shift); samples past the last frame's
// span take the last frame's decision.
func Upsample(frames []bool, shift, length int) []bool {
	mask := make([]bool, length)
	if len(frames) == 0 || shift <= 0 {
		return mask
	}

	for i, speech := range frames {
		start := i * shift
		if start >= length {
			break
		}
		end := min(start+shift, length)
		for j := start; j < end; j++ {
			mask[j] = speech
		}
	}

	last := frames[len(frames)-1]
	for j := len(frames) * shift; j < length; j++ {
		mask[j] = last
	}
	return mask
}
