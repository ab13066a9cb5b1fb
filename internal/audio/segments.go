package audio

// Segment is a half-open range [Start, End) of speech samples.
type Segment struct {
	Start int `json:"start_sample"`
	End   int `json:"end_sample"`
}

// Len returns the segment length in samples.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Seconds returns the segment bounds in seconds.
func (s Segment) Seconds(sampleRate int) (start, end float64) {
	if sampleRate <= 0 {
		return 0, 0
	}
	sr := float64(sampleRate)
	return float64(s.Start) / sr, float64(s.End) / sr
}

// Segments groups consecutive speech samples of mask.
func Segments(mask []bool) []Segment {
	var segs []Segment
	start := -1
	for i, speech := range mask {
		switch {
		case speech && start < 0:
			start = i
		case !speech && start >= 0:
			segs = append(segs, Segment{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		segs = append(segs, Segment{Start: start, End: len(mask)})
	}
	return segs
}

// SegmentsToMask renders segments into a mask of the given length. Parts of a
// segment outside [0, length) are dropped.
func SegmentsToMask(segs []Segment, length int) []bool {
	mask := make([]bool, length)
	for _, s := range segs {
		from, to := max(s.Start, 0), min(s.End, length)
		for i := from; i < to; i++ {
			mask[i] = true
		}
	}
	return mask
}

// TotalSamples returns the number of samples covered by segs.
func TotalSamples(segs []Segment) int {
	var n int
	for _, s := range segs {
		n += s.Len()
	}
	return n
}
