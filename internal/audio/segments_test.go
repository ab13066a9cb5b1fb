package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegments(t *testing.T) {
	const T, F = true, false

	tests := []struct {
		name string
		mask []bool
		want []Segment
	}{
		{name: "empty", mask: nil, want: nil},
		{name: "all silence", mask: []bool{F, F, F}, want: nil},
		{name: "all speech", mask: []bool{T, T}, want: []Segment{{0, 2}}},
		{name: "inner and trailing", mask: []bool{F, T, T, F, F, T}, want: []Segment{{1, 3}, {5, 6}}},
		{name: "leading", mask: []bool{T, F, F}, want: []Segment{{0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Segments(tt.mask)
			assert.Equal(t, tt.want, segs)
			assert.Equal(t, len(tt.mask), len(SegmentsToMask(segs, len(tt.mask))))
			if len(tt.mask) > 0 {
				assert.Equal(t, tt.mask, SegmentsToMask(segs, len(tt.mask)))
			}
		})
	}
}

func TestSegmentsToMaskClips(t *testing.T) {
	mask := SegmentsToMask([]Segment{{-3, 2}, {4, 10}}, 6)
	assert.Equal(t, []bool{true, true, false, false, true, true}, mask)
}

func TestSegmentSeconds(t *testing.T) {
	start, end := Segment{Start: 8000, End: 12000}.Seconds(16000)
	assert.Equal(t, 0.5, start)
	assert.Equal(t, 0.75, end)
	assert.Equal(t, 4000, Segment{Start: 8000, End: 12000}.Len())
	assert.Equal(t, 7, TotalSamples([]Segment{{0, 3}, {5, 9}}))
}
