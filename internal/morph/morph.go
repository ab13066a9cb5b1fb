package morph

// Erode clears every sample whose neighbourhood contains an unset sample.
func Erode(mask []bool, size int) []bool {
	out := make([]bool, len(mask))
	if size <= 1 {
		copy(out, mask)
		return out
	}

	ones := prefixCount(mask)
	lo, hi := reach(size)
	for i := range mask {
		a, b := clip(i-lo, i+hi, len(mask))
		out[i] = ones[b]-ones[a] == b-a
	}
	return out
}

// Dilate sets every sample whose reflected neighbourhood contains a set sample.
func Dilate(mask []bool, size int) []bool {
	out := make([]bool, len(mask))
	if size <= 1 {
		copy(out, mask)
		return out
	}

	ones := prefixCount(mask)
	lo, hi := reach(size)
	for i := range mask {
		// reflected element: offsets [-hi, lo]
		a, b := clip(i-hi, i+lo, len(mask))
		out[i] = ones[b]-ones[a] > 0
	}
	return out
}

// Open removes set runs shorter than size.
func Open(mask []bool, size int) []bool {
	return Dilate(Erode(mask, size), size)
}

// Close fills unset gaps shorter than size.
func Close(mask []bool, size int) []bool {
	return Erode(Dilate(mask, size), size)
}

// CloseOpen fills short gaps and then removes short spikes.
func CloseOpen(mask []bool, size int) []bool {
	return Open(Close(mask, size), size)
}

// reach returns how far the element extends before and after its origin.
func reach(size int) (before, after int) {
	before = size / 2
	return before, size - 1 - before
}

// clip converts the inclusive range [from, to] into a half-open prefix range
// limited to [0, n).
func clip(from, to, n int) (int, int) {
	return max(from, 0), min(to+1, n)
}

// prefixCount returns c where c[i] is the number of set samples in mask[:i].
func prefixCount(mask []bool) []int {
	c := make([]int, len(mask)+1)
	for i, v := range mask {
		c[i+1] = c[i]
		if v {
			c[i+1]++
		}
	}
	return c
}
