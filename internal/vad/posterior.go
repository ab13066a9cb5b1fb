package vad

// Posterior returns, for every observation, the probability that it belongs to
// the non-speech component of m.
func Posterior(x []float64, m Model, density DensityFunc) []float64 {
	if density == nil {
		density = GaussPDF
	}
	post := make([]float64, len(x))
	row := make([]float64, len(m.Components))
	for i, v := range x {
		responsibility(v, m, density, row)
		post[i] = row[NonSpeech]
	}
	return post
}
