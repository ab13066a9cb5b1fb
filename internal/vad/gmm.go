package vad

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"
)

// NonSpeech is the index of the non-speech component in a trained Model.
// Train sorts components by ascending mean, so it is the lowest-energy one.
const NonSpeech = 0

// DensityFunc evaluates a univariate probability density at x.
type DensityFunc func(x, mean, stddev float64) float64

// GaussPDF is the normal density N(x; mean, stddev^2).
func GaussPDF(x, mean, stddev float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: stddev}.Prob(x)
}

// Component is one weighted gaussian of the mixture.
type Component struct {
	Weight float64 `json:"weight" yaml:"weight"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
}

// Model is a univariate gaussian mixture.
type Model struct {
	Components []Component `json:"components"`
}

// DefaultModel returns the 3-component starting point used for normalized
// energy: equal weights, means spread over [-1, 1] and unit deviations.
func DefaultModel() Model {
	return Model{Components: []Component{
		{Weight: 1.0 / 3, Mean: -1, StdDev: 1},
		{Weight: 1.0 / 3, Mean: 0, StdDev: 1},
		{Weight: 1.0 / 3, Mean: 1, StdDev: 1},
	}}
}

// Clone returns a deep copy of m.
func (m Model) Clone() Model {
	return Model{Components: slices.Clone(m.Components)}
}

// Validate checks that m is a proper mixture.
func (m Model) Validate() error {
	if len(m.Components) == 0 {
		return fmt.Errorf("%w: mixture has no components", ErrInvalidConfig)
	}

	var total float64
	for i, c := range m.Components {
		if c.Weight < 0 || !finite(c.Weight) {
			return fmt.Errorf("%w: component %d weight must be non-negative, got %v", ErrInvalidConfig, i, c.Weight)
		}
		if c.StdDev <= 0 || !finite(c.StdDev) {
			return fmt.Errorf("%w: component %d stddev must be positive, got %v", ErrInvalidConfig, i, c.StdDev)
		}
		if !finite(c.Mean) {
			return fmt.Errorf("%w: component %d mean must be finite, got %v", ErrInvalidConfig, i, c.Mean)
		}
		total += c.Weight
	}
	if math.Abs(total-1) > 1e-6 {
		return fmt.Errorf("%w: weights must sum to 1, got %v", ErrInvalidConfig, total)
	}
	return nil
}

func (m Model) sortByMean() {
	slices.SortStableFunc(m.Components, func(a, b Component) int {
		return cmp.Compare(a.Mean, b.Mean)
	})
}

// TrainOptions controls EM training.
type TrainOptions struct {
	// Iterations is the number of EM iterations (upper bound when Tolerance is set).
	Iterations int
	// Init is the starting mixture. Its length sets the mixture order.
	Init Model
	// Density defaults to GaussPDF.
	Density DensityFunc
	// MinStdDev floors component deviations after every M-step.
	MinStdDev float64
	// MinCount is the smallest effective count a component may keep.
	MinCount float64
	// Tolerance stops training early once the mean log-likelihood changes by
	// less than this amount. Zero runs exactly Iterations iterations.
	Tolerance float64
	// OnIteration, if set, observes the model after every M-step.
	OnIteration func(iteration int, m Model)
}

// DefaultTrainOptions returns 10 fixed iterations from DefaultModel.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Iterations: 10,
		Init:       DefaultModel(),
		Density:    GaussPDF,
		MinStdDev:  1e-3,
		MinCount:   1e-8,
	}
}

// Validate checks the options.
func (o TrainOptions) Validate() error {
	if o.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidConfig, o.Iterations)
	}
	if o.MinStdDev < 0 {
		return fmt.Errorf("%w: min stddev cannot be negative, got %v", ErrInvalidConfig, o.MinStdDev)
	}
	if o.MinCount < 0 {
		return fmt.Errorf("%w: min count cannot be negative, got %v", ErrInvalidConfig, o.MinCount)
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance cannot be negative, got %v", ErrInvalidConfig, o.Tolerance)
	}
	return o.Init.Validate()
}

// TrainStats summarizes a training run.
type TrainStats struct {
	Iterations    int     `json:"iterations"`
	LogLikelihood float64 `json:"log_likelihood"` // mean per frame, final model
	Converged     bool    `json:"converged"`
}

// Train fits a gaussian mixture to x with EM and returns it sorted by
// ascending mean.
func Train(x []float64, opts TrainOptions) (Model, TrainStats, error) {
	return TrainContext(context.Background(), x, opts)
}

// TrainContext is Train with cancellation checked before every iteration.
func TrainContext(ctx context.Context, x []float64, opts TrainOptions) (Model, TrainStats, error) {
	if err := opts.Validate(); err != nil {
		return Model{}, TrainStats{}, err
	}
	if len(x) == 0 {
		return Model{}, TrainStats{}, fmt.Errorf("%w: no observations", ErrSignalTooShort)
	}
	density := opts.Density
	if density == nil {
		density = GaussPDF
	}

	m := opts.Init.Clone()
	resp := make([][]float64, len(x))
	for i := range resp {
		resp[i] = make([]float64, len(m.Components))
	}

	var stats TrainStats
	prev := math.Inf(-1)
	for it := 0; it < opts.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return Model{}, stats, err
		}
		ll := expect(x, m, density, resp)
		if err := maximize(x, resp, m, opts.MinCount, opts.MinStdDev); err != nil {
			return Model{}, stats, fmt.Errorf("iteration %d: %w", it+1, err)
		}
		stats.Iterations = it + 1
		if opts.OnIteration != nil {
			opts.OnIteration(it+1, m.Clone())
		}

		if opts.Tolerance > 0 && math.Abs(ll-prev) < opts.Tolerance {
			stats.Converged = true
			break
		}
		prev = ll
	}

	m.sortByMean()
	stats.LogLikelihood = expect(x, m, density, resp)
	return m, stats, nil
}

// expect fills resp with normalized responsibilities (E-step) and returns the
// mean log-likelihood of x under m.
func expect(x []float64, m Model, density DensityFunc, resp [][]float64) float64 {
	var ll float64
	for i, v := range x {
		ll += math.Log(responsibility(v, m, density, resp[i]))
	}
	return ll / float64(len(x))
}

// maximize re-estimates m in place from resp (M-step).
func maximize(x []float64, resp [][]float64, m Model, minCount, minStdDev float64) error {
	n := float64(len(x))
	for k := range m.Components {
		var count, sum float64
		for i, v := range x {
			count += resp[i][k]
			sum += resp[i][k] * v
		}
		if count < minCount || count == 0 {
			return fmt.Errorf("%w: component %d effective count %v", ErrDegenerateComponent, k, count)
		}
		mean := sum / count

		var sq float64
		for i, v := range x {
			d := v - mean
			sq += resp[i][k] * d * d
		}
		std := math.Sqrt(sq / count)
		if std < minStdDev {
			std = minStdDev
		}

		m.Components[k] = Component{Weight: count / n, Mean: mean, StdDev: std}
	}
	return nil
}

// responsibility writes the normalized component shares of v into row and
// returns the mixture density at v. When every weighted density underflows,
// v goes wholly to its nearest component and the smallest positive density is
// returned.
func responsibility(v float64, m Model, density DensityFunc, row []float64) float64 {
	var total float64
	for k, c := range m.Components {
		row[k] = c.Weight * density(v, c.Mean, c.StdDev)
		total += row[k]
	}
	if total > 0 && finite(total) {
		for k := range row {
			row[k] /= total
		}
		return total
	}

	nearest, best := 0, math.Inf(1)
	for k, c := range m.Components {
		if d := math.Abs(v-c.Mean) / c.StdDev; d < best {
			nearest, best = k, d
		}
	}
	for k := range row {
		row[k] = 0
	}
	row[nearest] = 1
	return math.SmallestNonzeroFloat64
}
