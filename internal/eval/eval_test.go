package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	const T, F = true, false
	ref := []bool{T, T, T, T, F, F, F, F, F, F}
	hyp := []bool{T, T, T, F, T, F, F, F, F, F}

	r, err := Score(ref, hyp)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Samples)
	assert.Equal(t, 3, r.TruePositives)
	assert.Equal(t, 1, r.FalsePositives)
	assert.Equal(t, 5, r.TrueNegatives)
	assert.Equal(t, 1, r.FalseNegatives)
	assert.InDelta(t, 0.8, r.Accuracy, 1e-12)
	assert.InDelta(t, 0.75, r.Precision, 1e-12)
	assert.InDelta(t, 0.75, r.Recall, 1e-12)
	assert.InDelta(t, 0.75, r.F1, 1e-12)
	assert.InDelta(t, 0.25, r.MissRate, 1e-12)
	assert.InDelta(t, 1.0/6, r.FalseAlarmRate, 1e-12)
}

func TestScoreDegenerate(t *testing.T) {
	r, err := Score([]bool{false, false}, []bool{false, false})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Accuracy)
	assert.Zero(t, r.Precision)
	assert.Zero(t, r.Recall)
	assert.Zero(t, r.F1)

	r, err = Score(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, r.Accuracy)
}

func TestScoreLengthMismatch(t *testing.T) {
	_, err := Score([]bool{true}, []bool{true, false})
	require.ErrorIs(t, err, ErrLengthMismatch)
}
