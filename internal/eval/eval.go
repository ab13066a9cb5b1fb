// Package eval scores a hypothesis speech mask against a reference mask.
package eval

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when the masks cover different lengths.
var ErrLengthMismatch = errors.New("mask length mismatch")

// Report holds sample level detection counts and rates. Speech is the
// positive class.
type Report struct {
	Samples        int     `json:"samples"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	MissRate       float64 `json:"miss_rate"`
	FalseAlarmRate float64 `json:"false_alarm_rate"`
}

// Score compares hypothesis with reference sample by sample.
func Score(reference, hypothesis []bool) (Report, error) {
	if len(reference) != len(hypothesis) {
		return Report{}, fmt.Errorf("%w: reference has %d samples, hypothesis %d",
			ErrLengthMismatch, len(reference), len(hypothesis))
	}

	r := Report{Samples: len(reference)}
	for i, ref := range reference {
		hyp := hypothesis[i]
		switch {
		case ref && hyp:
			r.TruePositives++
		case !ref && hyp:
			r.FalsePositives++
		case ref && !hyp:
			r.FalseNegatives++
		default:
			r.TrueNegatives++
		}
	}

	r.Accuracy = ratio(r.TruePositives+r.TrueNegatives, r.Samples)
	r.Precision = ratio(r.TruePositives, r.TruePositives+r.FalsePositives)
	r.Recall = ratio(r.TruePositives, r.TruePositives+r.FalseNegatives)
	r.MissRate = ratio(r.FalseNegatives, r.TruePositives+r.FalseNegatives)
	r.FalseAlarmRate = ratio(r.FalsePositives, r.FalsePositives+r.TrueNegatives)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
