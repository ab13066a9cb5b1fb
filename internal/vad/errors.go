package vad

import "errors"

var (
	// ErrInvalidConfig is returned for framing, threshold or mixture parameters
	// the pipeline cannot run with.
	ErrInvalidConfig = errors.New("invalid vad configuration")

	// ErrZeroVariance is returned when the energy sequence is constant and
	// cannot be standardized.
	ErrZeroVariance = errors.New("energy has zero variance")

	// ErrDegenerateComponent is returned when a mixture component loses all
	// of its responsibility mass during EM.
	ErrDegenerateComponent = errors.New("degenerate mixture component")

	// ErrSignalTooShort is returned when the signal produces fewer than two frames.
	ErrSignalTooShort = errors.New("signal too short")
)
