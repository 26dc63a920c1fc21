package classify

import "errors"

var (
	// ErrNoLabels is returned when a decision is requested without labels.
	ErrNoLabels = errors.New("no labels supplied")

	// ErrInvalidThresholds is returned for thresholds outside [0, 1].
	ErrInvalidThresholds = errors.New("thresholds must lie in [0, 1]")
)
