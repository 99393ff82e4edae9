package ml

import "errors"

var (
	// ErrNotFitted is returned when a transform or prediction is attempted before fit or load.
	ErrNotFitted = errors.New("model is not fitted")

	// ErrFeatureMismatch is returned when an input's shape or feature order disagrees with the model.
	ErrFeatureMismatch = errors.New("feature mismatch")

	// ErrInvalidFeatureValue is returned for NaN or infinite inference inputs.
	ErrInvalidFeatureValue = errors.New("invalid feature value")

	// ErrCorruptBundle is returned when a persisted bundle cannot be read or is structurally invalid.
	ErrCorruptBundle = errors.New("corrupt model bundle")
)
