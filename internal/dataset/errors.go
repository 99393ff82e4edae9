package dataset

import "errors"

var (
	// ErrDataFormat is returned when a required column is absent or a cell cannot be parsed.
	ErrDataFormat = errors.New("data format error")

	// ErrInsufficientData is returned when there are too few rows for a split, a fit or k-fold.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidSplitFraction is returned when the train fraction is outside (0,1).
	ErrInvalidSplitFraction = errors.New("split fraction must be in (0,1)")
)
