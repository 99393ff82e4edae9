package ml

import (
	"fmt"
	"math"

	"stock-predictor/internal/dataset"
)

// epsilon is the float64 machine epsilon
const epsilon = 2.220446049250313e-16

// Standardizer holds per-feature affine normalization parameters.
// Features with zero variance in the fitting data get a scale of 1, including
// constant columns whose computed std is only float rounding noise.
type Standardizer struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// NewStandardizer returns an unfitted standardizer
func NewStandardizer() *Standardizer {
	return &Standardizer{}
}

// Fit computes column means and population standard deviations of X.
func (s *Standardizer) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: cannot fit standardizer on zero rows", dataset.ErrInsufficientData)
	}

	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("%w: rows have no features", ErrFeatureMismatch)
	}

	mean := make([]float64, width)
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, expected %d", ErrFeatureMismatch, i, len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, width)
	lo := append([]float64(nil), X[0]...)
	hi := append([]float64(nil), X[0]...)
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if lo[j] == hi[j] || nearZeroScale(scale[j], mean[j]) {
			scale[j] = 1
		}
	}

	s.Mean = mean
	s.Scale = scale
	return nil
}

// nearZeroScale treats a std within float rounding of the mean's magnitude as zero
func nearZeroScale(std, mean float64) bool {
	if math.IsNaN(std) {
		return true
	}
	return std <= 10*epsilon*math.Max(1, math.Abs(mean))
}

// Fitted reports whether Fit has been called (or parameters were loaded).
func (s *Standardizer) Fitted() bool {
	return s != nil && len(s.Mean) > 0 && len(s.Mean) == len(s.Scale)
}

// Width returns the number of features the standardizer was fitted on.
func (s *Standardizer) Width() int {
	if s == nil {
		return 0
	}
	return len(s.Mean)
}

// TransformVector returns a new, standardized copy of x.
func (s *Standardizer) TransformVector(x []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d features, expected %d", ErrFeatureMismatch, len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// Transform returns a new, standardized copy of X. X itself is not modified.
func (s *Standardizer) Transform(X [][]float64) ([][]float64, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		v, err := s.TransformVector(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// FitTransform fits on X and returns its standardized copy.
func (s *Standardizer) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *Standardizer) validate() error {
	if !s.Fitted() {
		return ErrNotFitted
	}
	for j, sc := range s.Scale {
		if sc <= 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return fmt.Errorf("scale for feature %d is %v", j, sc)
		}
		if math.IsNaN(s.Mean[j]) || math.IsInf(s.Mean[j], 0) {
			return fmt.Errorf("mean for feature %d is %v", j, s.Mean[j])
		}
	}
	return nil
}
