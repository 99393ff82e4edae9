package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-predictor/internal/dataset"
)

func TestStandardizer_ZeroMeanUnitVariance(t *testing.T) {
	X, _ := separableData(200, 4, 7)
	for _, row := range X {
		row[2] = row[2]*50 + 1000
	}

	s := NewStandardizer()
	Z, err := s.FitTransform(X)
	require.NoError(t, err)

	for j := 0; j < 4; j++ {
		mean, sq := 0.0, 0.0
		for _, row := range Z {
			mean += row[j]
		}
		mean /= float64(len(Z))
		for _, row := range Z {
			sq += (row[j] - mean) * (row[j] - mean)
		}
		assert.InDelta(t, 0, mean, 1e-9, "feature %d mean", j)
		assert.InDelta(t, 1, math.Sqrt(sq/float64(len(Z))), 1e-9, "feature %d std", j)
	}
}

func TestStandardizer_ZeroVarianceUsesUnitScale(t *testing.T) {
	X := [][]float64{{5, 1}, {5, 2}, {5, 3}}

	s := NewStandardizer()
	require.NoError(t, s.Fit(X))
	assert.Equal(t, 1.0, s.Scale[0])

	z, err := s.TransformVector([]float64{5, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, z[0])
	assert.False(t, math.IsNaN(z[1]))
}

func TestStandardizer_ConstantFractionalColumnUsesUnitScale(t *testing.T) {
	X := make([][]float64, 10)
	for i := range X {
		X[i] = []float64{0.1, float64(i)}
	}

	s := NewStandardizer()
	Z, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Scale[0])
	for i, row := range Z {
		assert.InDelta(t, 0, row[0], 1e-12, "row %d", i)
	}

	z, err := s.TransformVector([]float64{0.11, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.01, z[0], 1e-12)
}

func TestStandardizer_SmallButRealVarianceIsKept(t *testing.T) {
	X := [][]float64{{1e-6}, {2e-6}, {3e-6}}

	s := NewStandardizer()
	require.NoError(t, s.Fit(X))
	assert.NotEqual(t, 1.0, s.Scale[0])
	assert.InDelta(t, math.Sqrt(2.0/3.0)*1e-6, s.Scale[0], 1e-18)
}

func TestStandardizer_TransformDoesNotMutate(t *testing.T) {
	X := [][]float64{{1, 10}, {2, 20}, {3, 30}}
	s := NewStandardizer()
	require.NoError(t, s.Fit(X))

	mean := append([]float64(nil), s.Mean...)
	scale := append([]float64(nil), s.Scale...)
	input := [][]float64{{4, 40}}

	_, err := s.Transform(input)
	require.NoError(t, err)
	_, err = s.Transform([][]float64{{100, -100}})
	require.NoError(t, err)

	assert.Equal(t, mean, s.Mean)
	assert.Equal(t, scale, s.Scale)
	assert.Equal(t, [][]float64{{4, 40}}, input)
}

func TestStandardizer_Errors(t *testing.T) {
	s := NewStandardizer()

	_, err := s.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = s.TransformVector([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.ErrorIs(t, s.Fit(nil), dataset.ErrInsufficientData)
	assert.ErrorIs(t, s.Fit([][]float64{{1, 2}, {3}}), ErrFeatureMismatch)

	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))
	_, err = s.TransformVector([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}
