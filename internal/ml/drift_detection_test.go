package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func column(n int, shift float64, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	for i := range X {
		X[i] = []float64{rng.NormFloat64() + shift, rng.NormFloat64()}
	}
	return X
}

func TestDriftDetector_FlagsShiftedFeature(t *testing.T) {
	dd := NewDriftDetector(DriftDetectionConfig{
		FeatureNames:   []string{"SMA", "RSI"},
		AlertThreshold: 0.2,
	})

	require.NoError(t, dd.UpdateBaseline(column(500, 0, 1)))
	require.NoError(t, dd.UpdateCurrent(column(200, 3, 2)))

	alerts := dd.DetectDrift()
	require.NotEmpty(t, alerts)
	for _, a := range alerts {
		assert.Equal(t, "SMA", a.FeatureName)
		assert.Greater(t, a.DriftScore, a.Threshold)
		assert.NotEmpty(t, a.Recommendation)
	}

	status := dd.GetDriftStatus()
	assert.Greater(t, status["SMA"], 0.8)
	assert.Less(t, status["RSI"], 0.2)
}

func TestDriftDetector_MinSamples(t *testing.T) {
	dd := NewDriftDetector(DriftDetectionConfig{FeatureNames: []string{"SMA", "RSI"}})
	require.NoError(t, dd.UpdateBaseline(column(500, 0, 1)))
	require.NoError(t, dd.UpdateCurrent(column(10, 5, 2)))

	assert.Empty(t, dd.DetectDrift())
}

func TestDriftDetector_WidthMismatch(t *testing.T) {
	dd := NewDriftDetector(DriftDetectionConfig{FeatureNames: []string{"SMA", "RSI"}})
	assert.ErrorIs(t, dd.UpdateBaseline([][]float64{{1}}), ErrFeatureMismatch)
}

func TestKolmogorovSmirnov(t *testing.T) {
	assert.Equal(t, 0.0, kolmogorovSmirnov([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.Equal(t, 1.0, kolmogorovSmirnov([]float64{1, 2}, []float64{3, 4}))
	assert.InDelta(t, 0.5, kolmogorovSmirnov([]float64{1, 2, 3, 4}, []float64{3, 4, 5, 6}), 1e-12)
	assert.Equal(t, 0.0, kolmogorovSmirnov(nil, []float64{1}))
}

func TestPopulationStabilityIndex(t *testing.T) {
	same := newDistribution([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.InDelta(t, 0, populationStabilityIndex(same, same), 1e-12)

	shifted := newDistribution([]float64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
	assert.Greater(t, populationStabilityIndex(same, shifted), 1.0)
}

func TestNewDistribution(t *testing.T) {
	d := newDistribution([]float64{4, 1, 3, 2, 5})
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.Equal(t, 3.0, d.Mean)
	assert.Equal(t, []float64{2, 3, 4}, d.Percentiles)
	assert.Equal(t, 5, d.SampleCount)
}
