package ml

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureImportance_FromForest(t *testing.T) {
	names := []string{"SMA", "EMA", "RSI", "MACD"}
	X, y := separableData(200, len(names), 21)
	trainer, err := NewTrainer(smallParams(), nil)
	require.NoError(t, err)
	forest, err := trainer.Fit(context.Background(), X, y)
	require.NoError(t, err)

	fi, err := NewFeatureImportance(names, forest)
	require.NoError(t, err)

	sum := 0.0
	for _, v := range fi.Scores() {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	assert.Equal(t, []string{"SMA"}, fi.GetTopFeatures(1))
	assert.Len(t, fi.GetTopFeatures(10), 4)
	assert.Empty(t, fi.GetTopFeatures(-1))

	ranked := fi.Ranked()
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Importance, ranked[i].Importance)
	}
	assert.Greater(t, fi.GetFeatureImportance()["SMA"].SplitCount, 0)
}

func TestFeatureImportance_NoSplits(t *testing.T) {
	forest := &Forest{NumFeatures: 2, Trees: []*Node{leaf(2, 1)}}
	fi, err := NewFeatureImportance([]string{"A", "B"}, forest)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, fi.Scores())
	assert.Equal(t, []string{"A", "B"}, fi.GetTopFeatures(2), "ties keep feature order")
}

func TestFeatureImportance_Mismatch(t *testing.T) {
	forest := &Forest{NumFeatures: 2, Trees: []*Node{leaf(2, 1)}}
	_, err := NewFeatureImportance([]string{"A"}, forest)
	assert.ErrorIs(t, err, ErrFeatureMismatch)

	_, err = NewFeatureImportance([]string{"A"}, nil)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestFeatureImportance_PermutationAndStats(t *testing.T) {
	names := []string{"signal", "noise"}
	forest := &Forest{NumFeatures: 2, Trees: []*Node{stump(0, 0, leaf(5, 0), leaf(0, 5))}}
	fi, err := NewFeatureImportance(names, forest)
	require.NoError(t, err)

	X, y := separableData(200, 2, 5)
	fi.ObserveFeatures(X)
	require.NoError(t, fi.CalculatePermutationImportance(forest, X, y, 42))

	stats := fi.GetFeatureImportance()
	assert.Equal(t, 1.0, fi.BaselineScore())
	assert.Greater(t, stats["signal"].PermutationScore, 0.2)
	assert.Equal(t, 0.0, stats["noise"].PermutationScore)
	assert.LessOrEqual(t, stats["signal"].MinValue, stats["signal"].AverageValue)
	assert.GreaterOrEqual(t, stats["signal"].MaxValue, stats["signal"].AverageValue)
	assert.Greater(t, stats["signal"].StandardDeviation, 0.0)

	assert.ErrorIs(t, fi.CalculatePermutationImportance(forest, X, y[:1], 1), ErrFeatureMismatch)
}

func TestFeatureImportance_Save(t *testing.T) {
	forest := &Forest{NumFeatures: 2, Trees: []*Node{stump(1, 0, leaf(5, 0), leaf(0, 5))}}
	fi, err := NewFeatureImportance([]string{"A", "B"}, forest)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "importance.json")
	require.NoError(t, fi.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stats []FeatureStats
	require.NoError(t, json.Unmarshal(data, &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, "A", stats[0].Name)
	assert.Equal(t, 1.0, stats[1].ImportanceScore)
}
