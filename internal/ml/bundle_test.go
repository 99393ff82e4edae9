package ml

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedBundle(t *testing.T, names []string) (*Bundle, [][]float64) {
	t.Helper()
	X, y := separableData(120, len(names), 11)

	scaler := NewStandardizer()
	Z, err := scaler.FitTransform(X)
	require.NoError(t, err)

	trainer, err := NewTrainer(smallParams(), nil)
	require.NoError(t, err)
	forest, err := trainer.Fit(context.Background(), Z, y)
	require.NoError(t, err)

	bundle, err := NewBundle(names, scaler, forest, Metadata{
		RunID:        "3f0a9c1e-run",
		TrainedAt:    time.Now().Add(-time.Hour),
		TrainingRows: len(X),
	})
	require.NoError(t, err)
	return bundle, X
}

func TestBundle_SaveLoadPreservesPredictions(t *testing.T) {
	bundle, X := trainedBundle(t, []string{"SMA", "EMA", "RSI"})
	path := filepath.Join(t.TempDir(), "models", "bundle.json")

	require.NoError(t, SaveBundle(bundle, path))

	loaded, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, bundle.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, bundle.Metadata.RunID, loaded.Metadata.RunID)

	before, err := NewPredictor(bundle, nil)
	require.NoError(t, err)
	after, err := NewPredictor(loaded, nil)
	require.NoError(t, err)

	for _, x := range X {
		p1, err := before.Predict(x)
		require.NoError(t, err)
		p2, err := after.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadBundle_Corrupt(t *testing.T) {
	bundle, _ := trainedBundle(t, []string{"A", "B"})
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, SaveBundle(bundle, good))
	data, err := os.ReadFile(good)
	require.NoError(t, err)

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.json")},
		{"not json", write("garbage.json", "not a bundle")},
		{"truncated", write("truncated.json", string(data[:len(data)/2]))},
		{"empty object", write("empty.json", "{}")},
	}

	mutate := func(name string, fn func(b *Bundle)) {
		cp, err := LoadBundle(good)
		require.NoError(t, err)
		fn(cp)
		p := filepath.Join(dir, name)
		// bypass SaveBundle validation
		raw, err := json.Marshal(cp)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(p, raw, 0o600))
		tests = append(tests, struct {
			name string
			path string
		}{name, p})
	}
	mutate("no feature names", func(b *Bundle) { b.FeatureNames = nil })
	mutate("unknown version", func(b *Bundle) { b.FormatVersion = 99 })
	mutate("extra feature name", func(b *Bundle) { b.FeatureNames = append(b.FeatureNames, "C") })
	mutate("missing standardizer", func(b *Bundle) { b.Standardizer = nil })
	mutate("missing forest", func(b *Bundle) { b.Forest = nil })
	mutate("split on unknown feature", func(b *Bundle) {
		b.Forest.Trees = []*Node{stump(7, 0, leaf(1, 0), leaf(0, 1))}
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBundle(tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptBundle)
		})
	}
}

func TestSaveBundle_RejectsInvalid(t *testing.T) {
	bundle, _ := trainedBundle(t, []string{"A", "B"})
	bundle.FeatureNames = []string{"A"}

	path := filepath.Join(t.TempDir(), "bundle.json")
	err := SaveBundle(bundle, path)
	assert.ErrorIs(t, err, ErrFeatureMismatch)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewBundle_Validation(t *testing.T) {
	bundle, _ := trainedBundle(t, []string{"A", "B"})

	_, err := NewBundle([]string{"A", "A"}, bundle.Standardizer, bundle.Forest, Metadata{})
	assert.ErrorIs(t, err, ErrFeatureMismatch)

	_, err = NewBundle([]string{"A", "B"}, NewStandardizer(), bundle.Forest, Metadata{})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = NewBundle([]string{"A", "B"}, bundle.Standardizer, nil, Metadata{})
	assert.ErrorIs(t, err, ErrNotFitted)
}
