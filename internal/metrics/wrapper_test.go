package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-predictor/internal/ml"
)

var (
	_ ml.MetricsInterface = (*MetricsWrapper)(nil)
	_ ml.TrainingMetrics  = (*MetricsWrapper)(nil)
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_PredictionMetrics(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.MLPredictions))

	wrapper.MLPredictionsInc()
	wrapper.MLPredictionsInc()
	wrapper.MLFailuresInc()
	wrapper.MLModelAgeSet(3600)
	wrapper.MLLatencyObserve(0.0004)
	wrapper.MLPredictionScoresObserve(0.62)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MLPredictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MLFailures))
	assert.Equal(t, 3600.0, testutil.ToFloat64(metrics.MLModelAge))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.MLLatency))
}

func TestMetricsWrapper_TrainingMetrics(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.TrainingRunsInc()
	wrapper.TrainingFailuresInc()
	wrapper.TreesTrainedAdd(100)
	wrapper.TreesTrainedAdd(100)
	wrapper.TrainingRowsSet(800)
	wrapper.CVAccuracySet(0.53)
	wrapper.MLAccuracyObserve(0.56)
	wrapper.TrainingDurationObserve(2.5)
	wrapper.BundleSavedInc()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TrainingRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TrainingFailures))
	assert.Equal(t, 200.0, testutil.ToFloat64(metrics.TreesTrained))
	assert.Equal(t, 800.0, testutil.ToFloat64(metrics.TrainingRows))
	assert.Equal(t, 0.53, testutil.ToFloat64(metrics.CVAccuracy))
	assert.Equal(t, 0.56, testutil.ToFloat64(metrics.TestAccuracy))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BundlesSaved))
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	assert.Panics(t, func() { NewWithRegistry(registry) })
}

func TestWriteTextfile(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	NewWrapper(metrics).CVAccuracySet(0.51)

	path := filepath.Join(t.TempDir(), "textfile", "stock_predictor.prom")
	require.NoError(t, WriteTextfile(path, registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "cv_accuracy 0.51"), text)
	assert.Contains(t, text, "# TYPE training_runs_total counter")
}
