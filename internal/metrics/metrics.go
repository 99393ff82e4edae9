// Package metrics provides Prometheus metrics collection for the stock predictor.
// It defines training and prediction metrics. The batch commands persist them in
// the text exposition format for a node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for training runs and predictions.
type Metrics struct {
	// Training metrics
	TrainingRuns     prometheus.Counter   // Total number of training runs started
	TrainingFailures prometheus.Counter   // Total number of failed training runs
	TrainingDuration prometheus.Histogram // Duration of a full training run (CV + final fit)
	TreesTrained     prometheus.Counter   // Total number of trees grown for final models
	TrainingRows     prometheus.Gauge     // Rows in the latest training partition
	CVAccuracy       prometheus.Gauge     // Mean cross-validation accuracy of the latest run
	TestAccuracy     prometheus.Gauge     // Held-out test accuracy of the latest run
	BundlesSaved     prometheus.Counter   // Total number of model bundles persisted

	// Prediction metrics
	MLPredictions      prometheus.Counter   // Total number of predictions made
	MLFailures         prometheus.Counter   // Total number of rejected or failed predictions
	MLModelAge         prometheus.Gauge     // Age of the loaded model in seconds
	MLLatency          prometheus.Histogram // Prediction latency in seconds
	MLAccuracy         prometheus.Histogram // Accuracy observations of evaluated models
	MLPredictionScores prometheus.Histogram // Distribution of positive vote fractions
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing
// and for the batch commands, which write their own registry to a file).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of training runs started",
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Total number of failed training runs",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of a training run including cross-validation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		TreesTrained: factory.NewCounter(prometheus.CounterOpts{
			Name: "trees_trained_total",
			Help: "Total number of trees grown for final models",
		}),
		TrainingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_rows",
			Help: "Rows in the latest training partition",
		}),
		CVAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cv_accuracy",
			Help: "Mean k-fold cross-validation accuracy of the latest run",
		}),
		TestAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "test_accuracy",
			Help: "Held-out test accuracy of the latest run",
		}),
		BundlesSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_bundles_saved_total",
			Help: "Total number of model bundles persisted",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of ML predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of rejected or failed ML predictions",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded ML model in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		MLAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_accuracy",
			Help:    "ML model accuracy on held-out data",
			Buckets: []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of positive vote fractions",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

// WriteTextfile writes everything gatherer collects to path in the text
// exposition format. The parent directory is created if needed.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
