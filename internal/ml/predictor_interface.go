// Package ml provides the random forest classifier behind the next-day
// direction predictor. It includes feature standardization, forest training
// with k-fold cross-validation, evaluation, impurity-based feature importance,
// train/test drift diagnostics, and versioned model bundles.
//
// A model is only ever persisted and loaded together with the standardizer it
// was trained behind, so inference replays the exact training-time preprocessing.
package ml

// PredictorInterface defines the inference surface used by commands and tests.
// Implementations take raw, unstandardized feature values.
type PredictorInterface interface {
	// Predict classifies a feature vector given in model feature order.
	Predict(features []float64) (Prediction, error)

	// PredictNamed classifies a feature-name to value mapping.
	PredictNamed(features map[string]float64) (Prediction, error)
}

var _ PredictorInterface = (*Predictor)(nil)
var _ Classifier = (*Forest)(nil)
