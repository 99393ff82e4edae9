package ml

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stock-predictor/internal/common"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLAccuracyObserve(float64)
	MLPredictionScoresObserve(float64)
}

// Prediction is the outcome for one feature vector
type Prediction struct {
	Label        string  `json:"label"`
	Positive     bool    `json:"positive"`
	VoteFraction float64 `json:"vote_fraction"`
}

// Predictor replays a bundle's standardizer and forest on new feature vectors.
// It is immutable after construction and safe for concurrent use.
type Predictor struct {
	bundle  *Bundle
	metrics MetricsInterface
}

// NewPredictor wraps a validated bundle; metrics may be nil
func NewPredictor(bundle *Bundle, metrics MetricsInterface) (*Predictor, error) {
	if bundle == nil {
		return nil, ErrNotFitted
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	p := &Predictor{bundle: bundle, metrics: metrics}

	if metrics != nil && !bundle.Metadata.TrainedAt.IsZero() {
		metrics.MLModelAgeSet(time.Since(bundle.Metadata.TrainedAt).Seconds())
	}

	log.Info().
		Strs("features", bundle.FeatureNames).
		Int("trees", len(bundle.Forest.Trees)).
		Str("run_id", bundle.Metadata.RunID).
		Msg("Predictor ready")

	return p, nil
}

// LoadPredictor loads the bundle at path and wraps it
func LoadPredictor(path string, metrics MetricsInterface) (*Predictor, error) {
	bundle, err := LoadBundle(path)
	if err != nil {
		return nil, err
	}
	return NewPredictor(bundle, metrics)
}

// FeatureNames returns the ordered feature names the model expects
func (p *Predictor) FeatureNames() []string {
	if p == nil || p.bundle == nil {
		return nil
	}
	names := make([]string, len(p.bundle.FeatureNames))
	copy(names, p.bundle.FeatureNames)
	return names
}

// Metadata returns the training metadata of the underlying bundle
func (p *Predictor) Metadata() Metadata {
	if p == nil || p.bundle == nil {
		return Metadata{}
	}
	return p.bundle.Metadata
}

// Predict classifies a raw (unstandardized) feature vector in bundle order.
// The vector must have exactly one finite value per bundle feature.
func (p *Predictor) Predict(raw []float64) (Prediction, error) {
	if p == nil || p.bundle == nil {
		return Prediction{}, ErrNotFitted
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	pred, err := p.predict(raw)
	if err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return Prediction{}, err
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLPredictionScoresObserve(pred.VoteFraction)
	}
	return pred, nil
}

// PredictNamed classifies a mapping from feature name to raw value. The key
// set must match the bundle's feature names exactly.
func (p *Predictor) PredictNamed(values map[string]float64) (Prediction, error) {
	if p == nil || p.bundle == nil {
		return Prediction{}, ErrNotFitted
	}

	names := p.bundle.FeatureNames
	raw := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		raw[i] = v
	}

	var unknown []string
	if len(values) != len(names)-len(missing) {
		known := make(map[string]bool, len(names))
		for _, name := range names {
			known[name] = true
		}
		for name := range values {
			if !known[name] {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
	}

	if len(missing) > 0 || len(unknown) > 0 {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return Prediction{}, fmt.Errorf("%w: missing [%s], unexpected [%s]",
			ErrFeatureMismatch, strings.Join(missing, ", "), strings.Join(unknown, ", "))
	}

	return p.Predict(raw)
}

func (p *Predictor) predict(raw []float64) (Prediction, error) {
	if len(raw) != len(p.bundle.FeatureNames) {
		return Prediction{}, fmt.Errorf("%w: expected %d features %v, got %d",
			ErrFeatureMismatch, len(p.bundle.FeatureNames), p.bundle.FeatureNames, len(raw))
	}

	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Prediction{}, fmt.Errorf("%w: %s is %v", ErrInvalidFeatureValue, p.bundle.FeatureNames[i], v)
		}
	}

	x, err := p.bundle.Standardizer.TransformVector(raw)
	if err != nil {
		return Prediction{}, err
	}

	positive, total := p.bundle.Forest.Votes(x)
	isPositive := 2*positive >= total

	return Prediction{
		Label:        LabelFor(isPositive),
		Positive:     isPositive,
		VoteFraction: float64(positive) / float64(total),
	}, nil
}

// LabelFor maps the binary outcome to its decision label
func LabelFor(positive bool) string {
	if positive {
		return common.LabelFavorable
	}
	return common.LabelUnfavorable
}
