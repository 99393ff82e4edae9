package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"stock-predictor/internal/common"
)

// BundleFormatVersion is the structural version written by SaveBundle
const BundleFormatVersion = 1

// Metadata describes how a bundle's model was trained
type Metadata struct {
	RunID           string          `json:"run_id"`
	Symbol          string          `json:"symbol,omitempty"`
	TrainedAt       time.Time       `json:"trained_at"`
	TrainingRows    int             `json:"training_rows"`
	TestRows        int             `json:"test_rows"`
	CVScores        []float64       `json:"cv_scores"`
	CVMean          float64         `json:"cv_mean"`
	TestAccuracy    float64         `json:"test_accuracy"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
}

// Bundle pairs a fitted forest with the standardizer it was trained behind.
// The two are only ever persisted and loaded together.
type Bundle struct {
	FormatVersion int           `json:"format_version"`
	FeatureNames  []string      `json:"feature_names"`
	Standardizer  *Standardizer `json:"standardizer"`
	Forest        *Forest       `json:"forest"`
	Metadata      Metadata      `json:"metadata"`
}

// NewBundle assembles and validates a bundle at the current format version
func NewBundle(featureNames []string, standardizer *Standardizer, forest *Forest, meta Metadata) (*Bundle, error) {
	names := make([]string, len(featureNames))
	copy(names, featureNames)

	b := &Bundle{
		FormatVersion: BundleFormatVersion,
		FeatureNames:  names,
		Standardizer:  standardizer,
		Forest:        forest,
		Metadata:      meta,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that the model and standardizer agree with the feature list.
func (b *Bundle) Validate() error {
	if b == nil {
		return ErrNotFitted
	}
	if b.FormatVersion != BundleFormatVersion {
		return fmt.Errorf("unsupported format version %d", b.FormatVersion)
	}
	if len(b.FeatureNames) == 0 {
		return fmt.Errorf("%w: feature name list is missing", ErrFeatureMismatch)
	}
	seen := make(map[string]bool, len(b.FeatureNames))
	for _, name := range b.FeatureNames {
		if name == "" || seen[name] {
			return fmt.Errorf("%w: invalid or duplicate feature name %q", ErrFeatureMismatch, name)
		}
		seen[name] = true
	}
	if err := b.Standardizer.validate(); err != nil {
		return fmt.Errorf("standardizer: %w", err)
	}
	if err := b.Forest.validate(); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	if b.Standardizer.Width() != len(b.FeatureNames) {
		return fmt.Errorf("%w: standardizer has %d features, bundle names %d", ErrFeatureMismatch, b.Standardizer.Width(), len(b.FeatureNames))
	}
	if b.Forest.NumFeatures != len(b.FeatureNames) {
		return fmt.Errorf("%w: forest has %d features, bundle names %d", ErrFeatureMismatch, b.Forest.NumFeatures, len(b.FeatureNames))
	}
	return nil
}

// SaveBundle writes the bundle as JSON to path atomically.
func SaveBundle(b *Bundle, path string) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid bundle: %w", err)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	if err := common.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save bundle: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("trees", len(b.Forest.Trees)).
		Strs("features", b.FeatureNames).
		Str("run_id", b.Metadata.RunID).
		Msg("Model bundle saved")

	return nil
}

// LoadBundle reads and validates a bundle. Any failure is reported as ErrCorruptBundle.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptBundle, err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorruptBundle, path, err)
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptBundle, path, err)
	}

	return &b, nil
}
