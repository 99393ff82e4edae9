package cfg

import (
	"path/filepath"
	"strings"
	"time"

	"stock-predictor/internal/common"
	"stock-predictor/internal/dataset"
	"stock-predictor/internal/ml"
)

// Settings is the validated runtime configuration shared by the commands
type Settings struct {
	DataPath   string    `validate:"required"`
	DataFormat string    `validate:"oneof=auto csv boltdb"`
	StorePath  string    // bbolt archive directory; empty disables run recording for CSV input
	Symbol     string    `validate:"required"`
	Start      time.Time // inclusive lower bound for archive reads; zero means unbounded
	End        time.Time // inclusive upper bound for archive reads; zero means unbounded

	TimestampColumn string   `validate:"required"`
	CloseColumn     string   `validate:"required"`
	Features        []string `validate:"required,min=1,dive,required"`

	ModelPath   string `validate:"required"`
	ModelsDir   string
	ReportDir   string `validate:"required"`
	MetricsFile string
	LogLevel    string `validate:"oneof=trace debug info warn error"`

	SplitFraction   float64 `validate:"gt=0,lt=1"`
	Folds           int     `validate:"gte=2,lte=50"`
	Trees           int     `validate:"gte=1,lte=5000"`
	MaxDepth        int     `validate:"gte=1,lte=64"`
	MinSamplesSplit int     `validate:"gte=2"`
	MaxFeatures     int     `validate:"gte=0"`
	Seed            int64
	Workers         int `validate:"gte=0"`
}

// Schema returns the table layout the loader expects
func (s Settings) Schema() dataset.Schema {
	return dataset.Schema{
		TimestampColumn: s.TimestampColumn,
		CloseColumn:     s.CloseColumn,
		FeatureColumns:  append([]string(nil), s.Features...),
	}
}

// Hyperparameters returns the forest configuration
func (s Settings) Hyperparameters() ml.Hyperparameters {
	return ml.Hyperparameters{
		Trees:           s.Trees,
		MaxDepth:        s.MaxDepth,
		MinSamplesSplit: s.MinSamplesSplit,
		MaxFeatures:     s.MaxFeatures,
		Seed:            s.Seed,
		Workers:         s.Workers,
		Folds:           s.Folds,
	}
}

// ResolvedFormat turns "auto" into csv or boltdb based on the data path
func (s Settings) ResolvedFormat() string {
	if s.DataFormat != common.FormatAuto {
		return s.DataFormat
	}
	switch strings.ToLower(filepath.Ext(s.DataPath)) {
	case ".csv", ".txt":
		return common.FormatCSV
	default:
		return common.FormatBoltDB
	}
}

// ArchivePath returns the bbolt directory used for observations and run
// records, or "" when there is none.
func (s Settings) ArchivePath() string {
	if s.StorePath != "" {
		return s.StorePath
	}
	if s.ResolvedFormat() == common.FormatBoltDB {
		return s.DataPath
	}
	return ""
}

// Validate re-checks settings after command-line overrides
func (s *Settings) Validate() error {
	return validateSettings(s)
}
