// Package dataset turns a table of precomputed technical indicators into
// labeled, time-ordered observations and partitions them for training.
package dataset

import (
	"fmt"
	"math"
	"time"

	"stock-predictor/internal/common"
)

// Schema names the columns of an indicator table
type Schema struct {
	TimestampColumn string   `yaml:"timestamp_column" json:"timestamp_column"`
	CloseColumn     string   `yaml:"close_column" json:"close_column"`
	FeatureColumns  []string `yaml:"feature_columns" json:"feature_columns"`
}

// DefaultSchema returns the Date/Close table with the five default indicators.
func DefaultSchema() Schema {
	features := make([]string, len(common.DefaultFeatureNames))
	copy(features, common.DefaultFeatureNames)
	return Schema{
		TimestampColumn: common.DefaultTimestampColumn,
		CloseColumn:     common.DefaultCloseColumn,
		FeatureColumns:  features,
	}
}

// Validate checks that every column is named and that feature columns are unique.
func (s Schema) Validate() error {
	if s.TimestampColumn == "" || s.CloseColumn == "" {
		return fmt.Errorf("%w: timestamp and close columns must be named", ErrDataFormat)
	}
	if len(s.FeatureColumns) == 0 {
		return fmt.Errorf("%w: at least one feature column is required", ErrDataFormat)
	}
	seen := make(map[string]bool, len(s.FeatureColumns)+2)
	seen[s.TimestampColumn] = true
	if seen[s.CloseColumn] {
		return fmt.Errorf("%w: column %q used twice", ErrDataFormat, s.CloseColumn)
	}
	seen[s.CloseColumn] = true
	for _, name := range s.FeatureColumns {
		if name == "" {
			return fmt.Errorf("%w: empty feature column name", ErrDataFormat)
		}
		if seen[name] {
			return fmt.Errorf("%w: column %q used twice", ErrDataFormat, name)
		}
		seen[name] = true
	}
	return nil
}

// RawRow is one row of the loaded table. Missing values are NaN.
type RawRow struct {
	Timestamp time.Time
	Close     float64
	Features  []float64
}

// Complete reports whether the close and every feature are present.
func (r RawRow) Complete() bool {
	if math.IsNaN(r.Close) {
		return false
	}
	for _, v := range r.Features {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Table is a time-ordered indicator table with strictly increasing timestamps.
type Table struct {
	Schema Schema
	Rows   []RawRow
}

// Observation is a complete, labeled row. Label is true when the next
// retained observation closed higher than this one.
type Observation struct {
	Timestamp time.Time
	Features  []float64
	Close     float64
	Label     bool
}

// Features returns the feature matrix of obs. Rows are shared with obs.
func Features(obs []Observation) [][]float64 {
	X := make([][]float64, len(obs))
	for i := range obs {
		X[i] = obs[i].Features
	}
	return X
}

// Labels returns the target vector of obs.
func Labels(obs []Observation) []bool {
	y := make([]bool, len(obs))
	for i := range obs {
		y[i] = obs[i].Label
	}
	return y
}

// TimeRange returns the first and last timestamps of obs.
func TimeRange(obs []Observation) (time.Time, time.Time) {
	if len(obs) == 0 {
		return time.Time{}, time.Time{}
	}
	return obs[0].Timestamp, obs[len(obs)-1].Timestamp
}

// PositiveRate returns the share of positive labels, or 0 for an empty slice.
func PositiveRate(obs []Observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	pos := 0
	for i := range obs {
		if obs[i].Label {
			pos++
		}
	}
	return float64(pos) / float64(len(obs))
}
