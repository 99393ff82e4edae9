package dataset

import (
	"github.com/rs/zerolog/log"
)

// Prepare drops incomplete rows, labels each retained row against the next
// retained row's close, and drops the final row whose label is undefined.
func Prepare(table *Table) []Observation {
	if table == nil {
		return nil
	}

	complete := make([]RawRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		if row.Complete() {
			complete = append(complete, row)
		}
	}

	if len(complete) < 2 {
		log.Warn().
			Int("rows", len(table.Rows)).
			Int("complete", len(complete)).
			Msg("Not enough complete rows to label any observation")
		return nil
	}

	obs := make([]Observation, 0, len(complete)-1)
	for i := 0; i < len(complete)-1; i++ {
		row := complete[i]
		features := make([]float64, len(row.Features))
		copy(features, row.Features)
		obs = append(obs, Observation{
			Timestamp: row.Timestamp,
			Features:  features,
			Close:     row.Close,
			Label:     complete[i+1].Close > row.Close,
		})
	}

	log.Info().
		Int("rows", len(table.Rows)).
		Int("dropped_incomplete", len(table.Rows)-len(complete)).
		Int("observations", len(obs)).
		Float64("positive_rate", PositiveRate(obs)).
		Msg("Observations prepared")

	return obs
}
