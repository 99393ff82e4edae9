package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stock-predictor/internal/storage"
)

// timestampLayouts are tried in order when parsing the timestamp column
var timestampLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	time.RFC3339Nano,
}

// ObservationReader is the part of the observation archive the loader needs
type ObservationReader interface {
	GetObservations(symbol string, start, end time.Time) ([]storage.ObservationRecord, error)
}

// LoadCSV loads an indicator table from a CSV file
func LoadCSV(filePath string, schema Schema) (*Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	table, err := ReadCSV(file, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	log.Info().
		Str("file", filePath).
		Int("rows", len(table.Rows)).
		Msg("CSV data loaded successfully")

	return table, nil
}

// ReadCSV parses a header-first CSV table. Columns not named by the schema are ignored.
func ReadCSV(r io.Reader, schema Schema) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input, no header row", ErrDataFormat)
		}
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrDataFormat, err)
	}

	// Map header indices
	indices := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		indices[col] = i
	}

	column := func(name string) (int, error) {
		idx, ok := indices[name]
		if !ok {
			return 0, fmt.Errorf("%w: required column %q not found", ErrDataFormat, name)
		}
		return idx, nil
	}

	tsIdx, err := column(schema.TimestampColumn)
	if err != nil {
		return nil, err
	}
	closeIdx, err := column(schema.CloseColumn)
	if err != nil {
		return nil, err
	}
	featureIdx := make([]int, len(schema.FeatureColumns))
	for i, name := range schema.FeatureColumns {
		if featureIdx[i], err = column(name); err != nil {
			return nil, err
		}
	}

	table := &Table{Schema: schema}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataFormat, err)
		}

		ts, err := parseTimestamp(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d column %q: %v", ErrDataFormat, line, schema.TimestampColumn, err)
		}

		row := RawRow{Timestamp: ts, Features: make([]float64, len(featureIdx))}
		if row.Close, err = parseValue(record[closeIdx]); err != nil {
			return nil, fmt.Errorf("%w: row %d column %q: %v", ErrDataFormat, line, schema.CloseColumn, err)
		}
		for i, idx := range featureIdx {
			if row.Features[i], err = parseValue(record[idx]); err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", ErrDataFormat, line, schema.FeatureColumns[i], err)
			}
		}

		table.Rows = append(table.Rows, row)
	}

	if err := sortRows(table.Rows); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadFromStore builds an indicator table from the observation archive
func LoadFromStore(store ObservationReader, symbol string, start, end time.Time, schema Schema) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("symbol", symbol).
		Time("start", start).
		Time("end", end).
		Msg("Loading data from BoltDB")

	records, err := store.GetObservations(symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations for %s: %w", symbol, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no observations stored for %s", ErrInsufficientData, symbol)
	}

	table := &Table{Schema: schema, Rows: make([]RawRow, 0, len(records))}
	for _, rec := range records {
		row := RawRow{Timestamp: rec.Timestamp, Close: math.NaN(), Features: make([]float64, len(schema.FeatureColumns))}
		if rec.Close != nil {
			row.Close = *rec.Close
		}
		for i, name := range schema.FeatureColumns {
			v, ok := rec.Features[name]
			if !ok {
				v = math.NaN()
			}
			row.Features[i] = v
		}
		table.Rows = append(table.Rows, row)
	}

	if err := sortRows(table.Rows); err != nil {
		return nil, err
	}

	log.Info().
		Int("rows", len(table.Rows)).
		Time("data_start", table.Rows[0].Timestamp).
		Time("data_end", table.Rows[len(table.Rows)-1].Timestamp).
		Msg("Data loaded successfully")

	return table, nil
}

// ToRecords converts a table into archive records for symbol. Missing values are omitted.
func ToRecords(symbol string, table *Table) []storage.ObservationRecord {
	records := make([]storage.ObservationRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		rec := storage.ObservationRecord{
			Symbol:    symbol,
			Timestamp: row.Timestamp,
			Features:  make(map[string]float64, len(row.Features)),
		}
		if !math.IsNaN(row.Close) {
			c := row.Close
			rec.Close = &c
		}
		for i, v := range row.Features {
			if !math.IsNaN(v) {
				rec.Features[table.Schema.FeatureColumns[i]] = v
			}
		}
		records = append(records, rec)
	}
	return records
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseValue returns NaN for the missing-value markers
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "na":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("infinite value %q", s)
	}
	return v, nil
}

func sortRows(rows []RawRow) error {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp.Equal(rows[i-1].Timestamp) {
			return fmt.Errorf("%w: duplicate timestamp %s", ErrDataFormat, rows[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
