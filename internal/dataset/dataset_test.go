package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-predictor/internal/storage"
)

var testStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// increasingCSV builds an n-row table whose close rises every day
func increasingCSV(n int) string {
	var b strings.Builder
	b.WriteString("Date,Open,Close,SMA,EMA,RSI,MACD,SignalLine\n")
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%.2f,%.4f,%.4f\n",
			testStart.AddDate(0, 0, i).Format("2006-01-02"), c-0.5, c, c-1, c-0.8, 50+float64(i%10), 0.1*float64(i%7), 0.05*float64(i%5))
	}
	return b.String()
}

func mustPrepare(t *testing.T, csvText string) []Observation {
	t.Helper()
	table, err := ReadCSV(strings.NewReader(csvText), DefaultSchema())
	require.NoError(t, err)
	return Prepare(table)
}

func TestReadCSV_SortsAndIgnoresExtraColumns(t *testing.T) {
	input := "Close,Volume,Date,SMA,EMA,RSI,MACD,SignalLine\n" +
		"11,500,2024-01-03,1,2,3,4,5\n" +
		"10,400,2024-01-02,1,2,3,4,5\n"

	table, err := ReadCSV(strings.NewReader(input), DefaultSchema())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, 10.0, table.Rows[0].Close)
	assert.Equal(t, 11.0, table.Rows[1].Close)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, table.Rows[0].Features)
	assert.True(t, table.Rows[0].Timestamp.Before(table.Rows[1].Timestamp))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"missing feature column", "Date,Close,SMA,EMA,RSI,MACD\n2024-01-02,1,1,1,1,1\n"},
		{"missing close column", "Date,SMA,EMA,RSI,MACD,SignalLine\n2024-01-02,1,1,1,1,1\n"},
		{"non numeric value", "Date,Close,SMA,EMA,RSI,MACD,SignalLine\n2024-01-02,abc,1,1,1,1,1\n"},
		{"bad timestamp", "Date,Close,SMA,EMA,RSI,MACD,SignalLine\nyesterday,1,1,1,1,1,1\n"},
		{"duplicate timestamp", "Date,Close,SMA,EMA,RSI,MACD,SignalLine\n2024-01-02,1,1,1,1,1,1\n2024-01-02,2,1,1,1,1,1\n"},
		{"ragged row", "Date,Close,SMA,EMA,RSI,MACD,SignalLine\n2024-01-02,1,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), DefaultSchema())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDataFormat)
		})
	}
}

func TestReadCSV_MissingMarkers(t *testing.T) {
	input := "Date,Close,SMA,EMA,RSI,MACD,SignalLine\n" +
		"2024-01-02,1,,NaN,null,NA,nan\n"

	table, err := ReadCSV(strings.NewReader(input), DefaultSchema())
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	for _, v := range table.Rows[0].Features {
		assert.True(t, math.IsNaN(v))
	}
	assert.False(t, table.Rows[0].Complete())
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, DefaultSchema().Validate())

	s := DefaultSchema()
	s.FeatureColumns = append(s.FeatureColumns, "SMA")
	assert.ErrorIs(t, s.Validate(), ErrDataFormat)

	s = DefaultSchema()
	s.FeatureColumns = nil
	assert.ErrorIs(t, s.Validate(), ErrDataFormat)
}

func TestPrepare_IncreasingCloseYieldsAllPositive(t *testing.T) {
	obs := mustPrepare(t, increasingCSV(100))

	require.Len(t, obs, 99)
	for i, o := range obs {
		assert.True(t, o.Label, "row %d", i)
	}
	assert.Equal(t, 1.0, PositiveRate(obs))
}

func TestPrepare_DropsIncompleteRowsBeforeLabeling(t *testing.T) {
	input := "Date,Close,SMA,EMA,RSI,MACD,SignalLine\n" +
		"2024-01-01,10,1,1,1,1,1\n" +
		"2024-01-02,20,,1,1,1,1\n" + // dropped; 2024-01-01 is compared with 2024-01-03
		"2024-01-03,5,1,1,1,1,1\n" +
		"2024-01-04,6,1,1,1,1,1\n"

	obs := mustPrepare(t, input)
	require.Len(t, obs, 2)
	assert.Equal(t, 10.0, obs[0].Close)
	assert.False(t, obs[0].Label)
	assert.Equal(t, 5.0, obs[1].Close)
	assert.True(t, obs[1].Label)
}

func TestPrepare_EqualCloseIsNegative(t *testing.T) {
	input := "Date,Close,SMA,EMA,RSI,MACD,SignalLine\n" +
		"2024-01-01,10,1,1,1,1,1\n" +
		"2024-01-02,10,1,1,1,1,1\n"

	obs := mustPrepare(t, input)
	require.Len(t, obs, 1)
	assert.False(t, obs[0].Label)
}

func TestPrepare_TooFewRows(t *testing.T) {
	assert.Empty(t, mustPrepare(t, increasingCSV(1)))
	assert.Nil(t, Prepare(nil))
}

func TestSplit_EightyTwenty(t *testing.T) {
	obs := mustPrepare(t, increasingCSV(101)) // 100 observations

	p, err := Split(obs, 0.8)
	require.NoError(t, err)
	require.Len(t, p.Train, 80)
	require.Len(t, p.Test, 20)

	_, trainEnd := TimeRange(p.Train)
	testBegin, _ := TimeRange(p.Test)
	assert.True(t, trainEnd.Before(testBegin))

	again, err := Split(obs, 0.8)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestSplit_Errors(t *testing.T) {
	obs := mustPrepare(t, increasingCSV(11))

	for _, f := range []float64{0, 1, -0.2, 1.5, math.NaN()} {
		_, err := Split(obs, f)
		assert.ErrorIs(t, err, ErrInvalidSplitFraction, "fraction %v", f)
	}

	_, err := Split(obs[:1], 0.8)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Split(nil, 0.5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLoadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(increasingCSV(5)), 0o600))

	table, err := LoadCSV(path, DefaultSchema())
	require.NoError(t, err)
	assert.Len(t, table.Rows, 5)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), DefaultSchema())
	assert.Error(t, err)
}

func TestLoadFromStore_RoundTrip(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	table, err := ReadCSV(strings.NewReader(increasingCSV(10)+"2023-01-12,1,,1,1,1,1,\n"), DefaultSchema())
	require.NoError(t, err)
	require.NoError(t, store.StoreObservations(ToRecords("MSFT", table)))

	loaded, err := LoadFromStore(store, "MSFT", time.Time{}, time.Time{}, DefaultSchema())
	require.NoError(t, err)
	require.Len(t, loaded.Rows, 11)
	assert.Equal(t, table.Rows[3].Features, loaded.Rows[3].Features)
	assert.True(t, math.IsNaN(loaded.Rows[10].Close))
	assert.True(t, math.IsNaN(loaded.Rows[10].Features[4]))

	assert.Len(t, Prepare(loaded), 9)

	_, err = LoadFromStore(store, "AAPL", time.Time{}, time.Time{}, DefaultSchema())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFeaturesAndLabels(t *testing.T) {
	obs := []Observation{
		{Features: []float64{1, 2}, Label: true},
		{Features: []float64{3, 4}, Label: false},
	}
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, Features(obs))
	assert.Equal(t, []bool{true, false}, Labels(obs))
}
