package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stock-predictor/internal/common"
	"stock-predictor/internal/dataset"
	"stock-predictor/internal/storage"
)

const (
	smaWindow    = 14
	rsiWindow    = 14
	macdFast     = 12
	macdSlow     = 26
	signalWindow = 9
)

func main() {
	var (
		output     = flag.String("output", "data/processed_stock_data.csv", "CSV file to write")
		storePath  = flag.String("store", "", "Also import the rows into this BoltDB directory")
		symbol     = flag.String("symbol", "AAPL", "Symbol to generate data for")
		days       = flag.Int("days", 750, "Number of trading days to generate")
		startPrice = flag.Float64("start-price", 150, "Starting price")
		seed       = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Printf("Generating sample data for %s...\n", *symbol)
	fmt.Printf("  Days: %d\n", *days)
	fmt.Printf("  Start Price: $%.2f\n", *startPrice)
	fmt.Printf("  Output: %s\n", *output)

	rows := generate(rand.New(rand.NewSource(*seed)), *days, *startPrice)
	if err := writeCSV(*output, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}

	if *storePath != "" {
		if err := importRows(*storePath, *symbol, *output); err != nil {
			log.Fatal().Err(err).Msg("Failed to import into BoltDB")
		}
	}

	fmt.Printf("Generated %d rows for %s\n", len(rows), *symbol)
}

type sampleRow struct {
	date                        time.Time
	close                       float64
	sma, ema, rsi, macd, signal float64
}

// generate simulates a mean-reverting random walk over weekdays and derives the indicators
func generate(rng *rand.Rand, days int, startPrice float64) []sampleRow {
	volatility := 0.015
	drift := 0.0003

	rows := make([]sampleRow, 0, days)
	price := startPrice
	date := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

	var (
		closes           []float64
		emaFast, emaSlow float64
		ema, signal      float64
		avgGain, avgLoss float64
	)
	for len(rows) < days {
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			date = date.AddDate(0, 0, 1)
			continue
		}

		ret := drift + volatility*rng.NormFloat64()
		price *= math.Exp(ret)
		closes = append(closes, price)
		n := len(closes)

		row := sampleRow{date: date, close: price}
		row.sma, row.ema, row.rsi, row.macd, row.signal = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()

		if n == 1 {
			emaFast, emaSlow, ema = price, price, price
		} else {
			emaFast = emaStep(emaFast, price, macdFast)
			emaSlow = emaStep(emaSlow, price, macdSlow)
			ema = emaStep(ema, price, smaWindow)

			change := price - closes[n-2]
			gain, loss := math.Max(change, 0), math.Max(-change, 0)
			avgGain = (avgGain*(rsiWindow-1) + gain) / rsiWindow
			avgLoss = (avgLoss*(rsiWindow-1) + loss) / rsiWindow
		}

		if n >= smaWindow {
			sum := 0.0
			for _, c := range closes[n-smaWindow:] {
				sum += c
			}
			row.sma = sum / smaWindow
			row.ema = ema
		}
		if n > rsiWindow {
			if avgLoss == 0 {
				row.rsi = 100
			} else {
				row.rsi = 100 - 100/(1+avgGain/avgLoss)
			}
		}
		if n >= macdSlow {
			macd := emaFast - emaSlow
			if n == macdSlow {
				signal = macd
			} else {
				signal = emaStep(signal, macd, signalWindow)
			}
			row.macd = macd
			if n >= macdSlow+signalWindow-1 {
				row.signal = signal
			}
		}

		rows = append(rows, row)
		date = date.AddDate(0, 0, 1)
	}
	return rows
}

func emaStep(prev, v float64, window int) float64 {
	alpha := 2 / float64(window+1)
	return alpha*v + (1-alpha)*prev
}

func writeCSV(path string, rows []sampleRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := append([]string{common.DefaultTimestampColumn, common.DefaultCloseColumn}, common.DefaultFeatureNames...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.date.Format("2006-01-02"),
			formatValue(r.close),
			formatValue(r.sma),
			formatValue(r.ema),
			formatValue(r.rsi),
			formatValue(r.macd),
			formatValue(r.signal),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// formatValue leaves warm-up values empty, which the loader reads as missing
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func importRows(dir, symbol, csvPath string) error {
	table, err := dataset.LoadCSV(csvPath, dataset.DefaultSchema())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	store, err := storage.New(dir)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.StoreObservations(dataset.ToRecords(symbol, table))
}
