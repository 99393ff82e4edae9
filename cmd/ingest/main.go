package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stock-predictor/internal/cfg"
	"stock-predictor/internal/common"
	"stock-predictor/internal/dataset"
	"stock-predictor/internal/storage"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (overrides CONFIG_FILE)")
		csvPath    = flag.String("csv", "", "Indicator CSV to import")
		storePath  = flag.String("store", "", "BoltDB directory (defaults to the configured store or data path)")
		symbol     = flag.String("symbol", "", "Symbol the rows belong to")
		listRuns   = flag.Bool("list-runs", false, "Print the recorded training runs and exit")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *configPath != "" {
		os.Setenv(common.EnvConfigFile, *configPath)
	}
	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *symbol != "" {
		settings.Symbol = *symbol
	}

	dir := *storePath
	if dir == "" {
		dir = settings.StorePath
	}
	if dir == "" {
		log.Fatal().Msg("No store directory: pass -store or set STORE_PATH")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create store directory")
	}

	store, err := storage.New(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open BoltDB")
	}
	defer store.Close()

	if *listRuns {
		printRuns(store)
		return
	}

	if *csvPath == "" {
		log.Fatal().Msg("-csv is required")
	}

	table, err := dataset.LoadCSV(*csvPath, settings.Schema())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load CSV")
	}

	if err := store.StoreObservations(dataset.ToRecords(settings.Symbol, table)); err != nil {
		log.Fatal().Err(err).Msg("Failed to store observations")
	}

	count, err := store.CountObservations(settings.Symbol)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count observations")
	}

	log.Info().
		Str("symbol", settings.Symbol).
		Int("imported", len(table.Rows)).
		Int("stored", count).
		Str("store", dir).
		Msg("Import complete")
}

func printRuns(store *storage.Store) {
	runs, err := store.ListRuns()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}
	if len(runs) == 0 {
		fmt.Println("No training runs recorded")
		return
	}
	fmt.Printf("%-36s %-8s %-19s %8s %8s %8s\n", "RUN", "SYMBOL", "FINISHED", "TRAIN", "CV", "TEST")
	for _, r := range runs {
		fmt.Printf("%-36s %-8s %-19s %8d %8.4f %8.4f\n",
			r.RunID, r.Symbol, r.FinishedAt.Format("2006-01-02 15:04:05"), r.TrainingRows, r.CVMean, r.TestAccuracy)
	}
}
