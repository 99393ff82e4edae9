package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stock-predictor/internal/cfg"
	"stock-predictor/internal/common"
	"stock-predictor/internal/metrics"
	"stock-predictor/internal/pipeline"
	"stock-predictor/internal/report"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	// Parse command line arguments
	var (
		configPath  = flag.String("config", "", "Path to YAML config (overrides CONFIG_FILE)")
		dataPath    = flag.String("data", "", "Indicator CSV file or BoltDB directory")
		dataFormat  = flag.String("format", "", "Data format: auto, csv, boltdb")
		symbol      = flag.String("symbol", "", "Symbol to train on")
		modelPath   = flag.String("model", "", "Output path of the model bundle")
		modelsDir   = flag.String("models-dir", "", "Directory of the model version registry")
		outputPath  = flag.String("output", "", "Output directory for reports")
		metricsFile = flag.String("metrics-file", "", "Write Prometheus metrics to this textfile")
		logLevel    = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
		startDate   = flag.String("start", "", "Start date (YYYY-MM-DD)")
		endDate     = flag.String("end", "", "End date (YYYY-MM-DD)")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *configPath != "" {
		os.Setenv(common.EnvConfigFile, *configPath)
	}

	// Dates go through the same parser as the config file
	if *startDate != "" {
		os.Setenv(common.EnvDataStart, *startDate)
	}
	if *endDate != "" {
		os.Setenv(common.EnvDataEnd, *endDate)
	}

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Override config with command line arguments
	overrideString(&settings.DataPath, *dataPath)
	overrideString(&settings.DataFormat, *dataFormat)
	overrideString(&settings.Symbol, *symbol)
	overrideString(&settings.ModelPath, *modelPath)
	overrideString(&settings.ModelsDir, *modelsDir)
	overrideString(&settings.ReportDir, *outputPath)
	overrideString(&settings.MetricsFile, *metricsFile)
	overrideString(&settings.LogLevel, *logLevel)
	if err := settings.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Print configuration
	fmt.Println("=== Training Configuration ===")
	fmt.Printf("Data: %s (%s)\n", settings.DataPath, settings.ResolvedFormat())
	fmt.Printf("Symbol: %s\n", settings.Symbol)
	fmt.Printf("Features: %v\n", settings.Features)
	fmt.Printf("Model Path: %s\n", settings.ModelPath)
	fmt.Printf("Output Directory: %s\n", settings.ReportDir)
	fmt.Printf("Trees: %d, Folds: %d, Seed: %d\n", settings.Trees, settings.Folds, settings.Seed)
	fmt.Println("==============================")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)

	result, runErr := pipeline.Run(ctx, settings, metrics.NewWrapper(m))

	if settings.MetricsFile != "" {
		if err := metrics.WriteTextfile(settings.MetricsFile, registry); err != nil {
			log.Error().Err(err).Msg("Failed to write metrics")
		}
	}

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Training failed")
	}

	// Print summary to console
	report.NewReporter(result.Report, settings.ReportDir).PrintSummary(os.Stdout)

	log.Info().
		Str("run_id", result.RunID).
		Str("model", result.BundlePath).
		Str("output", settings.ReportDir).
		Msg("Training completed successfully")
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
