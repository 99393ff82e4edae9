package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stock-predictor/internal/cfg"
	"stock-predictor/internal/common"
	"stock-predictor/internal/metrics"
	"stock-predictor/internal/ml"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	var (
		modelPath   = flag.String("model", "", "Path to a model bundle (defaults to the active registry version, then MODEL_PATH)")
		modelsDir   = flag.String("models-dir", "", "Directory of the model version registry")
		features    = flag.String("features", "", "Comma-separated feature values in bundle order")
		named       = flag.String("named", "", "Comma-separated name=value pairs, e.g. SMA=1.2,EMA=1.1")
		asJSON      = flag.Bool("json", false, "Print the prediction as JSON")
		metricsFile = flag.String("metrics-file", "", "Write Prometheus metrics to this textfile")
		logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if (*features == "") == (*named == "") {
		log.Fatal().Msg("Exactly one of -features or -named is required")
	}

	path, err := resolveModelPath(*modelPath, *modelsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve model bundle")
	}

	registry := prometheus.NewRegistry()
	mw := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	predictor, err := ml.LoadPredictor(path, mw)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load model bundle")
	}

	var pred ml.Prediction
	if *features != "" {
		values, perr := parseVector(*features)
		if perr != nil {
			log.Fatal().Err(perr).Msg("Invalid -features")
		}
		pred, err = predictor.Predict(values)
	} else {
		values, perr := parseNamed(*named)
		if perr != nil {
			log.Fatal().Err(perr).Msg("Invalid -named")
		}
		pred, err = predictor.PredictNamed(values)
	}

	if *metricsFile != "" {
		if werr := metrics.WriteTextfile(*metricsFile, registry); werr != nil {
			log.Error().Err(werr).Msg("Failed to write metrics")
		}
	}

	if err != nil {
		log.Fatal().Err(err).Strs("expected", predictor.FeatureNames()).Msg("Prediction failed")
	}

	if *asJSON {
		out, _ := json.Marshal(pred)
		fmt.Println(string(out))
		return
	}

	meta := predictor.Metadata()
	fmt.Printf("Model: %s (run %s, trained %s)\n", path, meta.RunID, meta.TrainedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Prediction: %s\n", pred.Label)
	fmt.Printf("Vote fraction: %.3f\n", pred.VoteFraction)
}

// resolveModelPath picks the explicit path, then the active registry version, then the configured path
func resolveModelPath(explicit, modelsDir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if modelsDir == "" {
		modelsDir = os.Getenv(common.EnvModelsDir)
	}
	if modelsDir != "" {
		mm, err := ml.NewModelManager(modelsDir)
		if err != nil {
			return "", err
		}
		if current := mm.GetCurrentVersion(); current != nil {
			log.Info().Str("version", current.Version).Msg("Using active model version")
			return current.Path, nil
		}
		log.Warn().Str("dir", modelsDir).Msg("No active model version, falling back to configured model path")
	}

	settings, err := cfg.Load()
	if err != nil {
		return "", err
	}
	return settings.ModelPath, nil
}

func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func parseNamed(s string) (map[string]float64, error) {
	values := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("pair %q is not name=value", pair)
		}
		name = strings.TrimSpace(name)
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("feature %q given twice", name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}
