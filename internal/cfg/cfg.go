// Package cfg loads the stock predictor configuration from an optional YAML
// file and the environment, applies defaults and validates the result.
package cfg

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"stock-predictor/internal/common"
)

var validate = validator.New()

type ConfigFile struct {
	Data struct {
		Path            string   `yaml:"path" default:"data/processed_stock_data.csv"`
		Format          string   `yaml:"format" default:"auto"`
		StorePath       string   `yaml:"storePath"`
		Symbol          string   `yaml:"symbol" default:"AAPL"`
		Start           string   `yaml:"start"`
		End             string   `yaml:"end"`
		TimestampColumn string   `yaml:"timestampColumn" default:"Date"`
		CloseColumn     string   `yaml:"closeColumn" default:"Close"`
		Features        []string `yaml:"features" default:"[\"SMA\",\"EMA\",\"RSI\",\"MACD\",\"SignalLine\"]"`
	} `yaml:"data"`

	Model struct {
		Path            string  `yaml:"path" default:"data/stock_price_prediction_model.json"`
		ModelsDir       string  `yaml:"modelsDir"`
		SplitFraction   float64 `yaml:"splitFraction" default:"0.8"`
		Folds           int     `yaml:"folds" default:"5"`
		Trees           int     `yaml:"trees" default:"100"`
		MaxDepth        int     `yaml:"maxDepth" default:"10"`
		MinSamplesSplit int     `yaml:"minSamplesSplit" default:"5"`
		MaxFeatures     int     `yaml:"maxFeatures"`
		Seed            int64   `yaml:"seed" default:"42"`
		Workers         int     `yaml:"workers"`
	} `yaml:"model"`

	Output struct {
		ReportDir   string `yaml:"reportDir" default:"reports"`
		MetricsFile string `yaml:"metricsFile"`
		LogLevel    string `yaml:"logLevel" default:"info"`
	} `yaml:"output"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := defaults.Set(&config); err != nil {
		return Settings{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return fromConfig(config)
}

func loadFromEnv() (Settings, error) {
	var config ConfigFile
	if err := defaults.Set(&config); err != nil {
		return Settings{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return fromConfig(config)
}

// fromConfig overlays environment variables on config and validates the result
func fromConfig(config ConfigFile) (Settings, error) {
	start, err := parseDate(getEnvOrDefault(common.EnvDataStart, config.Data.Start))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid data start: %w", err)
	}
	end, err := parseDate(getEnvOrDefault(common.EnvDataEnd, config.Data.End))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid data end: %w", err)
	}

	settings := Settings{
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.Data.Path),
		DataFormat:      strings.ToLower(getEnvOrDefault(common.EnvDataFormat, config.Data.Format)),
		StorePath:       getEnvOrDefault(common.EnvStorePath, config.Data.StorePath),
		Symbol:          getEnvOrDefault(common.EnvSymbol, config.Data.Symbol),
		Start:           start,
		End:             end,
		TimestampColumn: getEnvOrDefault(common.EnvTimestampColumn, config.Data.TimestampColumn),
		CloseColumn:     getEnvOrDefault(common.EnvCloseColumn, config.Data.CloseColumn),
		Features:        getListFromEnvOrConfig(common.EnvFeatures, config.Data.Features),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, config.Model.Path),
		ModelsDir:       getEnvOrDefault(common.EnvModelsDir, config.Model.ModelsDir),
		ReportDir:       getEnvOrDefault(common.EnvReportDir, config.Output.ReportDir),
		MetricsFile:     getEnvOrDefault(common.EnvMetricsFile, config.Output.MetricsFile),
		LogLevel:        strings.ToLower(getEnvOrDefault(common.EnvLogLevel, config.Output.LogLevel)),
		SplitFraction:   getFloatOrDefault(common.EnvSplitFraction, config.Model.SplitFraction),
		Folds:           getIntOrDefault(common.EnvFolds, config.Model.Folds),
		Trees:           getIntOrDefault(common.EnvTrees, config.Model.Trees),
		MaxDepth:        getIntOrDefault(common.EnvMaxDepth, config.Model.MaxDepth),
		MinSamplesSplit: getIntOrDefault(common.EnvMinSamplesSplit, config.Model.MinSamplesSplit),
		MaxFeatures:     getIntOrDefault(common.EnvMaxFeatures, config.Model.MaxFeatures),
		Seed:            int64(getIntOrDefault(common.EnvSeed, int(config.Model.Seed))),
		Workers:         getIntOrDefault(common.EnvWorkers, config.Model.Workers),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getListFromEnvOrConfig(key string, configValue []string) []string {
	if env := os.Getenv(key); env != "" {
		parts := strings.Split(env, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return configValue
}

// parseDate accepts a calendar date or an RFC 3339 timestamp; "" is the zero time
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// validateSettings checks struct tags first and then the cross-field rules
func validateSettings(settings *Settings) error {
	if err := validate.Struct(settings); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return errors.New(getErrorMessage(validationErrors[0]))
		}
		return err
	}

	if err := settings.Schema().Validate(); err != nil {
		return err
	}

	if settings.MaxFeatures > len(settings.Features) {
		return fmt.Errorf("max features must not exceed the %d configured features, got %d", len(settings.Features), settings.MaxFeatures)
	}

	if !settings.Start.IsZero() && !settings.End.IsZero() && settings.End.Before(settings.Start) {
		return fmt.Errorf("data end %s is before data start %s", settings.End.Format(time.DateOnly), settings.Start.Format(time.DateOnly))
	}

	return nil
}

func getErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Type().Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s, got %v", field, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s, got %v", field, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be less than %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
