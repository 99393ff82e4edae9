package common

// DefaultFeatureNames is the fixed, ordered feature set consumed by the model.
var DefaultFeatureNames = []string{"SMA", "EMA", "RSI", "MACD", "SignalLine"}

// Table columns
const (
	DefaultTimestampColumn = "Date"
	DefaultCloseColumn     = "Close"
)

// Decision labels
const (
	LabelFavorable   = "favorable"
	LabelUnfavorable = "unfavorable"
)

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvDataPath        = "DATA_PATH"
	EnvDataFormat      = "DATA_FORMAT"
	EnvStorePath       = "STORE_PATH"
	EnvDataStart       = "DATA_START"
	EnvDataEnd         = "DATA_END"
	EnvSymbol          = "SYMBOL"
	EnvModelPath       = "MODEL_PATH"
	EnvModelsDir       = "MODELS_DIR"
	EnvReportDir       = "REPORT_DIR"
	EnvMetricsFile     = "METRICS_FILE"
	EnvLogLevel        = "LOG_LEVEL"
	EnvTimestampColumn = "TIMESTAMP_COLUMN"
	EnvCloseColumn     = "CLOSE_COLUMN"
	EnvFeatures        = "FEATURES"
	EnvSplitFraction   = "SPLIT_FRACTION"
	EnvFolds           = "CV_FOLDS"
	EnvTrees           = "FOREST_TREES"
	EnvMaxDepth        = "FOREST_MAX_DEPTH"
	EnvMinSamplesSplit = "FOREST_MIN_SAMPLES_SPLIT"
	EnvMaxFeatures     = "FOREST_MAX_FEATURES"
	EnvSeed            = "FOREST_SEED"
	EnvWorkers         = "FOREST_WORKERS"
)

// Configuration defaults
const (
	DefaultDataPath        = "data/processed_stock_data.csv"
	DefaultSymbol          = "AAPL"
	DefaultModelPath       = "data/stock_price_prediction_model.json"
	DefaultSplitFraction   = 0.8
	DefaultFolds           = 5
	DefaultTrees           = 100
	DefaultMaxDepth        = 10
	DefaultMinSamplesSplit = 5
	DefaultSeed            = 42
)

// Data formats accepted by the trainer
const (
	FormatAuto   = "auto"
	FormatCSV    = "csv"
	FormatBoltDB = "boltdb"
)

// Validation constants
const (
	MinFolds     = 2
	MaxFolds     = 50
	MaxTrees     = 5000
	MaxTreeDepth = 64
)
