// Package pipeline runs one end-to-end training job: load the indicator table,
// label and split it, standardize, train and cross-validate the forest,
// evaluate on the held-out tail, persist the bundle and write the reports.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stock-predictor/internal/cfg"
	"stock-predictor/internal/common"
	"stock-predictor/internal/dataset"
	"stock-predictor/internal/ml"
	"stock-predictor/internal/report"
	"stock-predictor/internal/storage"
)

// Metrics is what a training job records. *metrics.MetricsWrapper satisfies it.
type Metrics interface {
	ml.TrainingMetrics
	MLAccuracyObserve(float64)
	BundleSavedInc()
}

// Result is the outcome of a successful run
type Result struct {
	RunID      string
	Bundle     *ml.Bundle
	BundlePath string
	Version    *ml.ModelVersion
	Report     *report.TrainingReport
}

// job carries the state of one run from stage to stage
type job struct {
	settings  cfg.Settings
	metrics   Metrics
	runID     string
	startedAt time.Time
	logger    zerolog.Logger
	store     *storage.Store

	table    *dataset.Table
	part     dataset.Partition
	rawTrain [][]float64
	rawTest  [][]float64
	xTrain   [][]float64
	xTest    [][]float64
	yTrain   []bool
	yTest    []bool

	std        *ml.Standardizer
	params     ml.Hyperparameters
	trained    *ml.TrainingResult
	eval       ml.EvaluationReport
	importance *ml.FeatureImportance
	alerts     []ml.DriftAlert

	result *Result
}

// Run executes a training job with settings. metrics may be nil.
// Nothing is written until training and evaluation have succeeded.
func Run(ctx context.Context, settings cfg.Settings, metrics Metrics) (*Result, error) {
	j := &job{
		settings:  settings,
		metrics:   metrics,
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}
	j.logger = log.With().Str("run_id", j.runID).Str("symbol", settings.Symbol).Logger()

	if archive := settings.ArchivePath(); archive != "" {
		if err := os.MkdirAll(archive, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
		store, err := storage.New(archive)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()
		j.store = store
	}

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"load", j.load},
		{"prepare", j.prepare},
		{"standardize", j.standardize},
		{"train", j.train},
		{"evaluate", j.evaluate},
		{"diagnose", j.diagnose},
		{"persist", j.persist},
		{"report", j.report},
	}
	for _, stage := range stages {
		j.logger.Debug().Str("stage", stage.name).Msg("Stage started")
		if err := stage.fn(ctx); err != nil {
			return nil, err
		}
	}

	j.logger.Info().
		Float64("cv_mean", j.trained.CV.Mean).
		Float64("accuracy", j.eval.Accuracy).
		Dur("elapsed", time.Since(j.startedAt)).
		Msg("Training run complete")

	return j.result, nil
}

func (j *job) load(context.Context) error {
	table, err := load(j.settings, j.store)
	if err != nil {
		return err
	}
	j.table = table
	j.logger.Info().Int("rows", len(table.Rows)).Str("format", j.settings.ResolvedFormat()).Msg("Loaded indicator table")
	return nil
}

func (j *job) prepare(context.Context) error {
	obs := dataset.Prepare(j.table)
	part, err := dataset.Split(obs, j.settings.SplitFraction)
	if err != nil {
		return fmt.Errorf("split observations: %w", err)
	}
	j.part = part
	j.rawTrain, j.rawTest = dataset.Features(part.Train), dataset.Features(part.Test)
	j.yTrain, j.yTest = dataset.Labels(part.Train), dataset.Labels(part.Test)
	return nil
}

// standardize fits on the training partition only and applies the result to both
func (j *job) standardize(context.Context) error {
	j.std = ml.NewStandardizer()
	xTrain, err := j.std.FitTransform(j.rawTrain)
	if err != nil {
		return fmt.Errorf("fit standardizer: %w", err)
	}
	xTest, err := j.std.Transform(j.rawTest)
	if err != nil {
		return fmt.Errorf("standardize test partition: %w", err)
	}
	j.xTrain, j.xTest = xTrain, xTest
	return nil
}

func (j *job) train(ctx context.Context) error {
	trainer, err := ml.NewTrainer(j.settings.Hyperparameters(), j.metrics)
	if err != nil {
		return err
	}
	trained, err := trainer.Train(ctx, j.xTrain, j.yTrain)
	if err != nil {
		return fmt.Errorf("train forest: %w", err)
	}
	j.params = trainer.Params()
	j.trained = trained
	return nil
}

func (j *job) evaluate(context.Context) error {
	eval, err := ml.Evaluate(j.trained.Forest, j.xTest, j.yTest)
	if err != nil {
		return fmt.Errorf("evaluate forest: %w", err)
	}
	if j.metrics != nil {
		j.metrics.MLAccuracyObserve(eval.Accuracy)
	}
	j.eval = eval
	j.logger.Info().Float64("accuracy", eval.Accuracy).Int("test_rows", eval.Total).Msg("Evaluated held-out partition")
	return nil
}

// diagnose computes feature importances and the train/test distribution shift
func (j *job) diagnose(context.Context) error {
	names := j.settings.Features
	importance, err := ml.NewFeatureImportance(names, j.trained.Forest)
	if err != nil {
		return fmt.Errorf("feature importance: %w", err)
	}
	importance.ObserveFeatures(j.rawTrain)
	if err := importance.CalculatePermutationImportance(j.trained.Forest, j.xTest, j.yTest, j.settings.Seed); err != nil {
		return fmt.Errorf("permutation importance: %w", err)
	}
	j.importance = importance

	drift := ml.NewDriftDetector(ml.DriftDetectionConfig{FeatureNames: names})
	if err := drift.UpdateBaseline(j.rawTrain); err != nil {
		return fmt.Errorf("drift baseline: %w", err)
	}
	if err := drift.UpdateCurrent(j.rawTest); err != nil {
		return fmt.Errorf("drift current: %w", err)
	}
	j.alerts = drift.DetectDrift()
	return nil
}

func (j *job) persist(ctx context.Context) error {
	// Last chance to abandon the run before anything is written
	if err := ctx.Err(); err != nil {
		return err
	}

	bundle, err := ml.NewBundle(j.settings.Features, j.std, j.trained.Forest, ml.Metadata{
		RunID:           j.runID,
		Symbol:          j.settings.Symbol,
		TrainedAt:       time.Now(),
		TrainingRows:    len(j.part.Train),
		TestRows:        len(j.part.Test),
		CVScores:        j.trained.CV.Scores,
		CVMean:          j.trained.CV.Mean,
		TestAccuracy:    j.eval.Accuracy,
		Hyperparameters: j.params,
	})
	if err != nil {
		return err
	}

	if err := ml.SaveBundle(bundle, j.settings.ModelPath); err != nil {
		return err
	}
	if j.metrics != nil {
		j.metrics.BundleSavedInc()
	}

	j.result = &Result{RunID: j.runID, Bundle: bundle, BundlePath: j.settings.ModelPath}

	if j.settings.ModelsDir != "" {
		version, err := register(j.settings.ModelsDir, bundle, j.eval)
		if err != nil {
			return err
		}
		j.result.Version = version
	}

	if j.store != nil {
		run := storage.RunRecord{
			RunID:        j.runID,
			Symbol:       j.settings.Symbol,
			BundlePath:   j.settings.ModelPath,
			StartedAt:    j.startedAt,
			FinishedAt:   time.Now(),
			TrainingRows: len(j.part.Train),
			TestRows:     len(j.part.Test),
			CVScores:     j.trained.CV.Scores,
			CVMean:       j.trained.CV.Mean,
			TestAccuracy: j.eval.Accuracy,
		}
		if err := j.store.StoreRun(run); err != nil {
			j.logger.Warn().Err(err).Msg("Failed to record training run")
		}
	}
	return nil
}

func (j *job) report(context.Context) error {
	trainStart, _ := dataset.TimeRange(j.part.Train)
	_, testEnd := dataset.TimeRange(j.part.Test)

	rep := &report.TrainingReport{
		RunID:           j.runID,
		Symbol:          j.settings.Symbol,
		BundlePath:      j.settings.ModelPath,
		DataStart:       trainStart,
		DataEnd:         testEnd,
		TrainingRows:    len(j.part.Train),
		TestRows:        len(j.part.Test),
		PositiveRate:    dataset.PositiveRate(j.part.Train),
		Hyperparameters: j.params,
		CV:              j.trained.CV,
		Evaluation:      j.eval,
		BaselineScore:   j.importance.BaselineScore(),
		Features:        featureSummaries(j.importance),
		DriftAlerts:     j.alerts,
		TrainingTime:    j.trained.Duration,
	}
	if j.result.Version != nil {
		rep.Version = j.result.Version.Version
	}
	j.result.Report = rep

	if err := report.NewReporter(rep, j.settings.ReportDir).GenerateReport(); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	if err := j.importance.Save(filepath.Join(j.settings.ReportDir, report.ImportanceJSONFile)); err != nil {
		return fmt.Errorf("write importance: %w", err)
	}
	return nil
}

func load(settings cfg.Settings, store *storage.Store) (*dataset.Table, error) {
	schema := settings.Schema()

	switch settings.ResolvedFormat() {
	case common.FormatCSV:
		table, err := dataset.LoadCSV(settings.DataPath, schema)
		if err != nil {
			return nil, err
		}
		return clip(table, settings.Start, settings.End), nil
	case common.FormatBoltDB:
		if store == nil {
			return nil, fmt.Errorf("no observation archive configured")
		}
		return dataset.LoadFromStore(store, settings.Symbol, settings.Start, settings.End, schema)
	default:
		return nil, fmt.Errorf("unsupported data format %q", settings.DataFormat)
	}
}

// clip keeps the rows inside [start, end]; zero bounds are open
func clip(table *dataset.Table, start, end time.Time) *dataset.Table {
	if start.IsZero() && end.IsZero() {
		return table
	}
	rows := table.Rows[:0:0]
	for _, row := range table.Rows {
		if !start.IsZero() && row.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && row.Timestamp.After(end) {
			continue
		}
		rows = append(rows, row)
	}
	return &dataset.Table{Schema: table.Schema, Rows: rows}
}

// register copies the bundle into the models directory and activates it
func register(modelsDir string, bundle *ml.Bundle, eval ml.EvaluationReport) (*ml.ModelVersion, error) {
	mm, err := ml.NewModelManager(modelsDir)
	if err != nil {
		return nil, err
	}

	path := mm.BundlePath(bundle.Metadata.RunID)
	if err := ml.SaveBundle(bundle, path); err != nil {
		return nil, err
	}

	positive := eval.Classes[1]
	version, err := mm.AddVersion(path, bundle.Metadata.RunID, ml.ModelMetrics{
		CVMean:          bundle.Metadata.CVMean,
		TestAccuracy:    eval.Accuracy,
		F1Score:         positive.F1,
		Precision:       positive.Precision,
		Recall:          positive.Recall,
		TrainingSamples: bundle.Metadata.TrainingRows,
	})
	if err != nil {
		return nil, fmt.Errorf("register model version: %w", err)
	}
	if err := mm.ActivateVersion(version.Version); err != nil {
		return nil, fmt.Errorf("activate model version: %w", err)
	}
	return &version, nil
}

func featureSummaries(fi *ml.FeatureImportance) []report.FeatureSummary {
	stats := fi.GetFeatureImportance()
	ranked := fi.Ranked()
	out := make([]report.FeatureSummary, 0, len(ranked))
	for _, r := range ranked {
		s := report.FeatureSummary{Name: r.Name, Importance: r.Importance}
		if st, ok := stats[r.Name]; ok {
			s.SplitCount = st.SplitCount
			s.PermutationScore = st.PermutationScore
		}
		out = append(out, s)
	}
	return out
}
