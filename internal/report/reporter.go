// Package report writes the human-readable and machine-readable outputs of a
// training run.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stock-predictor/internal/common"
	"stock-predictor/internal/ml"
)

const (
	SummaryFile        = "training_summary.txt"
	JSONReportFile     = "training_report.json"
	ImportanceFile     = "importance.csv"
	ImportanceJSONFile = "feature_importance.json"
	CVScoresFile       = "cv_scores.csv"
)

// FeatureSummary is one row of the importance table
type FeatureSummary struct {
	Name             string  `json:"name"`
	Importance       float64 `json:"importance"`
	SplitCount       int     `json:"split_count"`
	PermutationScore float64 `json:"permutation_score"`
}

// TrainingReport collects everything a finished training run reports
type TrainingReport struct {
	RunID           string              `json:"run_id"`
	Symbol          string              `json:"symbol"`
	BundlePath      string              `json:"bundle_path"`
	Version         string              `json:"version,omitempty"`
	DataStart       time.Time           `json:"data_start"`
	DataEnd         time.Time           `json:"data_end"`
	TrainingRows    int                 `json:"training_rows"`
	TestRows        int                 `json:"test_rows"`
	PositiveRate    float64             `json:"positive_rate"`
	Hyperparameters ml.Hyperparameters  `json:"hyperparameters"`
	CV              ml.CVResult         `json:"cross_validation"`
	Evaluation      ml.EvaluationReport `json:"evaluation"`
	BaselineScore   float64             `json:"baseline_score"`
	Features        []FeatureSummary    `json:"features"`
	DriftAlerts     []ml.DriftAlert     `json:"drift_alerts"`
	TrainingTime    time.Duration       `json:"training_time_ns"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// Reporter generates training reports
type Reporter struct {
	report     *TrainingReport
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(report *TrainingReport, outputPath string) *Reporter {
	return &Reporter{
		report:     report,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if r.report == nil {
		return fmt.Errorf("no training report to write")
	}

	// Create output directory
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if r.report.GeneratedAt.IsZero() {
		r.report.GeneratedAt = time.Now()
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	if err := r.generateImportanceCSV(); err != nil {
		return err
	}

	return r.generateCVScoresCSV()
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	rep := r.report

	fmt.Fprintf(file, "TRAINING RESULTS SUMMARY\n")
	fmt.Fprintf(file, "========================\n\n")

	fmt.Fprintf(file, "Run: %s\n", rep.RunID)
	fmt.Fprintf(file, "Symbol: %s\n", rep.Symbol)
	fmt.Fprintf(file, "Data Period: %s to %s\n",
		rep.DataStart.Format(time.DateOnly),
		rep.DataEnd.Format(time.DateOnly))
	fmt.Fprintf(file, "Bundle: %s\n", rep.BundlePath)
	if rep.Version != "" {
		fmt.Fprintf(file, "Version: %s\n", rep.Version)
	}
	fmt.Fprintf(file, "Training Time: %s\n\n", rep.TrainingTime.Round(time.Millisecond))

	fmt.Fprintf(file, "DATA\n")
	fmt.Fprintf(file, "----\n")
	fmt.Fprintf(file, "Training Rows: %d\n", rep.TrainingRows)
	fmt.Fprintf(file, "Test Rows: %d\n", rep.TestRows)
	fmt.Fprintf(file, "Positive Rate (train): %.2f%%\n\n", rep.PositiveRate*100)

	fmt.Fprintf(file, "MODEL\n")
	fmt.Fprintf(file, "-----\n")
	p := rep.Hyperparameters
	fmt.Fprintf(file, "Trees: %d, Max Depth: %d, Min Samples Split: %d, Max Features: %d, Seed: %d\n\n",
		p.Trees, p.MaxDepth, p.MinSamplesSplit, p.MaxFeatures, p.Seed)

	fmt.Fprintf(file, "CROSS-VALIDATION\n")
	fmt.Fprintf(file, "----------------\n")
	fmt.Fprintf(file, "Scores: %s\n", formatScores(rep.CV.Scores))
	fmt.Fprintf(file, "Mean: %.4f\n\n", rep.CV.Mean)

	fmt.Fprintf(file, "TEST SET\n")
	fmt.Fprintf(file, "--------\n")
	fmt.Fprintf(file, "Accuracy: %.4f\n\n", rep.Evaluation.Accuracy)
	fmt.Fprintf(file, "%s\n", rep.Evaluation.String())
	fmt.Fprintf(file, "Confusion (rows actual, columns predicted):\n")
	fmt.Fprintf(file, "%14s %8d %8d\n", common.LabelUnfavorable, rep.Evaluation.Confusion[0][0], rep.Evaluation.Confusion[0][1])
	fmt.Fprintf(file, "%14s %8d %8d\n\n", common.LabelFavorable, rep.Evaluation.Confusion[1][0], rep.Evaluation.Confusion[1][1])

	if len(rep.Features) > 0 {
		fmt.Fprintf(file, "FEATURE IMPORTANCE\n")
		fmt.Fprintf(file, "------------------\n")
		for _, f := range rep.Features {
			fmt.Fprintf(file, "%-12s %.4f (splits %d, permutation %+.4f)\n",
				f.Name, f.Importance, f.SplitCount, f.PermutationScore)
		}
		fmt.Fprintln(file)
	}

	fmt.Fprintf(file, "DISTRIBUTION SHIFT (train vs test)\n")
	fmt.Fprintf(file, "----------------------------------\n")
	if len(rep.DriftAlerts) == 0 {
		fmt.Fprintf(file, "No alerts\n")
	}
	for _, alert := range rep.DriftAlerts {
		fmt.Fprintf(file, "[%s] %s: %s\n", strings.ToUpper(alert.Severity), alert.FeatureName, alert.Description)
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, JSONReportFile)

	data, err := json.MarshalIndent(r.report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := common.WriteFileAtomic(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// generateImportanceCSV writes the ranked feature importances
func (r *Reporter) generateImportanceCSV() error {
	csvPath := filepath.Join(r.outputPath, ImportanceFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create importance report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Rank", "Feature", "Importance", "Splits", "Permutation"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, f := range r.report.Features {
		record := []string{
			fmt.Sprintf("%d", i+1),
			f.Name,
			fmt.Sprintf("%.6f", f.Importance),
			fmt.Sprintf("%d", f.SplitCount),
			fmt.Sprintf("%.6f", f.PermutationScore),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("Importance report generated")
	return nil
}

// generateCVScoresCSV writes one row per cross-validation fold
func (r *Reporter) generateCVScoresCSV() error {
	csvPath := filepath.Join(r.outputPath, CVScoresFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create cv scores report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"Fold", "Accuracy"}); err != nil {
		return err
	}
	for i, score := range r.report.CV.Scores {
		if err := writer.Write([]string{fmt.Sprintf("%d", i+1), fmt.Sprintf("%.6f", score)}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"mean", fmt.Sprintf("%.6f", r.report.CV.Mean)}); err != nil {
		return err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("CV scores report generated")
	return nil
}

// PrintSummary prints a summary to w
func (r *Reporter) PrintSummary(w io.Writer) {
	rep := r.report
	fmt.Fprintln(w, "\n=== TRAINING RESULTS ===")
	fmt.Fprintf(w, "Symbol: %s (run %s)\n", rep.Symbol, rep.RunID)
	fmt.Fprintf(w, "Rows: %d train / %d test\n", rep.TrainingRows, rep.TestRows)
	fmt.Fprintf(w, "Cross-validation scores: %s\n", formatScores(rep.CV.Scores))
	fmt.Fprintf(w, "Mean cross-validation score: %.4f\n", rep.CV.Mean)
	fmt.Fprintf(w, "Accuracy: %.4f\n", rep.Evaluation.Accuracy)
	fmt.Fprintln(w, rep.Evaluation.String())
	if len(rep.Features) > 0 {
		fmt.Fprintln(w, "Feature importances:")
		for _, f := range rep.Features {
			fmt.Fprintf(w, "  %-12s %.4f\n", f.Name, f.Importance)
		}
	}
	if len(rep.DriftAlerts) > 0 {
		fmt.Fprintf(w, "Distribution shift alerts: %d\n", len(rep.DriftAlerts))
	}
	fmt.Fprintf(w, "Model saved to %s\n", rep.BundlePath)
	fmt.Fprintln(w, "========================")
}

func formatScores(scores []float64) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%.4f", s)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
