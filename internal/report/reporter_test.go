package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-predictor/internal/ml"
)

func sampleReport() *TrainingReport {
	return &TrainingReport{
		RunID:           "3f1c9a7e-0000-4000-8000-000000000000",
		Symbol:          "AAPL",
		BundlePath:      "/models/model.json",
		DataStart:       time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		DataEnd:         time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
		TrainingRows:    800,
		TestRows:        200,
		PositiveRate:    0.53,
		Hyperparameters: ml.DefaultHyperparameters(),
		CV:              ml.CVResult{Scores: []float64{0.51, 0.55, 0.49}, Mean: 0.5166},
		Evaluation: ml.EvaluationReport{
			Accuracy:  0.52,
			Confusion: [2][2]int{{40, 55}, {41, 64}},
			Total:     200,
		},
		Features: []FeatureSummary{
			{Name: "RSI", Importance: 0.4, SplitCount: 120},
			{Name: "SMA", Importance: 0.35, SplitCount: 90},
			{Name: "MACD", Importance: 0.25, SplitCount: 70, PermutationScore: -0.01},
		},
		DriftAlerts: []ml.DriftAlert{
			{FeatureName: "SMA", Method: ml.PopulationStabilityIndex, Severity: "high", Description: "PSI 0.41 above threshold"},
		},
		TrainingTime: 1500 * time.Millisecond,
	}
}

func TestGenerateReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	rep := sampleReport()

	require.NoError(t, NewReporter(rep, dir).GenerateReport())

	for _, name := range []string{SummaryFile, JSONReportFile, ImportanceFile, CVScoresFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	summary, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "TRAINING RESULTS SUMMARY")
	assert.Contains(t, string(summary), "Mean: 0.5166")
	assert.Contains(t, string(summary), "[HIGH] SMA")
	assert.Contains(t, string(summary), "2020-01-02 to 2023-12-29")

	data, err := os.ReadFile(filepath.Join(dir, JSONReportFile))
	require.NoError(t, err)
	var decoded TrainingReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rep.RunID, decoded.RunID)
	assert.Equal(t, rep.CV.Scores, decoded.CV.Scores)
	assert.Equal(t, rep.Evaluation.Confusion, decoded.Evaluation.Confusion)
	assert.False(t, decoded.GeneratedAt.IsZero())
}

func TestGenerateReport_CSVContents(t *testing.T) {
	dir := t.TempDir()
	rep := sampleReport()
	require.NoError(t, NewReporter(rep, dir).GenerateReport())

	importance := readCSV(t, filepath.Join(dir, ImportanceFile))
	require.Len(t, importance, 4)
	assert.Equal(t, []string{"Rank", "Feature", "Importance", "Splits", "Permutation"}, importance[0])
	assert.Equal(t, "1", importance[1][0])
	assert.Equal(t, "RSI", importance[1][1])
	assert.Equal(t, "-0.010000", importance[3][4])

	cv := readCSV(t, filepath.Join(dir, CVScoresFile))
	require.Len(t, cv, 5)
	assert.Equal(t, []string{"3", "0.490000"}, cv[3])
	assert.Equal(t, "mean", cv[4][0])
}

func TestGenerateReport_NoAlertsNoFeatures(t *testing.T) {
	dir := t.TempDir()
	rep := sampleReport()
	rep.DriftAlerts = nil
	rep.Features = nil

	require.NoError(t, NewReporter(rep, dir).GenerateReport())

	summary, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "No alerts")
	assert.NotContains(t, string(summary), "FEATURE IMPORTANCE")

	importance := readCSV(t, filepath.Join(dir, ImportanceFile))
	assert.Len(t, importance, 1)
}

func TestGenerateReport_NilReport(t *testing.T) {
	assert.Error(t, NewReporter(nil, t.TempDir()).GenerateReport())
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(sampleReport(), t.TempDir()).PrintSummary(&buf)

	out := buf.String()
	assert.Contains(t, out, "Cross-validation scores: [0.5100 0.5500 0.4900]")
	assert.Contains(t, out, "Accuracy: 0.5200")
	assert.Contains(t, out, "Distribution shift alerts: 1")
	assert.Contains(t, out, "Model saved to /models/model.json")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}
