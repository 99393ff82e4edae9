package ml

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DriftDetector compares the feature distributions of two samples, normally
// the raw training partition (baseline) and the raw test partition (current).
// It only reports; it never changes training.
type DriftDetector struct {
	mu               sync.RWMutex
	featureNames     []string
	baselineStats    map[string]*FeatureDistribution
	currentStats     map[string]*FeatureDistribution
	driftThresholds  map[string]float64
	alertThreshold   float64
	minSamples       int
	detectionMethods []DriftDetectionMethod
}

// FeatureDistribution contains distribution statistics for a feature
type FeatureDistribution struct {
	Mean        float64   `json:"mean"`
	StandardDev float64   `json:"standard_dev"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Percentiles []float64 `json:"percentiles"` // 25th, 50th, 75th percentiles
	SampleCount int       `json:"sample_count"`
	Samples     []float64 `json:"-"` // sorted ascending
}

// DriftDetectionMethod represents different methods for detecting drift
type DriftDetectionMethod string

const (
	KolmogorovSmirnovTest    DriftDetectionMethod = "kolmogorov_smirnov"
	PopulationStabilityIndex DriftDetectionMethod = "population_stability_index"
	StatisticalMoments       DriftDetectionMethod = "statistical_moments"
)

// DriftAlert represents a drift detection alert
type DriftAlert struct {
	Timestamp      time.Time            `json:"timestamp"`
	FeatureName    string               `json:"feature_name"`
	Method         DriftDetectionMethod `json:"method"`
	DriftScore     float64              `json:"drift_score"`
	Threshold      float64              `json:"threshold"`
	Severity       string               `json:"severity"`
	Description    string               `json:"description"`
	Recommendation string               `json:"recommendation"`
}

// DriftDetectionConfig configures drift detection
type DriftDetectionConfig struct {
	FeatureNames     []string               `yaml:"feature_names"`
	AlertThreshold   float64                `yaml:"alert_threshold"`
	MinSamples       int                    `yaml:"min_samples"`
	DetectionMethods []DriftDetectionMethod `yaml:"detection_methods"`
	DriftThresholds  map[string]float64     `yaml:"drift_thresholds"`
}

// NewDriftDetector creates a new drift detector
func NewDriftDetector(config DriftDetectionConfig) *DriftDetector {
	dd := &DriftDetector{
		featureNames:     append([]string(nil), config.FeatureNames...),
		baselineStats:    make(map[string]*FeatureDistribution),
		currentStats:     make(map[string]*FeatureDistribution),
		driftThresholds:  config.DriftThresholds,
		alertThreshold:   config.AlertThreshold,
		minSamples:       config.MinSamples,
		detectionMethods: config.DetectionMethods,
	}

	// Set default values
	if dd.alertThreshold == 0 {
		dd.alertThreshold = 0.1
	}
	if dd.minSamples == 0 {
		dd.minSamples = 30
	}
	if len(dd.detectionMethods) == 0 {
		dd.detectionMethods = []DriftDetectionMethod{KolmogorovSmirnovTest, PopulationStabilityIndex}
	}

	return dd
}

// UpdateBaseline replaces the baseline distributions with the columns of X
func (dd *DriftDetector) UpdateBaseline(X [][]float64) error {
	stats, err := dd.distributions(X)
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	dd.mu.Lock()
	dd.baselineStats = stats
	dd.mu.Unlock()
	return nil
}

// UpdateCurrent replaces the current distributions with the columns of X
func (dd *DriftDetector) UpdateCurrent(X [][]float64) error {
	stats, err := dd.distributions(X)
	if err != nil {
		return fmt.Errorf("current: %w", err)
	}
	dd.mu.Lock()
	dd.currentStats = stats
	dd.mu.Unlock()
	return nil
}

func (dd *DriftDetector) distributions(X [][]float64) (map[string]*FeatureDistribution, error) {
	stats := make(map[string]*FeatureDistribution, len(dd.featureNames))
	for j, name := range dd.featureNames {
		column := make([]float64, len(X))
		for i, row := range X {
			if len(row) != len(dd.featureNames) {
				return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrFeatureMismatch, i, len(row), len(dd.featureNames))
			}
			column[i] = row[j]
		}
		stats[name] = newDistribution(column)
	}
	return stats, nil
}

func newDistribution(samples []float64) *FeatureDistribution {
	sort.Float64s(samples)
	dist := &FeatureDistribution{
		Samples:     samples,
		SampleCount: len(samples),
		Percentiles: make([]float64, 3),
	}
	if len(samples) == 0 {
		return dist
	}

	dist.Min = samples[0]
	dist.Max = samples[len(samples)-1]

	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	dist.Mean = sum / float64(len(samples))

	variance := 0.0
	for _, v := range samples {
		d := v - dist.Mean
		variance += d * d
	}
	dist.StandardDev = math.Sqrt(variance / float64(len(samples)))

	for i, q := range []float64{0.25, 0.5, 0.75} {
		dist.Percentiles[i] = samples[int(q*float64(len(samples)-1))]
	}
	return dist
}

// DetectDrift runs every configured method on every feature with enough samples
func (dd *DriftDetector) DetectDrift() []DriftAlert {
	dd.mu.RLock()
	defer dd.mu.RUnlock()

	var alerts []DriftAlert

	for _, featureName := range dd.featureNames {
		baseline := dd.baselineStats[featureName]
		current := dd.currentStats[featureName]

		// Skip if not enough samples
		if baseline == nil || current == nil || current.SampleCount < dd.minSamples || baseline.SampleCount < dd.minSamples {
			continue
		}

		for _, method := range dd.detectionMethods {
			alert := dd.runDetectionMethod(featureName, baseline, current, method)
			if alert != nil {
				alerts = append(alerts, *alert)
			}
		}
	}

	if len(alerts) > 0 {
		log.Warn().Int("alerts", len(alerts)).Msg("Feature distribution shift between train and test")
	}

	return alerts
}

// runDetectionMethod runs a specific drift detection method
func (dd *DriftDetector) runDetectionMethod(featureName string, baseline, current *FeatureDistribution, method DriftDetectionMethod) *DriftAlert {
	var driftScore float64
	var description string

	switch method {
	case KolmogorovSmirnovTest:
		driftScore = kolmogorovSmirnov(baseline.Samples, current.Samples)
		description = "Distribution shape change detected using Kolmogorov-Smirnov test"

	case PopulationStabilityIndex:
		driftScore = populationStabilityIndex(baseline, current)
		description = "Population distribution shift detected using PSI"

	case StatisticalMoments:
		driftScore = statisticalMoments(baseline, current)
		description = "Statistical properties (mean, std dev) have changed significantly"

	default:
		return nil
	}

	threshold := dd.alertThreshold
	if featureThreshold, exists := dd.driftThresholds[featureName]; exists {
		threshold = featureThreshold
	}

	if driftScore <= threshold {
		return nil
	}

	severity := "medium"
	if driftScore > threshold*2 {
		severity = "high"
	}
	if driftScore > threshold*3 {
		severity = "critical"
	}

	return &DriftAlert{
		Timestamp:      time.Now(),
		FeatureName:    featureName,
		Method:         method,
		DriftScore:     driftScore,
		Threshold:      threshold,
		Severity:       severity,
		Description:    description,
		Recommendation: getRecommendation(severity, featureName),
	}
}

// kolmogorovSmirnov returns the two-sample KS statistic of two sorted samples
func kolmogorovSmirnov(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	na, nb := float64(len(a)), float64(len(b))
	maxDiff := 0.0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		v := math.Min(a[i], b[j])
		for i < len(a) && a[i] == v {
			i++
		}
		for j < len(b) && b[j] == v {
			j++
		}
		diff := math.Abs(float64(i)/na - float64(j)/nb)
		if diff > maxDiff {
			maxDiff = diff
		}
	}
	return maxDiff
}

// populationStabilityIndex bins both samples over their joint range
func populationStabilityIndex(baseline, current *FeatureDistribution) float64 {
	const numBins = 10
	minVal := math.Min(baseline.Min, current.Min)
	maxVal := math.Max(baseline.Max, current.Max)
	if maxVal == minVal || baseline.SampleCount == 0 || current.SampleCount == 0 {
		return 0
	}

	binWidth := (maxVal - minVal) / numBins
	bin := func(v float64) int {
		b := int((v - minVal) / binWidth)
		if b >= numBins {
			b = numBins - 1
		}
		if b < 0 {
			b = 0
		}
		return b
	}

	var baselineBins, currentBins [numBins]int
	for _, v := range baseline.Samples {
		baselineBins[bin(v)]++
	}
	for _, v := range current.Samples {
		currentBins[bin(v)]++
	}

	// empty bins are floored so that one-sided mass still counts
	const floor = 1e-4
	psi := 0.0
	for i := 0; i < numBins; i++ {
		bp := math.Max(float64(baselineBins[i])/float64(baseline.SampleCount), floor)
		cp := math.Max(float64(currentBins[i])/float64(current.SampleCount), floor)
		psi += (cp - bp) * math.Log(cp/bp)
	}
	return psi
}

// statisticalMoments compares mean and standard deviation
func statisticalMoments(baseline, current *FeatureDistribution) float64 {
	meanDiff := math.Abs(baseline.Mean - current.Mean)
	meanNormalized := meanDiff / (1 + math.Abs(baseline.Mean))

	stdDiff := math.Abs(baseline.StandardDev - current.StandardDev)
	stdNormalized := stdDiff / (1 + baseline.StandardDev)

	return (meanNormalized + stdNormalized) / 2
}

func getRecommendation(severity, featureName string) string {
	switch severity {
	case "critical":
		return fmt.Sprintf("CRITICAL: Feature '%s' differs sharply between train and test. Test accuracy is unlikely to transfer; consider a different split date or retraining on recent data.", featureName)
	case "high":
		return fmt.Sprintf("HIGH: Feature '%s' shifted significantly between train and test. Treat the test score with caution.", featureName)
	default:
		return fmt.Sprintf("MEDIUM: Feature '%s' shows moderate shift between train and test. Monitor on the next retrain.", featureName)
	}
}

// GetDriftStatus returns the KS statistic per feature
func (dd *DriftDetector) GetDriftStatus() map[string]float64 {
	dd.mu.RLock()
	defer dd.mu.RUnlock()

	status := make(map[string]float64, len(dd.featureNames))
	for _, name := range dd.featureNames {
		baseline, current := dd.baselineStats[name], dd.currentStats[name]
		if baseline == nil || current == nil {
			continue
		}
		status[name] = kolmogorovSmirnov(baseline.Samples, current.Samples)
	}
	return status
}

// Baseline returns a copy of the baseline distribution for a feature, or nil
func (dd *DriftDetector) Baseline(featureName string) *FeatureDistribution {
	dd.mu.RLock()
	defer dd.mu.RUnlock()
	dist, ok := dd.baselineStats[featureName]
	if !ok {
		return nil
	}
	cp := *dist
	return &cp
}
