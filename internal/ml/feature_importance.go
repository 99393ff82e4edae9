package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"stock-predictor/internal/common"
)

// FeatureImportance holds per-feature importance of a fitted forest
type FeatureImportance struct {
	mu             sync.RWMutex
	featureNames   []string
	importanceData map[string]*FeatureStats
	baselineScore  float64
}

// FeatureStats contains statistics for a single feature
type FeatureStats struct {
	Name              string    `json:"name"`
	ImportanceScore   float64   `json:"importance_score"`
	SplitCount        int       `json:"split_count"`
	AverageValue      float64   `json:"average_value"`
	StandardDeviation float64   `json:"standard_deviation"`
	MinValue          float64   `json:"min_value"`
	MaxValue          float64   `json:"max_value"`
	PermutationScore  float64   `json:"permutation_score"`
	LastUpdated       time.Time `json:"last_updated"`
}

// RankedFeature is a feature name with its impurity importance
type RankedFeature struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// NewFeatureImportance computes impurity importances of forest for featureNames.
func NewFeatureImportance(featureNames []string, forest *Forest) (*FeatureImportance, error) {
	if forest == nil {
		return nil, ErrNotFitted
	}
	if len(featureNames) != forest.NumFeatures {
		return nil, fmt.Errorf("%w: %d names for a %d-feature forest", ErrFeatureMismatch, len(featureNames), forest.NumFeatures)
	}

	fi := &FeatureImportance{
		featureNames:   append([]string(nil), featureNames...),
		importanceData: make(map[string]*FeatureStats, len(featureNames)),
	}

	scores := forest.FeatureImportances()
	splits := make([]int, forest.NumFeatures)
	for _, tree := range forest.Trees {
		countSplits(tree, splits)
	}

	now := time.Now()
	for i, name := range featureNames {
		fi.importanceData[name] = &FeatureStats{
			Name:            name,
			ImportanceScore: scores[i],
			SplitCount:      splits[i],
			LastUpdated:     now,
		}
	}

	return fi, nil
}

func countSplits(n *Node, splits []int) {
	if n.Kind != NodeSplit {
		return
	}
	splits[n.Feature]++
	countSplits(n.Left, splits)
	countSplits(n.Right, splits)
}

// ObserveFeatures records value statistics of the raw training features.
func (fi *FeatureImportance) ObserveFeatures(X [][]float64) {
	if len(X) == 0 {
		return
	}

	fi.mu.Lock()
	defer fi.mu.Unlock()

	n := float64(len(X))
	for j, name := range fi.featureNames {
		stats := fi.importanceData[name]
		stats.MinValue, stats.MaxValue = X[0][j], X[0][j]
		sum := 0.0
		for _, row := range X {
			v := row[j]
			sum += v
			stats.MinValue = math.Min(stats.MinValue, v)
			stats.MaxValue = math.Max(stats.MaxValue, v)
		}
		mean := sum / n
		variance := 0.0
		for _, row := range X {
			d := row[j] - mean
			variance += d * d
		}
		stats.AverageValue = mean
		stats.StandardDeviation = math.Sqrt(variance / n)
		stats.LastUpdated = time.Now()
	}
}

// CalculatePermutationImportance measures the accuracy drop on (X, y) when
// each feature column is shuffled. X must already be standardized.
func (fi *FeatureImportance) CalculatePermutationImportance(model Classifier, X [][]float64, y []bool, seed int64) error {
	if len(X) == 0 {
		return nil
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrFeatureMismatch, len(X), len(y))
	}

	baseline := accuracy(model, X, y)

	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.baselineScore = baseline

	rng := rand.New(rand.NewSource(seed))
	permuted := make([][]float64, len(X))
	for i := range X {
		permuted[i] = make([]float64, len(X[i]))
	}

	for featureIdx, featureName := range fi.featureNames {
		for i := range X {
			copy(permuted[i], X[i])
		}
		perm := rng.Perm(len(X))
		for i, j := range perm {
			permuted[i][featureIdx] = X[j][featureIdx]
		}

		// Importance is the drop in accuracy
		fi.importanceData[featureName].PermutationScore = baseline - accuracy(model, permuted, y)
	}

	return nil
}

func accuracy(model Classifier, X [][]float64, y []bool) float64 {
	if len(X) == 0 {
		return 0
	}
	correct := 0
	for i, x := range X {
		if model.Predict(x) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

// BaselineScore returns the unpermuted accuracy from the last permutation run
func (fi *FeatureImportance) BaselineScore() float64 {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.baselineScore
}

// GetFeatureImportance returns a copy of the per-feature statistics
func (fi *FeatureImportance) GetFeatureImportance() map[string]*FeatureStats {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	result := make(map[string]*FeatureStats, len(fi.importanceData))
	for name, stats := range fi.importanceData {
		statsCopy := *stats
		result[name] = &statsCopy
	}
	return result
}

// Ranked returns all features sorted by descending importance; ties keep feature order.
func (fi *FeatureImportance) Ranked() []RankedFeature {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	ranked := make([]RankedFeature, len(fi.featureNames))
	for i, name := range fi.featureNames {
		ranked[i] = RankedFeature{Name: name, Importance: fi.importanceData[name].ImportanceScore}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Importance > ranked[j].Importance
	})
	return ranked
}

// Scores returns importances in feature order
func (fi *FeatureImportance) Scores() []float64 {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	scores := make([]float64, len(fi.featureNames))
	for i, name := range fi.featureNames {
		scores[i] = fi.importanceData[name].ImportanceScore
	}
	return scores
}

// GetTopFeatures returns the top N most important features
func (fi *FeatureImportance) GetTopFeatures(n int) []string {
	ranked := fi.Ranked()
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = ranked[i].Name
	}
	return result
}

// Save writes the feature statistics to path as JSON
func (fi *FeatureImportance) Save(path string) error {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	stats := make([]*FeatureStats, len(fi.featureNames))
	for i, name := range fi.featureNames {
		stats[i] = fi.importanceData[name]
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return common.WriteFileAtomic(path, data, 0o644)
}
