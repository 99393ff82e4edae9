package ml

import (
	"fmt"
)

// Forest is an ordered collection of independently grown decision trees.
type Forest struct {
	NumFeatures int     `json:"num_features"`
	Trees       []*Node `json:"trees"`
}

// Votes returns the number of trees voting positive for x and the total tree count.
func (f *Forest) Votes(x []float64) (positive, total int) {
	for _, tree := range f.Trees {
		if tree.predict(x) {
			positive++
		}
	}
	return positive, len(f.Trees)
}

// VoteFraction returns the share of trees voting positive for x.
func (f *Forest) VoteFraction(x []float64) float64 {
	positive, total := f.Votes(x)
	if total == 0 {
		return 0
	}
	return float64(positive) / float64(total)
}

// Predict returns the majority vote for x. An exact tie is positive.
func (f *Forest) Predict(x []float64) bool {
	positive, total := f.Votes(x)
	return 2*positive >= total
}

// PredictBatch returns the majority vote for every row of X.
func (f *Forest) PredictBatch(X [][]float64) []bool {
	out := make([]bool, len(X))
	for i, x := range X {
		out[i] = f.Predict(x)
	}
	return out
}

// FeatureImportances returns the impurity-based importance of each feature:
// per tree, split decreases are summed by feature and normalized to 1; the
// per-tree vectors are averaged and renormalized. Trees without splits
// contribute nothing, and a forest with no splits at all yields zeros.
func (f *Forest) FeatureImportances() []float64 {
	total := make([]float64, f.NumFeatures)
	for _, tree := range f.Trees {
		imp := make([]float64, f.NumFeatures)
		tree.accumulateDecrease(imp)

		sum := 0.0
		for _, v := range imp {
			sum += v
		}
		if sum <= 0 {
			continue
		}
		for j, v := range imp {
			total[j] += v / sum
		}
	}

	sum := 0.0
	for _, v := range total {
		sum += v
	}
	if sum > 0 {
		for j := range total {
			total[j] /= sum
		}
	}
	return total
}

func (f *Forest) validate() error {
	if f == nil {
		return ErrNotFitted
	}
	if f.NumFeatures <= 0 {
		return fmt.Errorf("forest has %d features", f.NumFeatures)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i, tree := range f.Trees {
		if err := tree.validate(f.NumFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
