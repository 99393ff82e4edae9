package ml

import (
	"math/rand"
)

// separableData returns n rows of p features where the label depends only on
// feature 0 crossing zero; the other features are noise.
func separableData(n, p int, seed int64) ([][]float64, []bool) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]bool, n)
	for i := range X {
		row := make([]float64, p)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		X[i] = row
		y[i] = row[0] > 0
	}
	return X, y
}

func smallParams() Hyperparameters {
	h := DefaultHyperparameters()
	h.Trees = 15
	h.Folds = 3
	h.Workers = 2
	return h
}

func leaf(neg, pos int) *Node {
	return &Node{Kind: NodeLeaf, Counts: [2]int{neg, pos}}
}

func stump(feature int, threshold float64, left, right *Node) *Node {
	return &Node{Kind: NodeSplit, Feature: feature, Threshold: threshold, Left: left, Right: right, Decrease: 1}
}
