package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// NodeKind tags a tree node as a leaf or an internal split
type NodeKind uint8

const (
	NodeLeaf NodeKind = iota
	NodeSplit
)

func (k NodeKind) String() string {
	switch k {
	case NodeLeaf:
		return "leaf"
	case NodeSplit:
		return "split"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind as "leaf" or "split".
func (k NodeKind) MarshalText() ([]byte, error) {
	if k != NodeLeaf && k != NodeSplit {
		return nil, fmt.Errorf("unknown node kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *NodeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "leaf":
		*k = NodeLeaf
	case "split":
		*k = NodeSplit
	default:
		return fmt.Errorf("unknown node kind %q", text)
	}
	return nil
}

// Node is one node of a decision tree.
//
// A leaf carries the class counts of the bootstrap rows that reached it.
// A split sends x to Left when x[Feature] <= Threshold and to Right otherwise;
// Decrease is the node-weighted Gini reduction the split achieved.
type Node struct {
	Kind      NodeKind `json:"kind"`
	Counts    [2]int   `json:"counts"` // [negative, positive]
	Feature   int      `json:"feature,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Decrease  float64  `json:"decrease,omitempty"`
	Left      *Node    `json:"left,omitempty"`
	Right     *Node    `json:"right,omitempty"`
}

// Class is the majority class of a leaf; ties go to the positive class.
func (n *Node) Class() bool {
	return n.Counts[1] >= n.Counts[0]
}

// predict walks the tree for x
func (n *Node) predict(x []float64) bool {
	node := n
	for node.Kind == NodeSplit {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Class()
}

// accumulateDecrease adds each split's decrease to imp[feature]
func (n *Node) accumulateDecrease(imp []float64) {
	if n.Kind != NodeSplit {
		return
	}
	imp[n.Feature] += n.Decrease
	n.Left.accumulateDecrease(imp)
	n.Right.accumulateDecrease(imp)
}

// Depth returns the depth of the deepest leaf (a lone leaf has depth 0).
func (n *Node) Depth() int {
	if n.Kind != NodeSplit {
		return 0
	}
	l, r := n.Left.Depth(), n.Right.Depth()
	if l > r {
		return l + 1
	}
	return r + 1
}

// Leaves returns the number of leaves under n.
func (n *Node) Leaves() int {
	if n.Kind != NodeSplit {
		return 1
	}
	return n.Left.Leaves() + n.Right.Leaves()
}

func (n *Node) validate(numFeatures int) error {
	if n == nil {
		return fmt.Errorf("nil node")
	}
	switch n.Kind {
	case NodeLeaf:
		if n.Left != nil || n.Right != nil {
			return fmt.Errorf("leaf has children")
		}
		return nil
	case NodeSplit:
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("split on feature %d, model has %d features", n.Feature, numFeatures)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("split threshold is NaN")
		}
		if n.Left == nil || n.Right == nil {
			return fmt.Errorf("split is missing a child")
		}
		if err := n.Left.validate(numFeatures); err != nil {
			return err
		}
		return n.Right.validate(numFeatures)
	default:
		return fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

// treeBuilder grows one tree on a bootstrap sample. It owns its rng and
// shares X and y read-only with the other builders.
type treeBuilder struct {
	X               [][]float64
	y               []bool
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
	rng             *rand.Rand
}

// split is a candidate partition of a node's rows
type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted child impurity, n_left*gini_left + n_right*gini_right
}

func classCounts(y []bool, idx []int) [2]int {
	var c [2]int
	for _, i := range idx {
		if y[i] {
			c[1]++
		} else {
			c[0]++
		}
	}
	return c
}

// weightedGini returns n*gini for the given class counts
func weightedGini(c [2]int) float64 {
	n := float64(c[0] + c[1])
	if n == 0 {
		return 0
	}
	a, b := float64(c[0]), float64(c[1])
	return n - (a*a+b*b)/n
}

func (b *treeBuilder) grow(idx []int, depth int) *Node {
	counts := classCounts(b.y, idx)
	node := &Node{Kind: NodeLeaf, Counts: counts}

	if depth >= b.maxDepth || len(idx) < b.minSamplesSplit || counts[0] == 0 || counts[1] == 0 {
		return node
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return node
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Kind = NodeSplit
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Decrease = math.Max(0, weightedGini(counts)-best.impurity)
	node.Left = b.grow(left, depth+1)
	node.Right = b.grow(right, depth+1)
	return node
}

// bestSplit inspects features in random order. It stops after maxFeatures
// features once a valid split has been seen, and otherwise keeps going
// until one is found or every feature is exhausted.
func (b *treeBuilder) bestSplit(idx []int) (split, bool) {
	numFeatures := len(b.X[idx[0]])
	order := b.rng.Perm(numFeatures)

	best := split{impurity: math.Inf(1)}
	found := false
	sorted := make([]int, len(idx))

	for visited, f := range order {
		if visited >= b.maxFeatures && found {
			break
		}

		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})

		total := classCounts(b.y, sorted)
		var left [2]int
		for i := 0; i < len(sorted)-1; i++ {
			if b.y[sorted[i]] {
				left[1]++
			} else {
				left[0]++
			}

			lo, hi := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if lo == hi {
				continue
			}

			right := [2]int{total[0] - left[0], total[1] - left[1]}
			impurity := weightedGini(left) + weightedGini(right)
			if impurity < best.impurity {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, impurity: impurity}
				found = true
			}
		}
	}

	return best, found
}
