package ml

import (
	"errors"
	"math"
	"sort"
)

// TreeConfig bounds the growth of a DecisionTree
type TreeConfig struct {
	MaxDepth       int
	MinSamplesLeaf int
}

// DefaultTreeConfig returns conservative limits suited to small outcome logs
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{MaxDepth: 6, MinSamplesLeaf: 5}
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// DecisionTree is a CART regression tree split on variance reduction
type DecisionTree struct {
	cfg  TreeConfig
	root *treeNode
	dim  int
}

// NewDecisionTree creates an unfitted tree
func NewDecisionTree(cfg TreeConfig) *DecisionTree {
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = DefaultTreeConfig().MaxDepth
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	return &DecisionTree{cfg: cfg}
}

// Fit grows the tree over X and y
func (t *DecisionTree) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errors.New("cannot fit tree on empty dataset")
	}
	if len(X) != len(y) {
		return errors.New("feature/target length mismatch")
	}
	t.dim = len(X[0])
	idx := make([]int, len(X))
	for i := range X {
		if len(X[i]) != t.dim {
			return errors.New("inconsistent feature dimensions")
		}
		idx[i] = i
	}
	t.root = t.grow(X, y, idx, 0)
	return nil
}

// Predict returns the leaf mean for x, NaN if unfitted or misshapen
func (t *DecisionTree) Predict(x []float64) float64 {
	if t.root == nil || len(x) != t.dim {
		return math.NaN()
	}
	n := t.root
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// Depth returns the depth of the fitted tree (a single leaf has depth 0)
func (t *DecisionTree) Depth() int {
	return depth(t.root)
}

// Leaves returns the number of leaves
func (t *DecisionTree) Leaves() int {
	return leaves(t.root)
}

func (t *DecisionTree) grow(X [][]float64, y []float64, idx []int, d int) *treeNode {
	mean, sse := meanSSE(y, idx)
	if d >= t.cfg.MaxDepth || len(idx) < 2*t.cfg.MinSamplesLeaf || sse < 1e-12 {
		return &treeNode{leaf: true, value: mean}
	}

	bestFeature, bestThreshold, bestSSE := -1, 0.0, sse
	sorted := make([]int, len(idx))
	for f := 0; f < t.dim; f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		var total, totalSq float64
		for _, i := range sorted {
			total += y[i]
			totalSq += y[i] * y[i]
		}

		var leftSum, leftSq float64
		for k := 0; k < len(sorted)-1; k++ {
			v := y[sorted[k]]
			leftSum += v
			leftSq += v * v

			nl := k + 1
			nr := len(sorted) - nl
			if nl < t.cfg.MinSamplesLeaf || nr < t.cfg.MinSamplesLeaf {
				continue
			}
			cur, nxt := X[sorted[k]][f], X[sorted[k+1]][f]
			if cur == nxt {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			split := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if split < bestSSE-1e-12 {
				bestFeature = f
				bestThreshold = (cur + nxt) / 2
				bestSSE = split
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{leaf: true, value: mean}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      t.grow(X, y, left, d+1),
		right:     t.grow(X, y, right, d+1),
	}
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

func depth(n *treeNode) int {
	if n == nil || n.leaf {
		return 0
	}
	l, r := depth(n.left), depth(n.right)
	if l > r {
		return l + 1
	}
	return r + 1
}

func leaves(n *treeNode) int {
	if n == nil {
		return 0
	}
	if n.leaf {
		return 1
	}
	return leaves(n.left) + leaves(n.right)
}
