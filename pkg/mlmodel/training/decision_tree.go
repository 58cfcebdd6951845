package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minRelativeGain is the smallest impurity decrease, relative to the parent
// node's weighted impurity, that justifies a split
const minRelativeGain = 1e-12

// DecisionTree is a CART tree. Regression trees split on squared error and
// predict leaf means; classification trees split on Gini impurity over class
// codes 0..NumClasses-1 and predict the majority class.
type DecisionTree struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MaxFeatures     int // candidate features per split, 0 means all
	Classification  bool
	NumClasses      int
	Seed            int64

	root        *DecisionTreeModel
	importances []float64
}

// DecisionTreeModel is one node of a fitted tree
type DecisionTreeModel struct {
	Feature   int
	Threshold float64
	Left      *DecisionTreeModel
	Right     *DecisionTreeModel
	Value     float64   // Leaf prediction value
	Proba     []float64 // Leaf class distribution (classification only)
	IsLeaf    bool
}

// NewDecisionTree creates an unbounded tree with a minimum split size of two
func NewDecisionTree(classification bool, numClasses int, seed int64) *DecisionTree {
	return &DecisionTree{
		MinSamplesSplit: 2,
		Classification:  classification,
		NumClasses:      numClasses,
		Seed:            seed,
	}
}

// Fit grows the tree on all rows of X
func (t *DecisionTree) Fit(ctx context.Context, X *mat.Dense, y []float64) error {
	r, _ := X.Dims()
	if r == 0 {
		return fmt.Errorf("no training data provided")
	}
	if r != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", r, len(y))
	}
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	return t.fit(ctx, columns(X), y, idx, rand.New(rand.NewSource(t.Seed)))
}

// fit grows the tree on the given sample indices; indices may repeat
func (t *DecisionTree) fit(ctx context.Context, cols [][]float64, y []float64, idx []int, rng *rand.Rand) error {
	if t.Classification && t.NumClasses < 1 {
		return fmt.Errorf("classification tree needs class count")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.MinSamplesSplit < 2 {
		t.MinSamplesSplit = 2
	}

	t.importances = make([]float64, len(cols))
	b := &treeBuilder{tree: t, cols: cols, y: y, rng: rng}
	t.root = b.build(idx, 0)

	if total := floats.Sum(t.importances); total > 0 {
		floats.Scale(1/total, t.importances)
	}
	return nil
}

// Predict returns the leaf value reached by each row of X
func (t *DecisionTree) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = t.leaf(X.RawRowView(i)).Value
	}
	return out
}

// FeatureImportances returns the normalized impurity decrease per feature
func (t *DecisionTree) FeatureImportances() []float64 {
	return append([]float64(nil), t.importances...)
}

// leaf walks the tree for one row
func (t *DecisionTree) leaf(features []float64) *DecisionTreeModel {
	node := t.root
	for !node.IsLeaf {
		if features[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

type treeBuilder struct {
	tree *DecisionTree
	cols [][]float64
	y    []float64
	rng  *rand.Rand
}

// build recursively builds a decision tree
func (b *treeBuilder) build(idx []int, depth int) *DecisionTreeModel {
	t := b.tree
	labels := SelectValues(b.y, idx)

	// Stop conditions
	if (t.MaxDepth > 0 && depth >= t.MaxDepth) || len(idx) < t.MinSamplesSplit || isHomogeneous(labels) {
		return b.newLeaf(labels)
	}

	feature, threshold, gain, ok := b.findBestSplit(idx, labels)
	if !ok {
		return b.newLeaf(labels)
	}

	var left, right []int
	for _, i := range idx {
		if b.cols[feature][i] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return b.newLeaf(labels)
	}
	t.importances[feature] += gain

	return &DecisionTreeModel{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

func (b *treeBuilder) newLeaf(labels []float64) *DecisionTreeModel {
	if len(labels) == 0 {
		return &DecisionTreeModel{IsLeaf: true, Proba: make([]float64, b.tree.NumClasses)}
	}
	if !b.tree.Classification {
		return &DecisionTreeModel{IsLeaf: true, Value: mean(labels)}
	}
	proba := make([]float64, b.tree.NumClasses)
	for _, l := range labels {
		proba[int(l)]++
	}
	floats.Scale(1/float64(len(labels)), proba)
	return &DecisionTreeModel{IsLeaf: true, Value: float64(floats.MaxIdx(proba)), Proba: proba}
}

// findBestSplit scans every midpoint between distinct sorted values of each
// candidate feature and returns the split with the largest weighted impurity
// decrease. ok is false when no split beats minRelativeGain.
func (b *treeBuilder) findBestSplit(idx []int, labels []float64) (feature int, threshold, gain float64, ok bool) {
	t := b.tree
	n := len(idx)
	candidates := b.candidateFeatures()

	parent := b.impurityOf(labels) * float64(n)
	minGain := parent * minRelativeGain
	bestFeature, bestThreshold, bestGain := 0, 0.0, 0.0

	order := make([]int, n)
	for _, candidate := range candidates {
		col := b.cols[candidate]
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, c int) bool {
			return col[idx[order[a]]] < col[idx[order[c]]]
		})

		acc := newSplitAccumulator(t.Classification, t.NumClasses, labels)
		for pos := 0; pos < n-1; pos++ {
			acc.move(labels[order[pos]])
			lo, hi := col[idx[order[pos]]], col[idx[order[pos+1]]]
			if lo == hi {
				continue
			}
			g := parent - acc.weightedImpurity()
			if g > minGain && g > bestGain {
				bestFeature = candidate
				bestThreshold = midpoint(lo, hi)
				bestGain = g
				ok = true
			}
		}
	}

	return bestFeature, bestThreshold, bestGain, ok
}

// midpoint returns a threshold t with lo <= t < hi. Between adjacent floats
// the rounded midpoint can land on hi, in which case lo is used.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}

// candidateFeatures draws MaxFeatures distinct features, or all of them
func (b *treeBuilder) candidateFeatures() []int {
	p := len(b.cols)
	k := b.tree.MaxFeatures
	if k <= 0 || k >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(p)[:k]
}

func (b *treeBuilder) impurityOf(labels []float64) float64 {
	if b.tree.Classification {
		return giniImpurity(labels)
	}
	return variance(labels)
}

// splitAccumulator tracks left/right statistics while a threshold sweeps
// through sorted samples
type splitAccumulator struct {
	classification bool

	leftN, rightN     float64
	leftSum, rightSum float64
	leftSq, rightSq   float64
	leftCnt, rightCnt []float64
}

func newSplitAccumulator(classification bool, numClasses int, labels []float64) *splitAccumulator {
	a := &splitAccumulator{classification: classification, rightN: float64(len(labels))}
	if classification {
		a.leftCnt = make([]float64, numClasses)
		a.rightCnt = make([]float64, numClasses)
		for _, l := range labels {
			a.rightCnt[int(l)]++
		}
		return a
	}
	for _, l := range labels {
		a.rightSum += l
		a.rightSq += l * l
	}
	return a
}

// move shifts one sample from the right side to the left side
func (a *splitAccumulator) move(label float64) {
	a.leftN++
	a.rightN--
	if a.classification {
		a.leftCnt[int(label)]++
		a.rightCnt[int(label)]--
		return
	}
	a.leftSum += label
	a.rightSum -= label
	a.leftSq += label * label
	a.rightSq -= label * label
}

// weightedImpurity returns nL·impurity(L) + nR·impurity(R)
func (a *splitAccumulator) weightedImpurity() float64 {
	if a.classification {
		return a.leftN*giniFromCounts(a.leftCnt, a.leftN) + a.rightN*giniFromCounts(a.rightCnt, a.rightN)
	}
	left := a.leftSq - a.leftSum*a.leftSum/a.leftN
	right := a.rightSq - a.rightSum*a.rightSum/a.rightN
	return math.Max(left, 0) + math.Max(right, 0)
}

// Helper functions

func isHomogeneous(labels []float64) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, v := range labels {
		if v != first {
			return false
		}
	}
	return true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values) / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values))
}

func giniImpurity(labels []float64) float64 {
	if len(labels) == 0 {
		return 0
	}

	// Count class frequencies
	counts := make(map[float64]int)
	for _, label := range labels {
		counts[label]++
	}

	impurity := 1.0
	total := float64(len(labels))
	for _, count := range counts {
		prob := float64(count) / total
		impurity -= prob * prob
	}

	return impurity
}

func giniFromCounts(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := c / n
		impurity -= p * p
	}
	return impurity
}
