package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RandomForest is a bagged ensemble of CART trees. Regression forests average
// tree outputs; classification forests average leaf class distributions.
type RandomForest struct {
	NEstimators    int
	MaxDepth       int // 0 means unlimited
	MaxFeatures    int // 0 picks all features for regression and √p for classification
	Classification bool
	NumClasses     int
	Seed           int64
	NJobs          int // concurrent tree builders, <= 0 means GOMAXPROCS

	trees       []*DecisionTree
	importances []float64
}

// NewRandomForest creates a 100-tree forest
func NewRandomForest(classification bool, numClasses int, seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:    100,
		Classification: classification,
		NumClasses:     numClasses,
		Seed:           seed,
		NJobs:          -1,
	}
}

// Fit trains the trees concurrently. Each tree draws its bootstrap sample
// and feature subsets from its own seed, so results do not depend on
// scheduling.
func (f *RandomForest) Fit(ctx context.Context, X *mat.Dense, y []float64) error {
	r, p := X.Dims()
	if r == 0 {
		return fmt.Errorf("no training data provided")
	}
	if r != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", r, len(y))
	}
	if f.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", f.NEstimators)
	}

	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = p
		if f.Classification {
			maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
		}
	}

	seeds := make([]int64, f.NEstimators)
	src := rand.New(rand.NewSource(f.Seed))
	for i := range seeds {
		seeds[i] = src.Int63()
	}

	cols := columns(X)
	f.trees = make([]*DecisionTree, f.NEstimators)

	g, gctx := errgroup.WithContext(ctx)
	workers := f.NJobs
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	for i := range f.trees {
		i := i
		g.Go(func() error {
			tree := &DecisionTree{
				MaxDepth:        f.MaxDepth,
				MinSamplesSplit: 2,
				MaxFeatures:     maxFeatures,
				Classification:  f.Classification,
				NumClasses:      f.NumClasses,
				Seed:            seeds[i],
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			if err := tree.fit(gctx, cols, y, bootstrap(r, rng), rng); err != nil {
				return err
			}
			f.trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.importances = make([]float64, p)
	for _, tree := range f.trees {
		floats.Add(f.importances, tree.importances)
	}
	if total := floats.Sum(f.importances); total > 0 {
		floats.Scale(1/total, f.importances)
	}
	return nil
}

// Predict averages the trees
func (f *RandomForest) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		row := X.RawRowView(i)
		if !f.Classification {
			sum := 0.0
			for _, tree := range f.trees {
				sum += tree.leaf(row).Value
			}
			out[i] = sum / float64(len(f.trees))
			continue
		}
		proba := make([]float64, f.NumClasses)
		for _, tree := range f.trees {
			floats.Add(proba, tree.leaf(row).Proba)
		}
		out[i] = float64(floats.MaxIdx(proba))
	}
	return out
}

// FeatureImportances returns the mean impurity decrease per feature
func (f *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), f.importances...)
}
