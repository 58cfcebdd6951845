package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Estimator is a model fitted on a standardized feature matrix
type Estimator interface {
	// Fit trains the model on X (rows x features) and targets y
	Fit(ctx context.Context, X *mat.Dense, y []float64) error

	// Predict returns one prediction per row of X
	Predict(X *mat.Dense) []float64
}

// TrainingData holds the train and test partitions of a dataset
type TrainingData struct {
	TrainFeatures *mat.Dense
	TrainLabels   []float64
	TestFeatures  *mat.Dense
	TestLabels    []float64
	FeatureNames  []string
}

// DefaultTestSize and DefaultSeed fix the train/test partition
const (
	DefaultTestSize = 0.2
	DefaultSeed     = 42
)

// TrainTestSplit returns a seeded random partition of n row indices. The
// test partition holds ceil(testSize*n) rows; both partitions are non-empty.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("at least 2 rows are required to split, got %d", n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// NewTrainingData partitions X and y with TrainTestSplit
func NewTrainingData(X *mat.Dense, y []float64, names []string, testSize float64, seed int64) (*TrainingData, error) {
	r, _ := X.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("feature rows (%d) and targets (%d) differ", r, len(y))
	}

	train, test, err := TrainTestSplit(r, testSize, seed)
	if err != nil {
		return nil, err
	}

	return &TrainingData{
		TrainFeatures: SelectRows(X, train),
		TrainLabels:   SelectValues(y, train),
		TestFeatures:  SelectRows(X, test),
		TestLabels:    SelectValues(y, test),
		FeatureNames:  names,
	}, nil
}

// SelectRows copies the given rows of X into a new matrix
func SelectRows(X *mat.Dense, rows []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

// SelectValues copies the given positions of v
func SelectValues(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

// columns returns X in feature-major layout
func columns(X *mat.Dense) [][]float64 {
	r, c := X.Dims()
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = make([]float64, r)
		mat.Col(cols[j], j, X)
	}
	return cols
}

// bootstrap draws n indices from [0, n) with replacement
func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}
