package training

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// BaggingRegressor averages linear regressions fitted on bootstrap samples
type BaggingRegressor struct {
	NEstimators int
	Seed        int64

	estimators []*LinearRegression
}

// NewBaggingRegressor creates a 10-estimator ensemble
func NewBaggingRegressor(seed int64) *BaggingRegressor {
	return &BaggingRegressor{NEstimators: 10, Seed: seed}
}

// Fit trains each estimator on its own bootstrap sample
func (b *BaggingRegressor) Fit(ctx context.Context, X *mat.Dense, y []float64) error {
	r, _ := X.Dims()
	if r == 0 {
		return fmt.Errorf("no training data provided")
	}
	if r != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", r, len(y))
	}
	if b.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", b.NEstimators)
	}

	rng := rand.New(rand.NewSource(b.Seed))
	b.estimators = make([]*LinearRegression, b.NEstimators)
	for i := range b.estimators {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample := bootstrap(r, rng)
		est := NewLinearRegression()
		if err := est.Fit(ctx, SelectRows(X, sample), SelectValues(y, sample)); err != nil {
			return fmt.Errorf("estimator %d: %w", i, err)
		}
		b.estimators[i] = est
	}
	return nil
}

// Predict returns the mean prediction of the estimators
func (b *BaggingRegressor) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for _, est := range b.estimators {
		for i, v := range est.Predict(X) {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(b.estimators))
	}
	return out
}
