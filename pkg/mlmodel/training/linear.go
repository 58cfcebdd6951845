package training

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression is an ordinary least squares model with an intercept
type LinearRegression struct {
	Coef      []float64
	Intercept float64
}

// NewLinearRegression creates an unfitted OLS model
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit solves the least squares problem on centred data through an SVD, so
// rank-deficient inputs yield the minimum-norm solution.
func (m *LinearRegression) Fit(_ context.Context, X *mat.Dense, y []float64) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("no training data provided")
	}
	if r != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", r, len(y))
	}

	means := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	centred := mat.NewDense(r, c, nil)
	centred.Apply(func(i, j int, v float64) float64 {
		return v - means[j]
	}, X)
	yc := make([]float64, r)
	for i := range y {
		yc[i] = y[i] - yMean
	}

	var svd mat.SVD
	if ok := svd.Factorize(centred, mat.SVDThin); !ok {
		return fmt.Errorf("least squares factorization failed")
	}
	rcond := math.Max(float64(r), float64(c)) * epsilon
	rank := svd.Rank(rcond)

	coef := mat.NewVecDense(c, nil)
	if rank > 0 {
		svd.SolveVecTo(coef, mat.NewVecDense(r, yc), rank)
	}

	m.Coef = make([]float64, c)
	for j := range m.Coef {
		m.Coef[j] = coef.AtVec(j)
	}
	m.Intercept = yMean - floats.Dot(m.Coef, means)
	return nil
}

// Predict returns X·coef + intercept
func (m *LinearRegression) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = floats.Dot(X.RawRowView(i), m.Coef) + m.Intercept
	}
	return out
}

// epsilon is the float64 machine epsilon
const epsilon = 2.220446049250313e-16
