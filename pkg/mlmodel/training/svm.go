package training

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooLarge is returned for training sets beyond an estimator's row limit
var ErrTooLarge = errors.New("training set too large")

// SVR is an epsilon-insensitive support vector regressor with an RBF kernel.
// The dual is solved by cyclic coordinate descent; the bias is folded into
// the kernel as a constant feature, which removes the equality constraint.
type SVR struct {
	C       float64
	Epsilon float64
	Gamma   float64 // 0 selects 1 / (features · Var(X))
	Tol     float64
	MaxIter int

	// MaxRows bounds the training set size
	MaxRows int
	// CacheRows is the largest training set whose kernel matrix is cached
	CacheRows int
	// KernelBudget caps the kernel evaluations of an uncached fit
	KernelBudget int

	support *mat.Dense
	beta    []float64
	sweeps  int
}

// NewSVR creates an RBF regressor with C=1 and epsilon=0.1
func NewSVR() *SVR {
	return &SVR{
		C:       1.0,
		Epsilon: 0.1,
		Tol:     1e-4,
		MaxIter: 1000,

		MaxRows:      20000,
		CacheRows:    3000,
		KernelBudget: 1e9,
	}
}

// Fit solves min ½βᵀKβ − yᵀβ + ε‖β‖₁ subject to −C ≤ βᵢ ≤ C
func (m *SVR) Fit(ctx context.Context, X *mat.Dense, y []float64) error {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return fmt.Errorf("no training data provided")
	}
	if n != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", n, len(y))
	}
	if m.MaxRows > 0 && n > m.MaxRows {
		return fmt.Errorf("%w: %d rows, support vector regression accepts at most %d", ErrTooLarge, n, m.MaxRows)
	}

	if m.Gamma <= 0 {
		m.Gamma = scaleGamma(X)
	}
	m.support = mat.DenseCopyOf(X)
	m.beta = make([]float64, n)

	kernel := newKernelColumns(m.support, m.Gamma, m.CacheRows)
	maxIter := m.MaxIter
	if kernel.cached == nil && m.KernelBudget > 0 {
		maxIter = min(maxIter, max(m.KernelBudget/(n*n), 1))
	}

	f := make([]float64, n) // f = Kβ
	for m.sweeps = 0; m.sweeps < maxIter; m.sweeps++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		maxDelta := 0.0
		for i := 0; i < n; i++ {
			col := kernel.column(i)
			h := col[i]
			g := f[i] - y[i]
			z := m.beta[i] - g/h
			next := math.Copysign(math.Max(math.Abs(z)-m.Epsilon/h, 0), z)
			next = math.Max(-m.C, math.Min(m.C, next))

			delta := next - m.beta[i]
			if delta == 0 {
				continue
			}
			m.beta[i] = next
			floats.AddScaled(f, delta, col)
			if d := math.Abs(delta); d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta < m.Tol {
			m.sweeps++
			break
		}
	}
	return nil
}

// Predict evaluates Σ βᵢ (k(xᵢ, x) + 1)
func (m *SVR) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	n, _ := m.support.Dims()
	out := make([]float64, r)
	for i := range out {
		row := X.RawRowView(i)
		sum := 0.0
		for j := 0; j < n; j++ {
			if m.beta[j] == 0 {
				continue
			}
			sum += m.beta[j] * (rbf(row, m.support.RawRowView(j), m.Gamma) + 1)
		}
		out[i] = sum
	}
	return out
}

// Sweeps returns the number of coordinate descent passes of the last fit
func (m *SVR) Sweeps() int {
	return m.sweeps
}

// SupportVectors returns the number of training rows with non-zero weight
func (m *SVR) SupportVectors() int {
	n := 0
	for _, b := range m.beta {
		if b != 0 {
			n++
		}
	}
	return n
}

// scaleGamma returns 1 / (features · variance of all entries of X)
func scaleGamma(X *mat.Dense) float64 {
	r, c := X.Dims()
	all := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		all = append(all, X.RawRowView(i)...)
	}
	_, v := stat.PopMeanVariance(all, nil)
	if v == 0 {
		return 1 / float64(c)
	}
	return 1 / (float64(c) * v)
}

func rbf(a, b []float64, gamma float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-gamma * d * d)
}

// kernelColumns serves columns of the bias-augmented kernel matrix, cached
// in full for small training sets and recomputed otherwise
type kernelColumns struct {
	X      *mat.Dense
	gamma  float64
	cached *mat.Dense
	buf    []float64
}

func newKernelColumns(X *mat.Dense, gamma float64, cacheRows int) *kernelColumns {
	n, _ := X.Dims()
	k := &kernelColumns{X: X, gamma: gamma, buf: make([]float64, n)}
	if n <= cacheRows {
		k.cached = mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			k.cached.Set(i, i, 2)
			for j := 0; j < i; j++ {
				v := rbf(X.RawRowView(i), X.RawRowView(j), gamma) + 1
				k.cached.Set(i, j, v)
				k.cached.Set(j, i, v)
			}
		}
	}
	return k
}

func (k *kernelColumns) column(i int) []float64 {
	if k.cached != nil {
		return k.cached.RawRowView(i)
	}
	n, _ := k.X.Dims()
	row := k.X.RawRowView(i)
	for j := 0; j < n; j++ {
		k.buf[j] = rbf(row, k.X.RawRowView(j), k.gamma) + 1
	}
	return k.buf
}
