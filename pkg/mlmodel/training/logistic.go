package training

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// LogisticRegression is an L2-regularized logistic model over integer class
// codes 0..NumClasses-1. Two classes use a single weight vector for class 1;
// more classes use a multinomial (softmax) model.
type LogisticRegression struct {
	C          float64
	MaxIter    int
	NumClasses int

	// Weights has one row per class (a single row for binary models)
	Weights    *mat.Dense
	Intercepts []float64
}

// NewLogisticRegression creates a model with C=1 and at most 1000 iterations
func NewLogisticRegression(numClasses int) *LogisticRegression {
	return &LogisticRegression{
		C:          1.0,
		MaxIter:    1000,
		NumClasses: numClasses,
	}
}

// Fit minimises C·(total log-loss) + ½‖W‖² with L-BFGS
func (m *LogisticRegression) Fit(ctx context.Context, X *mat.Dense, y []float64) error {
	r, p := X.Dims()
	if r == 0 || p == 0 {
		return fmt.Errorf("no training data provided")
	}
	if m.NumClasses < 2 {
		return fmt.Errorf("logistic regression needs at least 2 classes, got %d", m.NumClasses)
	}
	for _, v := range y {
		if v < 0 || int(v) >= m.NumClasses || v != math.Trunc(v) {
			return fmt.Errorf("invalid class code %v", v)
		}
	}

	k := m.NumClasses
	if k == 2 {
		k = 1
	}
	nParams := k*p + k

	objective := func(grad, x []float64) float64 {
		if grad != nil {
			for i := range grad {
				grad[i] = 0
			}
		}
		W := x[:k*p]
		b := x[k*p:]
		loss := 0.0
		z := make([]float64, k)
		for i := 0; i < r; i++ {
			row := X.RawRowView(i)
			for c := 0; c < k; c++ {
				z[c] = floats.Dot(W[c*p:(c+1)*p], row) + b[c]
			}
			label := int(y[i])
			if k == 1 {
				yi := float64(label)
				loss += softplus(z[0]) - yi*z[0]
				if grad != nil {
					d := m.C * (sigmoid(z[0]) - yi)
					floats.AddScaled(grad[:p], d, row)
					grad[p] += d
				}
				continue
			}
			lse := logSumExp(z)
			loss += lse - z[label]
			if grad != nil {
				for c := 0; c < k; c++ {
					d := math.Exp(z[c] - lse)
					if c == label {
						d -= 1
					}
					d *= m.C
					floats.AddScaled(grad[c*p:(c+1)*p], d, row)
					grad[k*p+c] += d
				}
			}
		}
		loss *= m.C
		loss += 0.5 * floats.Dot(W, W)
		if grad != nil {
			floats.Add(grad[:k*p], W)
		}
		return loss
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return objective(nil, x)
		},
		Grad: func(grad, x []float64) {
			objective(grad, x)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   m.MaxIter,
		GradientThreshold: 1e-6,
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := optimize.Minimize(problem, make([]float64, nParams), settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("logistic regression optimization failed: %w", err)
	}

	m.Weights = mat.NewDense(k, p, append([]float64(nil), result.X[:k*p]...))
	m.Intercepts = append([]float64(nil), result.X[k*p:]...)
	return nil
}

// Predict returns the most probable class code of each row
func (m *LogisticRegression) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	k, _ := m.Weights.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		row := X.RawRowView(i)
		if k == 1 {
			if floats.Dot(m.Weights.RawRowView(0), row)+m.Intercepts[0] > 0 {
				out[i] = 1
			}
			continue
		}
		best, bestScore := 0, math.Inf(-1)
		for c := 0; c < k; c++ {
			score := floats.Dot(m.Weights.RawRowView(c), row) + m.Intercepts[c]
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		out[i] = float64(best)
	}
	return out
}

// Coefficients returns the weights and intercept of the first weight row
func (m *LogisticRegression) Coefficients() ([]float64, float64) {
	return append([]float64(nil), m.Weights.RawRowView(0)...), m.Intercepts[0]
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus returns log(1 + e^z) without overflow
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func logSumExp(z []float64) float64 {
	hi := floats.Max(z)
	sum := 0.0
	for _, v := range z {
		sum += math.Exp(v - hi)
	}
	return hi + math.Log(sum)
}
