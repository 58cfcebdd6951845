package training

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nlpodyssey/spago/ag"
	"github.com/nlpodyssey/spago/initializers"
	spagomat "github.com/nlpodyssey/spago/mat"
	"github.com/nlpodyssey/spago/mat/rand"
	"github.com/nlpodyssey/spago/nn"
	"github.com/nlpodyssey/spago/nn/activation"
	"github.com/nlpodyssey/spago/nn/linear"
	"github.com/nlpodyssey/spago/optimizers"
	"github.com/nlpodyssey/spago/optimizers/adam"
	"gonum.org/v1/gonum/mat"

	"github.com/modelsite/modelsite-go/pkg/models"
)

// ErrDiverged is returned when a training loss stops being a finite number
var ErrDiverged = errors.New("training diverged")

// softplus switches to the identity above this input
const softplusThreshold = 20

var _ nn.Model = &Network{}

// Network is a stack of linear and activation modules
type Network struct {
	nn.Module
	Layers nn.ModuleList[nn.StandardModel]
}

// BuildNetwork folds (units, activation) pairs into linear and activation
// modules and appends a single-unit linear output layer. Weights are Xavier
// initialised with the gain of the following activation.
func BuildNetwork(inputs int, specs []models.LayerSpec, seed int64) *Network {
	rng := rand.NewLockedRand(uint64(seed))
	net := &Network{}
	width := inputs
	for _, spec := range specs {
		kind := activationOf(spec.Activation)
		net.Layers = append(net.Layers,
			newLinear(width, spec.Units, initializers.Gain(kind), rng),
			activation.New(kind))
		width = spec.Units
	}
	net.Layers = append(net.Layers, newLinear(width, 1, 1, rng))
	return net
}

func newLinear(in, out int, gain float64, rng *rand.LockedRand) *linear.Model {
	layer := linear.New[float64](in, out)
	initializers.XavierUniform(layer.W.Value().(spagomat.Matrix), gain, rng)
	return layer
}

func activationOf(a models.Activation) activation.Activation {
	switch a {
	case models.ActivationReLU:
		return activation.ReLU
	case models.ActivationSigmoid:
		return activation.Sigmoid
	case models.ActivationTanh:
		return activation.Tanh
	}
	return activation.Identity
}

// Forward maps one feature column vector to the single output node
func (n *Network) Forward(x spagomat.Tensor) spagomat.Tensor {
	return n.Layers.Forward(x)[0]
}

// NeuralNetwork is a feed-forward network with one output unit. Regression
// networks minimise mean squared error; classification networks emit a logit
// trained with binary cross-entropy on 0/1 targets.
type NeuralNetwork struct {
	Config models.NetworkConfig
	Seed   int64

	net    *Network
	losses []models.EpochLoss
}

// NewNeuralNetwork creates an untrained network for cfg
func NewNeuralNetwork(cfg models.NetworkConfig, seed int64) *NeuralNetwork {
	return &NeuralNetwork{Config: cfg, Seed: seed}
}

// Fit trains with Adam over mini-batches taken in row order and records the
// mean batch loss of every epoch
func (n *NeuralNetwork) Fit(ctx context.Context, X *mat.Dense, y []float64) error {
	rows, p := X.Dims()
	if rows == 0 || p == 0 {
		return fmt.Errorf("no training data provided")
	}
	if rows != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", rows, len(y))
	}
	if err := n.Config.Validate(); err != nil {
		return err
	}
	classification := n.Config.ProblemType == models.ProblemTypeClassification
	if classification {
		for _, v := range y {
			if v != 0 && v != 1 {
				return fmt.Errorf("binary cross-entropy needs 0/1 targets, got %v", v)
			}
		}
	}

	n.net = BuildNetwork(p, n.Config.Layers, n.Seed)
	strategy := adam.New(adam.NewConfig(n.Config.LearningRate, 0.9, 0.999, 1e-8))
	optimizer := optimizers.New(nn.Parameters(n.net), strategy)
	n.losses = make([]models.EpochLoss, 0, n.Config.Epochs)

	for epoch := 1; epoch <= n.Config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		total, batches := 0.0, 0
		for start := 0; start < rows; start += n.Config.BatchSize {
			end := start + n.Config.BatchSize
			if end > rows {
				end = rows
			}
			batch := make([]spagomat.Tensor, 0, end-start)
			for i := start; i < end; i++ {
				out := n.net.Forward(featureRow(X, i))
				batch = append(batch, rowLoss(out, y[i], classification))
			}
			loss := ag.Mean(batch)
			value := loss.Value().Item().F64()
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return fmt.Errorf("%w: loss is %v at epoch %d", ErrDiverged, value, epoch)
			}
			if err := ag.Backward(loss); err != nil {
				return err
			}
			if err := optimizer.Optimize(); err != nil {
				return err
			}
			strategy.IncExample()
			total += value
			batches++
		}
		n.losses = append(n.losses, models.EpochLoss{Epoch: epoch, Loss: total / float64(batches)})
	}
	return nil
}

// Predict returns raw outputs for regression and class-1 probabilities for
// classification
func (n *NeuralNetwork) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	preds := make([]float64, r)
	for i := range preds {
		preds[i] = n.net.Forward(featureRow(X, i)).Value().Item().F64()
		if n.Config.ProblemType == models.ProblemTypeClassification {
			preds[i] = sigmoid(preds[i])
		}
	}
	return preds
}

// Losses returns the per-epoch mean training loss
func (n *NeuralNetwork) Losses() []models.EpochLoss {
	return append([]models.EpochLoss(nil), n.losses...)
}

func featureRow(X *mat.Dense, i int) spagomat.Tensor {
	return spagomat.NewDense[float64](spagomat.WithBacking(mat.Row(nil, i, X)))
}

// rowLoss is the squared error of a regression output, or the binary
// cross-entropy of a logit z written as softplus(z) for class 0 and
// softplus(-z) for class 1.
func rowLoss(out spagomat.Tensor, target float64, classification bool) spagomat.Tensor {
	if !classification {
		return ag.Square(ag.Sub(out, spagomat.Scalar(target)))
	}
	z := out
	if target == 1 {
		z = ag.Neg(out)
	}
	return ag.SoftPlus(z, spagomat.Scalar(1.0), spagomat.Scalar(float64(softplusThreshold)))
}
