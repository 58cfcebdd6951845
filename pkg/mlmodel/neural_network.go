package mlmodel

import (
	"context"
	"fmt"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// Network metric subsets per problem type
var (
	networkRegression     = metrics.Network.Intersect(metrics.Set{"mse", "r2"})
	networkClassification = metrics.Network.Intersect(metrics.Set{"accuracy", "f1_score", "confusion_matrix"})
)

// NeuralNetworkRunner trains a feed-forward network built from the
// client-supplied layer list
type NeuralNetworkRunner struct{}

func (NeuralNetworkRunner) Family() models.ModelFamily {
	return models.ModelFamilyNeuralNetwork
}

func (NeuralNetworkRunner) Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error) {
	cfg := models.DefaultNetworkConfig()
	if req != nil && req.Network != nil {
		cfg = req.Network.WithDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &models.Error{
			Code: models.EInvalid,
			Msg:  fmt.Sprintf("Invalid model_config: %v", err),
			Err:  err,
		}
	}

	f, err := prepare(req)
	if err != nil {
		return nil, err
	}

	y := f.Target.Values
	var labels *classLabels
	if cfg.ProblemType == models.ProblemTypeClassification {
		labels = encodeClasses(f.Target)
		if len(labels.classes) != 2 {
			return nil, models.ProblemMismatchError(fmt.Sprintf(
				"Classification networks need a binary target; found %d classes.", len(labels.classes)))
		}
		y = labels.codes
	} else if !f.Target.Numeric {
		return nil, models.ProblemMismatchError("Target column is not numeric. Use problem_type classification instead.")
	}

	p, err := split(f, y)
	if err != nil {
		return nil, err
	}
	net := training.NewNeuralNetwork(cfg, training.DefaultSeed)
	predicted, err := fit(ctx, net, p)
	if err != nil {
		return nil, err
	}

	result := &models.ModelResult{
		ModelType:    "Custom Deep Neural Network",
		Family:       models.ModelFamilyNeuralNetwork,
		ProblemType:  cfg.ProblemType,
		ConfigUsed:   &cfg,
		TrainingLoss: net.Losses(),
	}
	if labels == nil {
		result.Metrics = evaluate(req.Metrics, networkRegression, p.data.TestLabels, predicted)
		result.PredictionsPreview = preview(p.data.TestLabels, predicted, asFloat)
		return result, nil
	}

	for i, prob := range predicted {
		predicted[i] = 0
		if prob >= 0.5 {
			predicted[i] = 1
		}
	}
	result.Metrics = evaluate(req.Metrics, networkClassification, p.data.TestLabels, predicted)
	result.PredictionsPreview = preview(p.data.TestLabels, predicted, labels.value)
	return result, nil
}
