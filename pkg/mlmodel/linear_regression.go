package mlmodel

import (
	"context"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// LinearRegressionRunner fits ordinary least squares on numeric targets
type LinearRegressionRunner struct{}

func (LinearRegressionRunner) Family() models.ModelFamily {
	return models.ModelFamilyLinearRegression
}

func (LinearRegressionRunner) Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error) {
	f, err := prepare(req)
	if err != nil {
		return nil, err
	}
	if !f.Target.Numeric {
		return nil, models.ProblemMismatchError("Target column is not numeric. Use a classification model instead.")
	}
	if f.Target.Distinct() <= categoricalThreshold {
		return nil, models.ProblemMismatchError("Target appears categorical. Use classification model instead.")
	}

	p, err := split(f, f.Target.Values)
	if err != nil {
		return nil, err
	}
	est := training.NewLinearRegression()
	predicted, err := fit(ctx, est, p)
	if err != nil {
		return nil, err
	}

	return &models.ModelResult{
		ModelType:          "Linear Regression",
		Family:             models.ModelFamilyLinearRegression,
		ProblemType:        models.ProblemTypeRegression,
		Metrics:            evaluate(req.Metrics, metrics.Regression, p.data.TestLabels, predicted),
		Coefficients:       byFeature(f.Names, est.Coef),
		Intercept:          rounded(est.Intercept),
		PredictionsPreview: preview(p.data.TestLabels, predicted, asFloat),
	}, nil
}
