package mlmodel

import (
	"context"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// LogisticRegressionRunner fits an L2-regularized logistic model on
// factorized class codes
type LogisticRegressionRunner struct{}

func (LogisticRegressionRunner) Family() models.ModelFamily {
	return models.ModelFamilyLogisticRegression
}

func (LogisticRegressionRunner) Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error) {
	f, err := prepare(req)
	if err != nil {
		return nil, err
	}
	if inferProblem(f.Target) == models.ProblemTypeRegression {
		return nil, models.ProblemMismatchError("Target appears continuous. Use a regression model instead.")
	}

	labels := encodeClasses(f.Target)
	if len(labels.classes) < 2 {
		return nil, models.InvalidDataError("Target column must contain at least two classes.")
	}
	p, err := split(f, labels.codes)
	if err != nil {
		return nil, err
	}
	est := training.NewLogisticRegression(len(labels.classes))
	predicted, err := fit(ctx, est, p)
	if err != nil {
		return nil, err
	}

	coef, intercept := est.Coefficients()
	return &models.ModelResult{
		ModelType:          "Logistic Regression",
		Family:             models.ModelFamilyLogisticRegression,
		ProblemType:        models.ProblemTypeClassification,
		Metrics:            evaluate(req.Metrics, metrics.Classification, p.data.TestLabels, predicted),
		Coefficients:       byFeature(f.Names, coef),
		Intercept:          rounded(intercept),
		PredictionsPreview: preview(p.data.TestLabels, predicted, asInt),
	}, nil
}
