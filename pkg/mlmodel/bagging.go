package mlmodel

import (
	"context"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// BaggingRunner averages bootstrap linear regressions
type BaggingRunner struct{}

func (BaggingRunner) Family() models.ModelFamily {
	return models.ModelFamilyBagging
}

func (BaggingRunner) Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error) {
	f, err := prepare(req)
	if err != nil {
		return nil, err
	}
	if inferProblem(f.Target) != models.ProblemTypeRegression {
		return nil, models.ProblemMismatchError("Target appears categorical. Use a Bagging Classification model instead.")
	}

	p, err := split(f, f.Target.Values)
	if err != nil {
		return nil, err
	}
	est := training.NewBaggingRegressor(training.DefaultSeed)
	predicted, err := fit(ctx, est, p)
	if err != nil {
		return nil, err
	}

	return &models.ModelResult{
		ModelType:   "Bagging Regression",
		Family:      models.ModelFamilyBagging,
		ProblemType: models.ProblemTypeRegression,
		Metrics:     evaluate(req.Metrics, metrics.ErrorBased, p.data.TestLabels, predicted),
		Parameters: map[string]any{
			"n_estimators": est.NEstimators,
			"scaler":       "StandardScaler",
			"random_state": training.DefaultSeed,
		},
		PredictionsPreview: preview(p.data.TestLabels, predicted, asFloat),
	}, nil
}
