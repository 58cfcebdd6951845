package mlmodel

import (
	"context"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// SVMRunner fits an RBF support vector regressor
type SVMRunner struct{}

func (SVMRunner) Family() models.ModelFamily {
	return models.ModelFamilySVM
}

func (SVMRunner) Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error) {
	f, err := prepare(req)
	if err != nil {
		return nil, err
	}
	if inferProblem(f.Target) != models.ProblemTypeRegression {
		return nil, models.ProblemMismatchError("Target appears categorical. Use an SVM Classification model instead.")
	}

	p, err := split(f, f.Target.Values)
	if err != nil {
		return nil, err
	}
	est := training.NewSVR()
	predicted, err := fit(ctx, est, p)
	if err != nil {
		return nil, err
	}

	return &models.ModelResult{
		ModelType:   "SVM Regression",
		Family:      models.ModelFamilySVM,
		ProblemType: models.ProblemTypeRegression,
		Metrics:     evaluate(req.Metrics, metrics.ErrorBased, p.data.TestLabels, predicted),
		Parameters: map[string]any{
			"kernel":          "rbf",
			"C":               est.C,
			"epsilon":         est.Epsilon,
			"gamma":           "scale",
			"gamma_value":     metrics.Round4(est.Gamma),
			"support_vectors": est.SupportVectors(),
			"scaler":          "StandardScaler",
		},
		PredictionsPreview: preview(p.data.TestLabels, predicted, asFloat),
	}, nil
}
