package mlmodel

import (
	"context"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// RandomForestRunner fits a 100-tree forest for regression or classification
type RandomForestRunner struct{}

func (RandomForestRunner) Family() models.ModelFamily {
	return models.ModelFamilyRandomForest
}

func (RandomForestRunner) Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error) {
	f, err := prepare(req)
	if err != nil {
		return nil, err
	}

	problem := inferProblem(f.Target)
	y := f.Target.Values
	var labels *classLabels
	if problem == models.ProblemTypeClassification {
		labels = encodeClasses(f.Target)
		y = labels.codes
	}

	p, err := split(f, y)
	if err != nil {
		return nil, err
	}

	var forest *training.RandomForest
	if labels != nil {
		forest = training.NewRandomForest(true, len(labels.classes), training.DefaultSeed)
	} else {
		forest = training.NewRandomForest(false, 0, training.DefaultSeed)
	}
	predicted, err := fit(ctx, forest, p)
	if err != nil {
		return nil, err
	}

	result := &models.ModelResult{
		Family:             models.ModelFamilyRandomForest,
		ProblemType:        problem,
		FeatureImportances: byFeature(f.Names, forest.FeatureImportances()),
		Parameters: map[string]any{
			"n_estimators": forest.NEstimators,
			"max_depth":    nil,
			"random_state": training.DefaultSeed,
			"n_jobs":       forest.NJobs,
		},
	}
	if labels != nil {
		result.ModelType = "Random Forest (Classification)"
		result.Metrics = evaluate(req.Metrics, metrics.Classification, p.data.TestLabels, predicted)
		result.PredictionsPreview = preview(p.data.TestLabels, predicted, labels.value)
		return result, nil
	}
	result.ModelType = "Random Forest (Regression)"
	result.Metrics = evaluate(req.Metrics, metrics.Regression, p.data.TestLabels, predicted)
	result.PredictionsPreview = preview(p.data.TestLabels, predicted, asFloat)
	return result, nil
}
