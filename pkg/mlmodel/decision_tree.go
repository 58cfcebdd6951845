package mlmodel

import (
	"context"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// DecisionTreeRunner fits a single CART tree. The problem type is inferred
// from the target.
type DecisionTreeRunner struct{}

func (DecisionTreeRunner) Family() models.ModelFamily {
	return models.ModelFamilyDecisionTree
}

func (DecisionTreeRunner) Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error) {
	f, err := prepare(req)
	if err != nil {
		return nil, err
	}

	result := &models.ModelResult{
		Family:      models.ModelFamilyDecisionTree,
		ProblemType: inferProblem(f.Target),
		Parameters: map[string]any{
			"max_depth":    nil,
			"random_state": training.DefaultSeed,
		},
	}

	if result.ProblemType == models.ProblemTypeRegression {
		p, err := split(f, f.Target.Values)
		if err != nil {
			return nil, err
		}
		tree := training.NewDecisionTree(false, 0, training.DefaultSeed)
		predicted, err := fit(ctx, tree, p)
		if err != nil {
			return nil, err
		}
		result.ModelType = "Decision Tree Regression"
		result.Metrics = evaluate(req.Metrics, metrics.ErrorBased, p.data.TestLabels, predicted)
		result.FeatureImportances = byFeature(f.Names, tree.FeatureImportances())
		result.PredictionsPreview = preview(p.data.TestLabels, predicted, asFloat)
		return result, nil
	}

	labels := encodeClasses(f.Target)
	p, err := split(f, labels.codes)
	if err != nil {
		return nil, err
	}
	tree := training.NewDecisionTree(true, len(labels.classes), training.DefaultSeed)
	predicted, err := fit(ctx, tree, p)
	if err != nil {
		return nil, err
	}
	result.ModelType = "Decision Tree Classification"
	result.Metrics = evaluate(req.Metrics, metrics.Classification, p.data.TestLabels, predicted)
	result.FeatureImportances = byFeature(f.Names, tree.FeatureImportances())
	result.PredictionsPreview = preview(p.data.TestLabels, predicted, labels.value)
	return result, nil
}
