package mlmodel

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/modelsite/modelsite-go/pkg/dataset"
	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel/training"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// RunRequest carries the inputs of one model run
type RunRequest struct {
	Table        *dataset.Table
	TargetColumn string

	// Metrics is the client metric request before normalization. Nil
	// selects the family's full metric set.
	Metrics []string

	// Network is only read by the deep-neural-network runner. Nil selects
	// the default configuration.
	Network *models.NetworkConfig
}

// Runner trains and evaluates one model family
type Runner interface {
	Family() models.ModelFamily
	Run(ctx context.Context, req *RunRequest) (*models.ModelResult, error)
}

const (
	// targets with at most this many distinct values are treated as classes
	categoricalThreshold = 10
	previewSize          = 10
)

// inferProblem treats numeric targets with many distinct values as
// regression and everything else as classification
func inferProblem(t *dataset.Target) models.ProblemType {
	if t.Numeric && t.Distinct() > categoricalThreshold {
		return models.ProblemTypeRegression
	}
	return models.ProblemTypeClassification
}

// classLabels is a classification target encoded as integer codes
type classLabels struct {
	codes   []float64
	classes []any
	numeric bool
}

func encodeClasses(t *dataset.Target) *classLabels {
	codes, classes := t.Factorize()
	return &classLabels{codes: codes, classes: classes, numeric: t.Numeric}
}

// value maps a code back to the class value for numeric targets and leaves
// the integer code for text targets
func (c *classLabels) value(code float64) any {
	i := int(code)
	if c.numeric && i >= 0 && i < len(c.classes) {
		return c.classes[i]
	}
	return i
}

// prepared is a dataset split and ready for fitting
type prepared struct {
	features *dataset.Features
	data     *training.TrainingData
}

func prepare(req *RunRequest) (*dataset.Features, error) {
	if req == nil || req.Table == nil {
		return nil, models.InvalidDataError("No dataset provided.")
	}
	return dataset.Prepare(req.Table, req.TargetColumn)
}

func split(f *dataset.Features, y []float64) (*prepared, error) {
	data, err := training.NewTrainingData(f.X, y, f.Names, training.DefaultTestSize, training.DefaultSeed)
	if err != nil {
		return nil, models.InvalidDataError(fmt.Sprintf("Could not split dataset: %v", err))
	}
	return &prepared{features: f, data: data}, nil
}

// fit trains est on the training partition and predicts the test partition
func fit(ctx context.Context, est training.Estimator, p *prepared) ([]float64, error) {
	if err := est.Fit(ctx, p.data.TrainFeatures, p.data.TrainLabels); err != nil {
		if errors.Is(err, training.ErrTooLarge) {
			return nil, models.InvalidDataError(fmt.Sprintf("Dataset is too large for this model (%v).", err))
		}
		if errors.Is(err, training.ErrDiverged) {
			return nil, models.InvalidDataError(fmt.Sprintf(
				"Training diverged (%v). Try a smaller learning rate or rescale the features.", err))
		}
		return nil, fmt.Errorf("training failed: %w", err)
	}
	predicted := est.Predict(p.data.TestFeatures)
	for _, v := range predicted {
		if !finite(v) {
			return nil, models.InvalidDataError(
				"The model produced non-finite predictions. Try a smaller learning rate or rescale the features.")
		}
	}
	return predicted, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// preview pairs the first test rows with their predictions
func preview(actual, predicted []float64, render func(float64) any) []models.Prediction {
	n := len(actual)
	if n > previewSize {
		n = previewSize
	}
	out := make([]models.Prediction, n)
	for i := range out {
		out[i] = models.Prediction{Actual: render(actual[i]), Predicted: render(predicted[i])}
	}
	return out
}

func asFloat(v float64) any {
	return v
}

func asInt(v float64) any {
	return int(v)
}

// byFeature keys fitted values by feature name, rounded to four places
func byFeature(names []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(values) {
			out[name] = metrics.Round4(values[i])
		}
	}
	return out
}

// rounded returns v rounded to four places
func rounded(v float64) *float64 {
	r := metrics.Round4(v)
	return &r
}

// checkFinite rejects a result holding a number JSON cannot encode
func checkFinite(result *models.ModelResult) error {
	reject := func(what string) error {
		return models.InvalidDataError(fmt.Sprintf(
			"The model produced a non-finite %s. Try a smaller learning rate or rescale the features.", what))
	}
	for name, v := range result.Metrics {
		if f, ok := v.(float64); ok && !finite(f) {
			return reject(name)
		}
	}
	for _, v := range result.Coefficients {
		if !finite(v) {
			return reject("coefficient")
		}
	}
	if result.Intercept != nil && !finite(*result.Intercept) {
		return reject("intercept")
	}
	for _, v := range result.FeatureImportances {
		if !finite(v) {
			return reject("feature importance")
		}
	}
	for _, l := range result.TrainingLoss {
		if !finite(l.Loss) {
			return reject("training loss")
		}
	}
	for _, p := range result.PredictionsPreview {
		for _, v := range []any{p.Actual, p.Predicted} {
			if f, ok := v.(float64); ok && !finite(f) {
				return reject("prediction")
			}
		}
	}
	return nil
}

// evaluate computes the selected metrics on the test partition
func evaluate(requested []string, valid metrics.Set, actual, predicted []float64) map[string]any {
	return metrics.Compute(metrics.Select(requested, valid), actual, predicted)
}
