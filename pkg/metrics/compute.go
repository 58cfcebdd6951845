package metrics

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round4 rounds v half away from zero to four decimal places
func Round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f
}

// Key returns the response key of a metric name. r2 is reported as r2_score.
func Key(name string) string {
	if name == "r2" {
		return "r2_score"
	}
	return name
}

// Compute evaluates the selected metrics on aligned actual and predicted
// values. Scalar metrics are rounded to four places; the confusion matrix is
// reported as rows of counts.
func Compute(selected Set, actual, predicted []float64) map[string]any {
	out := make(map[string]any, len(selected))
	var scores *Scores
	weighted := func() Scores {
		if scores == nil {
			s := WeightedScores(actual, predicted)
			scores = &s
		}
		return *scores
	}

	for _, name := range selected {
		switch name {
		case "mse":
			out[Key(name)] = Round4(MSE(actual, predicted))
		case "mae":
			out[Key(name)] = Round4(MAE(actual, predicted))
		case "rmse":
			out[Key(name)] = Round4(RMSE(actual, predicted))
		case "r2", "r2_score":
			out[Key(name)] = Round4(R2(actual, predicted))
		case "accuracy":
			out[Key(name)] = Round4(Accuracy(actual, predicted))
		case "precision":
			out[Key(name)] = Round4(weighted().Precision)
		case "recall":
			out[Key(name)] = Round4(weighted().Recall)
		case "f1_score":
			out[Key(name)] = Round4(weighted().F1)
		case "confusion_matrix":
			out[Key(name)] = NewConfusionMatrix(actual, predicted).Counts
		}
	}
	return out
}
