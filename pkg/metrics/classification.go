package metrics

import (
	"sort"
)

// ConfusionMatrix counts predictions per (actual, predicted) label pair.
// Labels is the sorted union of actual and predicted labels; Counts rows
// are actual labels and columns predicted labels.
type ConfusionMatrix struct {
	Labels []float64
	Counts [][]int
}

// NewConfusionMatrix builds the confusion matrix of two aligned label slices
func NewConfusionMatrix(actual, predicted []float64) ConfusionMatrix {
	labels := unionLabels(actual, predicted)
	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := range actual {
		counts[index[actual[i]]][index[predicted[i]]]++
	}

	return ConfusionMatrix{Labels: labels, Counts: counts}
}

// TruePositives returns the correctly predicted count of label index k
func (cm ConfusionMatrix) TruePositives(k int) int {
	return cm.Counts[k][k]
}

// Support returns the number of samples whose actual label is index k
func (cm ConfusionMatrix) Support(k int) int {
	n := 0
	for _, c := range cm.Counts[k] {
		n += c
	}
	return n
}

// Predicted returns the number of samples predicted as label index k
func (cm ConfusionMatrix) Predicted(k int) int {
	n := 0
	for _, row := range cm.Counts {
		n += row[k]
	}
	return n
}

// Accuracy returns the fraction of exact label matches
func Accuracy(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	correct := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual))
}

// Scores holds support-weighted precision, recall and F1
type Scores struct {
	Precision float64
	Recall    float64
	F1        float64
}

// WeightedScores averages per-label precision, recall and F1 weighted by
// each label's support. Undefined ratios count as zero.
func WeightedScores(actual, predicted []float64) Scores {
	cm := NewConfusionMatrix(actual, predicted)
	total := float64(len(actual))
	if total == 0 {
		return Scores{}
	}

	var s Scores
	for k := range cm.Labels {
		tp := float64(cm.TruePositives(k))
		support := float64(cm.Support(k))
		if support == 0 {
			continue
		}
		precision := ratio(tp, float64(cm.Predicted(k)))
		recall := ratio(tp, support)
		f1 := ratio(2*precision*recall, precision+recall)

		w := support / total
		s.Precision += w * precision
		s.Recall += w * recall
		s.F1 += w * f1
	}
	return s
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func unionLabels(a, b []float64) []float64 {
	seen := make(map[float64]struct{}, len(a))
	var labels []float64
	for _, s := range [][]float64{a, b} {
		for _, v := range s {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				labels = append(labels, v)
			}
		}
	}
	sort.Float64s(labels)
	return labels
}
