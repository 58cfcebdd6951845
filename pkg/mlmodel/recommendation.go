package mlmodel

import (
	"fmt"
	"strings"

	"github.com/modelsite/modelsite-go/pkg/dataset"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// simplicity orders families from most to least interpretable. Ties are
// resolved in this order.
var simplicity = []models.ModelFamily{
	models.ModelFamilyLinearRegression,
	models.ModelFamilyLogisticRegression,
	models.ModelFamilyDecisionTree,
	models.ModelFamilyBagging,
	models.ModelFamilyRandomForest,
	models.ModelFamilySVM,
	models.ModelFamilyNeuralNetwork,
}

// RecommendationEngine scores model families against a dataset profile
type RecommendationEngine struct{}

// NewRecommendationEngine creates a new recommendation engine
func NewRecommendationEngine() *RecommendationEngine {
	return &RecommendationEngine{}
}

// ProfileDataset summarises t with respect to the target column
func ProfileDataset(t *dataset.Table, target string) (*models.DatasetProfile, error) {
	tcol, ok := t.Column(target)
	if !ok {
		return nil, models.ColumnNotFoundError(target)
	}

	profile := &models.DatasetProfile{
		Rows:           t.NumRows(),
		TargetNumeric:  tcol.Numeric,
		TargetDistinct: tcol.Distinct(),
	}

	numeric, categorical := 0, 0
	for _, name := range t.Names() {
		if name == target {
			continue
		}
		col, _ := t.Column(name)
		if col.Present() == 0 {
			continue
		}
		if col.Numeric {
			numeric++
		} else {
			categorical++
		}
	}
	profile.Features = numeric + categorical
	if profile.Features > 0 {
		profile.NumericRatio = float64(numeric) / float64(profile.Features)
		profile.CategoricalRatio = float64(categorical) / float64(profile.Features)
	}

	switch {
	case profile.Rows < 1000:
		profile.Size = models.DatasetSizeSmall
	case profile.Rows < 10000:
		profile.Size = models.DatasetSizeMedium
	default:
		profile.Size = models.DatasetSizeLarge
	}

	profile.ProblemType = models.ProblemTypeClassification
	if tcol.Numeric && profile.TargetDistinct > categoricalThreshold {
		profile.ProblemType = models.ProblemTypeRegression
	}
	return profile, nil
}

// RecommendModelFamily picks the best scoring family that can serve the
// profile's problem type
func (re *RecommendationEngine) RecommendModelFamily(profile *models.DatasetProfile) (*models.ModelRecommendation, error) {
	if profile == nil {
		return nil, fmt.Errorf("dataset profile is required")
	}
	if profile.Features == 0 {
		return nil, models.InvalidDataError("No valid numeric features found.")
	}

	regression := profile.ProblemType == models.ProblemTypeRegression
	scores := map[models.ModelFamily]int{
		models.ModelFamilyDecisionTree: 0,
		models.ModelFamilyRandomForest: 0,
	}
	linear := models.ModelFamilyLogisticRegression
	if regression {
		linear = models.ModelFamilyLinearRegression
		scores[models.ModelFamilyBagging] = 0
		scores[models.ModelFamilySVM] = 0
	}
	scores[linear] = 0
	if regression || profile.TargetDistinct == 2 {
		scores[models.ModelFamilyNeuralNetwork] = 0
	}
	add := func(family models.ModelFamily, points int) {
		if _, ok := scores[family]; ok {
			scores[family] += points
		}
	}

	// Feature count
	if profile.Features < 10 {
		add(models.ModelFamilyDecisionTree, 2)
	} else {
		add(models.ModelFamilyRandomForest, 2)
		add(models.ModelFamilyNeuralNetwork, 1)
	}

	// Feature types
	if profile.NumericRatio > 0.7 {
		add(linear, 3)
		add(models.ModelFamilySVM, 1)
		add(models.ModelFamilyNeuralNetwork, 1)
	} else if profile.NumericRatio < 0.3 {
		add(models.ModelFamilyDecisionTree, 2)
		add(models.ModelFamilyRandomForest, 2)
	}

	// Data size
	switch profile.Size {
	case models.DatasetSizeSmall:
		add(models.ModelFamilyDecisionTree, 2)
		add(models.ModelFamilySVM, 1)
	case models.DatasetSizeMedium:
		add(models.ModelFamilyRandomForest, 2)
		add(models.ModelFamilyBagging, 1)
		add(linear, 1)
	case models.DatasetSizeLarge:
		add(models.ModelFamilyNeuralNetwork, 3)
		add(models.ModelFamilyRandomForest, 1)
	}

	// Many classes favour ensembles
	if !regression && profile.TargetDistinct > 2 {
		add(models.ModelFamilyRandomForest, 1)
	}

	recommended := simplicity[0]
	highest := -1
	for _, family := range simplicity {
		score, ok := scores[family]
		if ok && score > highest {
			recommended, highest = family, score
		}
	}

	return &models.ModelRecommendation{
		RecommendedFamily: recommended,
		Score:             highest,
		Reasoning:         re.generateReasoning(recommended, profile, scores),
		AllScores:         scores,
		Profile:           profile,
	}, nil
}

// generateReasoning creates a human-readable explanation for the recommendation
func (re *RecommendationEngine) generateReasoning(
	recommended models.ModelFamily,
	profile *models.DatasetProfile,
	scores map[models.ModelFamily]int,
) string {
	var reasons []string

	switch recommended {
	case models.ModelFamilyLinearRegression, models.ModelFamilyLogisticRegression:
		reasons = append(reasons, "Linear model recommended based on:")
		if profile.NumericRatio > 0.7 {
			reasons = append(reasons, fmt.Sprintf("- High proportion of numerical features (%.1f%%)", profile.NumericRatio*100))
		}
		if profile.Size == models.DatasetSizeMedium {
			reasons = append(reasons, "- Medium dataset provides sufficient training data")
		}
		reasons = append(reasons, "- Coefficients explain each feature's contribution")

	case models.ModelFamilyDecisionTree:
		reasons = append(reasons, "Decision Tree recommended based on:")
		if profile.Features < 10 {
			reasons = append(reasons, fmt.Sprintf("- Few features (%d)", profile.Features))
		}
		if profile.Size == models.DatasetSizeSmall {
			reasons = append(reasons, fmt.Sprintf("- Small dataset size (%d rows)", profile.Rows))
		}
		if profile.NumericRatio < 0.7 && profile.NumericRatio > 0.3 {
			reasons = append(reasons, "- Mixed numerical and categorical features")
		}
		reasons = append(reasons, "- Good interpretability for understanding feature importance")

	case models.ModelFamilyRandomForest:
		reasons = append(reasons, "Random Forest recommended based on:")
		if profile.Features >= 10 {
			reasons = append(reasons, fmt.Sprintf("- Many features (%d)", profile.Features))
		}
		if profile.Size != models.DatasetSizeSmall {
			reasons = append(reasons, fmt.Sprintf("- Suitable dataset size (%s)", profile.Size))
		}
		if profile.CategoricalRatio > 0.3 {
			reasons = append(reasons, "- Significant categorical features present")
		}
		reasons = append(reasons, "- Ensemble approach improves accuracy")

	case models.ModelFamilyBagging:
		reasons = append(reasons, "Bagging recommended based on:")
		reasons = append(reasons, "- Averaging bootstrap estimators reduces variance")

	case models.ModelFamilySVM:
		reasons = append(reasons, "SVM recommended based on:")
		if profile.Size == models.DatasetSizeSmall {
			reasons = append(reasons, fmt.Sprintf("- Small dataset size (%d rows)", profile.Rows))
		}
		reasons = append(reasons, "- RBF kernel captures non-linear relationships")

	case models.ModelFamilyNeuralNetwork:
		reasons = append(reasons, "Neural Network recommended based on:")
		if profile.Size == models.DatasetSizeLarge {
			reasons = append(reasons, fmt.Sprintf("- Large dataset size (%d rows)", profile.Rows))
		}
		if profile.Features >= 10 {
			reasons = append(reasons, fmt.Sprintf("- Many features (%d)", profile.Features))
		}
		reasons = append(reasons, "- Deep learning can capture complex patterns")
	}

	reasons = append(reasons, fmt.Sprintf("\nRecommendation score: %d", scores[recommended]))

	return strings.Join(reasons, "\n")
}
