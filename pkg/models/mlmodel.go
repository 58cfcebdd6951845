package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ModelFamily identifies a model runner and the endpoint that serves it
type ModelFamily string

const (
	ModelFamilyLinearRegression   ModelFamily = "linear-regression"
	ModelFamilyLogisticRegression ModelFamily = "logistic-regression"
	ModelFamilyDecisionTree       ModelFamily = "decision-trees"
	ModelFamilyRandomForest       ModelFamily = "random-forest"
	ModelFamilyBagging            ModelFamily = "bagging"
	ModelFamilySVM                ModelFamily = "svm"
	ModelFamilyNeuralNetwork      ModelFamily = "deep-neural-network"
)

// ProblemType is either regression or classification
type ProblemType string

const (
	ProblemTypeRegression     ProblemType = "regression"
	ProblemTypeClassification ProblemType = "classification"
)

// Valid reports whether p is a known problem type
func (p ProblemType) Valid() bool {
	return p == ProblemTypeRegression || p == ProblemTypeClassification
}

// Prediction is one (actual, predicted) pair of the held-out split
type Prediction struct {
	Actual    any `json:"actual"`
	Predicted any `json:"predicted"`
}

// EpochLoss is the mean training loss of one epoch
type EpochLoss struct {
	Epoch int     `json:"epoch"`
	Loss  float64 `json:"loss"`
}

// ModelResult is the outcome of one model run
type ModelResult struct {
	ModelType          string             `json:"model_type"`
	Family             ModelFamily        `json:"-"`
	ProblemType        ProblemType        `json:"problem_type,omitempty"`
	Metrics            map[string]any     `json:"metrics"`
	Coefficients       map[string]float64 `json:"coefficients,omitempty"`
	Intercept          *float64           `json:"intercept,omitempty"`
	FeatureImportances map[string]float64 `json:"feature_importances,omitempty"`
	Parameters         map[string]any     `json:"parameters,omitempty"`
	ConfigUsed         *NetworkConfig     `json:"config_used,omitempty"`
	TrainingLoss       []EpochLoss        `json:"training_loss,omitempty"`
	PredictionsPreview []Prediction       `json:"predictions_preview"`
}

// Activation is the closed set of hidden-layer activations
type Activation string

const (
	ActivationIdentity Activation = "identity"
	ActivationReLU     Activation = "relu"
	ActivationSigmoid  Activation = "sigmoid"
	ActivationTanh     Activation = "tanh"
)

// ParseActivation maps a client-supplied name onto an Activation.
// An empty name selects ReLU.
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "relu":
		return ActivationReLU, nil
	case "identity", "linear", "none":
		return ActivationIdentity, nil
	case "sigmoid":
		return ActivationSigmoid, nil
	case "tanh":
		return ActivationTanh, nil
	}
	return "", fmt.Errorf("unknown activation %q (expected relu, sigmoid, tanh or identity)", name)
}

// UnmarshalJSON restricts activations to the closed set
func (a *Activation) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseActivation(name)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// LayerSpec is one hidden layer of a feed-forward network
type LayerSpec struct {
	Units      int        `json:"units" yaml:"units"`
	Activation Activation `json:"activation" yaml:"activation"`
}

// NetworkConfig holds the client-supplied network shape and optimiser settings
type NetworkConfig struct {
	Layers       []LayerSpec `json:"layers" yaml:"layers"`
	LearningRate float64     `json:"learning_rate" yaml:"learning_rate"`
	Epochs       int         `json:"epochs" yaml:"epochs"`
	BatchSize    int         `json:"batch_size" yaml:"batch_size"`
	ProblemType  ProblemType `json:"problem_type" yaml:"problem_type"`
}

// DefaultNetworkConfig returns the configuration used for omitted fields
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Layers:       []LayerSpec{{Units: 32, Activation: ActivationReLU}},
		LearningRate: 0.001,
		Epochs:       50,
		BatchSize:    16,
		ProblemType:  ProblemTypeRegression,
	}
}

// WithDefaults fills zero-valued fields from DefaultNetworkConfig
func (c NetworkConfig) WithDefaults() NetworkConfig {
	def := DefaultNetworkConfig()
	if len(c.Layers) == 0 {
		c.Layers = def.Layers
	}
	for i := range c.Layers {
		if c.Layers[i].Activation == "" {
			c.Layers[i].Activation = ActivationReLU
		}
	}
	if c.LearningRate == 0 {
		c.LearningRate = def.LearningRate
	}
	if c.Epochs == 0 {
		c.Epochs = def.Epochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.ProblemType == "" {
		c.ProblemType = def.ProblemType
	}
	return c
}

// Validate checks the network configuration
func (c NetworkConfig) Validate() error {
	if len(c.Layers) == 0 {
		return fmt.Errorf("at least one layer is required")
	}
	for i, l := range c.Layers {
		if l.Units <= 0 {
			return fmt.Errorf("layer %d: units must be positive", i)
		}
		if _, err := ParseActivation(string(l.Activation)); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if !c.ProblemType.Valid() {
		return fmt.Errorf("problem_type must be regression or classification, got %q", c.ProblemType)
	}
	return nil
}

// NetworkRequest is the JSON document carried in the request_data form field
type NetworkRequest struct {
	TargetColumn string          `json:"target_column"`
	ModelConfig  *NetworkConfig  `json:"model_config"`
	Metrics      json.RawMessage `json:"metrics,omitempty"`
}

// Validate validates the network request
func (r *NetworkRequest) Validate() error {
	if strings.TrimSpace(r.TargetColumn) == "" {
		return fmt.Errorf("target_column is required")
	}
	return nil
}

// DatasetSize buckets a dataset by row count
type DatasetSize string

const (
	DatasetSizeSmall  DatasetSize = "small"
	DatasetSizeMedium DatasetSize = "medium"
	DatasetSizeLarge  DatasetSize = "large"
)

// DatasetProfile summarises an uploaded dataset for model recommendation
type DatasetProfile struct {
	Rows             int         `json:"rows"`
	Features         int         `json:"features"`
	NumericRatio     float64     `json:"numerical_ratio"`
	CategoricalRatio float64     `json:"categorical_ratio"`
	TargetNumeric    bool        `json:"target_numeric"`
	TargetDistinct   int         `json:"target_distinct"`
	Size             DatasetSize `json:"size"`
	ProblemType      ProblemType `json:"problem_type"`
}

// ModelRecommendation is the suggested model family for a dataset
type ModelRecommendation struct {
	RecommendedFamily ModelFamily         `json:"recommended_family"`
	Score             int                 `json:"score"`
	Reasoning         string              `json:"reasoning"`
	AllScores         map[ModelFamily]int `json:"all_scores"`
	Profile           *DatasetProfile     `json:"profile"`
}
