package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// HistoryEntry is one persisted model run
type HistoryEntry struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	DatasetName  string          `json:"dataset_name"`
	ModelType    string          `json:"model"`
	TargetColumn string          `json:"target_column"`
	Metrics      json.RawMessage `json:"metrics"`
	Metric       *float64        `json:"metric"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SaveResultRequest is the form submitted to save a model run
type SaveResultRequest struct {
	Username     string
	DatasetName  string
	ModelType    string
	TargetColumn string
	Metrics      string // JSON object of metric name to value
}

// Validate checks required fields and that Metrics is a JSON object
func (r *SaveResultRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if strings.TrimSpace(r.DatasetName) == "" {
		return fmt.Errorf("dataset_name is required")
	}
	if strings.TrimSpace(r.ModelType) == "" {
		return fmt.Errorf("model_type is required")
	}
	if strings.TrimSpace(r.TargetColumn) == "" {
		return fmt.Errorf("target_column is required")
	}
	if _, err := r.DecodeMetrics(); err != nil {
		return err
	}
	return nil
}

// DecodeMetrics parses the Metrics field
func (r *SaveResultRequest) DecodeMetrics() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(r.Metrics), &m); err != nil {
		return nil, MalformedJSONError("metrics", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
