package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/metadatastore"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// Service saves and lists model runs per user
type Service struct {
	store metadatastore.Store
	log   *zap.Logger
}

// NewService creates a new history service
func NewService(store metadatastore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Save validates and stores one model run together with its headline metric
func (s *Service) Save(ctx context.Context, req *models.SaveResultRequest) (*models.HistoryEntry, error) {
	if err := req.Validate(); err != nil {
		if models.ErrorCode(err) == models.EMalformedJSON {
			return nil, err
		}
		return nil, &models.Error{Code: models.EInvalid, Msg: err.Error(), Err: err}
	}
	metrics, err := req.DecodeMetrics()
	if err != nil {
		return nil, err
	}

	entry := &models.HistoryEntry{
		Username:     req.Username,
		DatasetName:  req.DatasetName,
		ModelType:    req.ModelType,
		TargetColumn: req.TargetColumn,
		Metrics:      json.RawMessage(strings.TrimSpace(req.Metrics)),
		Metric:       Headline(metrics),
	}
	if err := s.store.SaveModelResult(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Info("Model result saved",
		zap.String("username", entry.Username),
		zap.String("model_type", entry.ModelType),
		zap.Int64("id", entry.ID))
	return entry, nil
}

// List returns a user's saved runs, newest first
func (s *Service) List(ctx context.Context, username string) ([]*models.HistoryEntry, error) {
	entries, err := s.store.ListModelResults(ctx, username)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	return entries, nil
}

// Clear deletes all of a user's saved runs
func (s *Service) Clear(ctx context.Context, username string) (int64, error) {
	n, err := s.store.ClearModelResults(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history for %s: %w", username, err)
	}
	s.log.Info("Model history cleared", zap.String("username", username), zap.Int64("removed", n))
	return n, nil
}

// Headline picks the single metric that summarises a run: accuracy, then the
// r2 score, then the reciprocal of a positive mse. It returns nil when none
// of these is present.
func Headline(metrics map[string]any) *float64 {
	if v, ok := number(metrics["accuracy"]); ok {
		return &v
	}
	for _, key := range []string{"r2_score", "r2"} {
		if v, ok := number(metrics[key]); ok {
			return &v
		}
	}
	if v, ok := number(metrics["mse"]); ok && v > 0 {
		inv := 1 / v
		return &inv
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
