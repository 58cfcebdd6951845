package mlmodel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/dataset"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// TrainRequest is one uploaded dataset and the model to run on it
type TrainRequest struct {
	Family       models.ModelFamily
	Filename     string
	Data         []byte
	TargetColumn string
	Metrics      []string
	Network      *models.NetworkConfig
}

// Service loads datasets and dispatches them to registered runners
type Service struct {
	registry             *Registry
	recommendationEngine *RecommendationEngine
	logger               *zap.Logger
}

// NewService creates a new model service
func NewService(registry *Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:             registry,
		recommendationEngine: NewRecommendationEngine(),
		logger:               logger,
	}
}

// Families lists the model families the service can run
func (s *Service) Families() []models.ModelFamily {
	return s.registry.Families()
}

// Train loads the uploaded dataset and runs the requested model family on it
func (s *Service) Train(ctx context.Context, req *TrainRequest) (*models.ModelResult, error) {
	runner, err := s.registry.Get(req.Family)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("model_family", string(req.Family)),
		zap.String("dataset", req.Filename),
		zap.String("target_column", req.TargetColumn),
	)

	start := time.Now()
	table, err := dataset.Load(req.Data, req.Filename)
	if err != nil {
		log.Info("Dataset rejected", zap.Error(err))
		return nil, err
	}
	log.Debug("Dataset loaded",
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", len(table.Columns)),
		zap.Duration("elapsed", time.Since(start)))

	result, err := runner.Run(ctx, &RunRequest{
		Table:        table,
		TargetColumn: req.TargetColumn,
		Metrics:      req.Metrics,
		Network:      req.Network,
	})
	if err == nil {
		err = checkFinite(result)
	}
	if err != nil {
		log.Info("Model run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	log.Info("Model run completed",
		zap.String("model_type", result.ModelType),
		zap.String("problem_type", string(result.ProblemType)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Recommend profiles the uploaded dataset and suggests a model family
func (s *Service) Recommend(ctx context.Context, filename string, data []byte, target string) (*models.ModelRecommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := dataset.Load(data, filename)
	if err != nil {
		return nil, err
	}
	profile, err := ProfileDataset(table, target)
	if err != nil {
		return nil, err
	}

	recommendation, err := s.recommendationEngine.RecommendModelFamily(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to recommend model family: %w", err)
	}

	s.logger.Debug("Model family recommended",
		zap.String("dataset", filename),
		zap.String("model_family", string(recommendation.RecommendedFamily)),
		zap.Int("score", recommendation.Score))
	return recommendation, nil
}
