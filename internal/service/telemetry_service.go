package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fungiscan/internal/apperr"
	"fungiscan/internal/metrics"
	"fungiscan/internal/models"
	"fungiscan/internal/repository"

	"go.uber.org/zap"
)

type TelemetryService interface {
	Ingest(ctx context.Context, payload map[string]interface{}) (*models.TelemetryReading, error)
	// Latest returns the newest n readings in ascending time order, ready for charting.
	Latest(ctx context.Context, n int) ([]models.TelemetryReading, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type telemetryService struct {
	repo    repository.TelemetryRepository
	cache   repository.CacheRepository
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewTelemetryService(
	repo repository.TelemetryRepository,
	cache repository.CacheRepository,
	m *metrics.Metrics,
	log *zap.Logger,
) TelemetryService {
	return &telemetryService{
		repo:    repo,
		cache:   cache,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Ingest stores the payload as sent. Its shape is not validated; a client
// supplied timestamp is replaced by the server's.
func (s *telemetryService) Ingest(ctx context.Context, payload map[string]interface{}) (*models.TelemetryReading, error) {
	if payload == nil {
		return nil, apperr.Validation("telemetry body must be a JSON object")
	}

	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k != "timestamp" {
			fields[k] = v
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, apperr.Validation("telemetry payload: %v", err)
	}

	reading := &models.TelemetryReading{
		Timestamp: models.EpochSeconds(s.now()),
		Payload:   raw,
	}
	if err := s.repo.Create(ctx, reading); err != nil {
		return nil, err
	}

	s.metrics.TelemetryStored()
	invalidateSnapshot(ctx, s.cache, s.log)
	return reading, nil
}

func (s *telemetryService) Latest(ctx context.Context, n int) ([]models.TelemetryReading, error) {
	readings, err := s.repo.GetLatest(ctx, n)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

func (s *telemetryService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(ctx, models.EpochSeconds(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge telemetry: %w", err)
	}
	if deleted > 0 {
		invalidateSnapshot(ctx, s.cache, s.log)
	}
	return deleted, nil
}

func (s *telemetryService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
