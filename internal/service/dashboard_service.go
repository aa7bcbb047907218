package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"fungiscan/internal/apperr"
	"fungiscan/internal/models"
	"fungiscan/internal/repository"

	"go.uber.org/zap"
)

const (
	SnapshotTelemetryPoints = 20
	snapshotCacheKey        = "dashboard:snapshot"
	// snapshotGenerationKey is bumped after every write. Snapshots are cached
	// per generation, so one built from pre-write data is never read again.
	snapshotGenerationKey = "dashboard:snapshot:gen"
)

// Snapshot is the /api/data payload.
type Snapshot struct {
	Telemetry []models.TelemetryReading `json:"telemetria"`
	Analysis  *models.DiagnosisRecord   `json:"analisis"`
}

type DashboardService interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

type dashboardService struct {
	telemetry TelemetryService
	analysis  AnalysisService
	cache     repository.CacheRepository
	cacheTTL  time.Duration
	log       *zap.Logger
}

func NewDashboardService(
	telemetry TelemetryService,
	analysis AnalysisService,
	cache repository.CacheRepository,
	cacheTTL time.Duration,
	log *zap.Logger,
) DashboardService {
	return &dashboardService{
		telemetry: telemetry,
		analysis:  analysis,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log,
	}
}

func (s *dashboardService) Snapshot(ctx context.Context) (*Snapshot, error) {
	key := ""
	if s.cacheTTL > 0 {
		// Read before the store.
		gen, err := s.cache.Counter(ctx, snapshotGenerationKey)
		if err != nil {
			s.log.Warn("snapshot generation read failed", zap.Error(err))
		} else {
			key = snapshotKey(gen)
		}
	}

	if key != "" {
		var cached Snapshot
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("snapshot cache read failed", zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	readings, err := s.telemetry.Latest(ctx, SnapshotTelemetryPoints)
	if err != nil {
		return nil, err
	}

	latest, err := s.analysis.Latest(ctx)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	snapshot := &Snapshot{Telemetry: readings, Analysis: latest}

	if key != "" {
		if err := s.cache.SetJSON(ctx, key, snapshot, s.cacheTTL); err != nil {
			s.log.Warn("snapshot cache write failed", zap.Error(err))
		}
	}
	return snapshot, nil
}

func snapshotKey(gen int64) string {
	return snapshotCacheKey + ":" + strconv.FormatInt(gen, 10)
}

// invalidateSnapshot moves readers to a new cache generation after a write.
func invalidateSnapshot(ctx context.Context, cache repository.CacheRepository, log *zap.Logger) {
	if _, err := cache.Incr(ctx, snapshotGenerationKey); err != nil {
		log.Warn("snapshot cache invalidation failed", zap.Error(err))
	}
}
