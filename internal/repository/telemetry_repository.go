package repository

import (
	"context"

	"fungiscan/internal/apperr"
	"fungiscan/internal/models"

	"gorm.io/gorm"
)

type TelemetryRepository interface {
	Create(ctx context.Context, reading *models.TelemetryReading) error
	GetLatest(ctx context.Context, limit int) ([]models.TelemetryReading, error)
	DeleteOlderThan(ctx context.Context, cutoff float64) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type telemetryRepository struct {
	db *gorm.DB
}

func NewTelemetryRepository(db *gorm.DB) TelemetryRepository {
	return &telemetryRepository{db: db}
}

func (r *telemetryRepository) Create(ctx context.Context, reading *models.TelemetryReading) error {
	if err := r.db.WithContext(ctx).Create(reading).Error; err != nil {
		return apperr.Store("create telemetry", err)
	}
	return nil
}

// GetLatest returns the newest readings first.
func (r *telemetryRepository) GetLatest(ctx context.Context, limit int) ([]models.TelemetryReading, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	readings := make([]models.TelemetryReading, 0, limit)
	err := r.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&readings).
		Error
	if err != nil {
		return nil, apperr.Store("latest telemetry", err)
	}
	return readings, nil
}

func (r *telemetryRepository) DeleteOlderThan(ctx context.Context, cutoff float64) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&models.TelemetryReading{})
	if result.Error != nil {
		return 0, apperr.Store("purge telemetry", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *telemetryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TelemetryReading{}).
		Count(&count).
		Error
	if err != nil {
		return 0, apperr.Store("count telemetry", err)
	}
	return count, nil
}
