package repository

import (
	"context"
	"errors"

	"fungiscan/internal/apperr"
	"fungiscan/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// DiagnosisRepository is create-only: there is no update or delete path for records.
type DiagnosisRepository interface {
	Append(ctx context.Context, record *models.DiagnosisRecord) error
	Latest(ctx context.Context) (*models.DiagnosisRecord, error)
	History(ctx context.Context, username string, limit int) ([]models.DiagnosisRecord, error)
	Count(ctx context.Context) (int64, error)
}

type diagnosisRepository struct {
	db *gorm.DB
}

func NewDiagnosisRepository(db *gorm.DB) DiagnosisRepository {
	return &diagnosisRepository{db: db}
}

// newestFirst orders by timestamp and breaks same-second ties by insertion order.
const newestFirst = "timestamp DESC, id DESC"

func (r *diagnosisRepository) Append(ctx context.Context, record *models.DiagnosisRecord) error {
	record.RecordID = uuid.NewString()
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return apperr.Store("append diagnosis", err)
	}
	return nil
}

func (r *diagnosisRepository) Latest(ctx context.Context) (*models.DiagnosisRecord, error) {
	var record models.DiagnosisRecord
	err := r.db.WithContext(ctx).
		Order(newestFirst).
		Take(&record).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Store("latest diagnosis", err)
	}
	return &record, nil
}

func (r *diagnosisRepository) History(ctx context.Context, username string, limit int) ([]models.DiagnosisRecord, error) {
	limit = ClampLimit(limit)

	query := r.db.WithContext(ctx)
	if username != "" {
		query = query.Where("username = ?", username)
	}

	records := make([]models.DiagnosisRecord, 0, limit)
	err := query.
		Order(newestFirst).
		Limit(limit).
		Find(&records).
		Error
	if err != nil {
		return nil, apperr.Store("diagnosis history", err)
	}
	return records, nil
}

func (r *diagnosisRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DiagnosisRecord{}).
		Count(&count).
		Error
	if err != nil {
		return 0, apperr.Store("count diagnoses", err)
	}
	return count, nil
}

// ClampLimit maps out-of-range history limits to the default page size.
func ClampLimit(limit int) int {
	if limit < 1 || limit > MaxHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}
