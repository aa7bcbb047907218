package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fungiscan/internal/apperr"
	"fungiscan/internal/clients"
	"fungiscan/internal/diagnosis"
	"fungiscan/internal/metrics"
	"fungiscan/internal/models"
	"fungiscan/internal/repository"
	"fungiscan/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultUsername is attributed to uploads that carry no user.
const DefaultUsername = "anonimo"

type AnalysisService interface {
	Analyze(ctx context.Context, username string, image []byte) (*models.DiagnosisRecord, error)
	Latest(ctx context.Context) (*models.DiagnosisRecord, error)
	History(ctx context.Context, username string, limit int) ([]models.DiagnosisRecord, error)
	Export(ctx context.Context, username, format string) (*ExportFile, error)
	Count(ctx context.Context) (int64, error)
}

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type analysisService struct {
	client  clients.InferenceClient
	repo    repository.DiagnosisRepository
	cache   repository.CacheRepository
	metrics *metrics.Metrics
	slots   *semaphore.Weighted
	log     *zap.Logger
	now     func() time.Time
}

func NewAnalysisService(
	client clients.InferenceClient,
	repo repository.DiagnosisRepository,
	cache repository.CacheRepository,
	m *metrics.Metrics,
	maxInFlight int64,
	log *zap.Logger,
) AnalysisService {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &analysisService{
		client:  client,
		repo:    repo,
		cache:   cache,
		metrics: m,
		slots:   semaphore.NewWeighted(maxInFlight),
		log:     log,
		now:     time.Now,
	}
}

func (s *analysisService) Analyze(ctx context.Context, username string, image []byte) (*models.DiagnosisRecord, error) {
	receivedAt := s.now()

	username = strings.TrimSpace(username)
	if username == "" {
		username = DefaultUsername
	}
	if err := validateUsername(username); err != nil {
		s.metrics.ObserveAnalysis(metrics.OutcomeRejected)
		return nil, err
	}
	if len(image) == 0 {
		s.metrics.ObserveAnalysis(metrics.OutcomeRejected)
		return nil, apperr.Validation("image is required")
	}

	raw, err := s.infer(ctx, image)
	if err != nil {
		return nil, err
	}

	result := diagnosis.Normalize(raw)
	if !result.Structured {
		s.log.Warn("model response was not a JSON object, keeping raw text",
			zap.String("username", username), zap.Int("length", len(raw)))
	}

	record := &models.DiagnosisRecord{
		Timestamp:    models.EpochSeconds(receivedAt),
		Username:     username,
		Detected:     result.Detected,
		Reasoning:    result.Reasoning,
		FungusType:   result.FungusType,
		ReadableDate: receivedAt.Local().Format(models.ReadableDateLayout),
	}

	if err := s.repo.Append(ctx, record); err != nil {
		s.metrics.ObserveAnalysis(metrics.OutcomeStoreError)
		return nil, err
	}

	if result.Structured {
		s.metrics.ObserveAnalysis(metrics.OutcomeStructured)
	} else {
		s.metrics.ObserveAnalysis(metrics.OutcomeFallback)
	}
	invalidateSnapshot(ctx, s.cache, s.log)

	s.log.Info("diagnosis stored",
		zap.String("id", record.RecordID),
		zap.String("username", username),
		zap.Bool("detected", record.Detected))
	return record, nil
}

// infer holds one inference slot for the duration of the upstream call.
func (s *analysisService) infer(ctx context.Context, image []byte) (string, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.metrics.ObserveAnalysis(metrics.OutcomeRejected)
		return "", fmt.Errorf("%w: %v", apperr.ErrBusy, err)
	}
	defer s.slots.Release(1)

	s.metrics.AnalysisStarted()
	defer s.metrics.AnalysisFinished()

	start := time.Now()
	raw, err := s.client.Analyze(ctx, image)
	s.metrics.ObserveInferenceLatency(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ObserveAnalysis(outcomeOf(err))
		s.log.Error("inference failed", zap.Error(err))
		return "", err
	}
	return raw, nil
}

// validateUsername rejects names the username columns cannot hold.
func validateUsername(username string) error {
	if utf8.RuneCountInString(username) > models.MaxUsernameLength {
		return apperr.Validation("username must be at most %d characters", models.MaxUsernameLength)
	}
	return nil
}

func outcomeOf(err error) string {
	var upstream *apperr.UpstreamError
	var transport *apperr.TransportError
	switch {
	case errors.As(err, &upstream):
		return metrics.OutcomeUpstreamError
	case errors.As(err, &transport), errors.Is(err, apperr.ErrEmptyCompletion):
		return metrics.OutcomeTransport
	default:
		return metrics.OutcomeRejected
	}
}

func (s *analysisService) Latest(ctx context.Context) (*models.DiagnosisRecord, error) {
	return s.repo.Latest(ctx)
}

func (s *analysisService) History(ctx context.Context, username string, limit int) ([]models.DiagnosisRecord, error) {
	return s.repo.History(ctx, strings.TrimSpace(username), limit)
}

func (s *analysisService) Export(ctx context.Context, username, format string) (*ExportFile, error) {
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		return nil, apperr.Validation("unsupported format %q, use 'xlsx' or 'csv'", format)
	}

	records, err := s.History(ctx, username, repository.MaxHistoryLimit)
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format("20060102_150405")
	switch format {
	case "csv":
		data, err := utils.DiagnosisCSV(records)
		if err != nil {
			return nil, fmt.Errorf("render csv: %w", err)
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("diagnosticos_%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	default:
		data, err := utils.DiagnosisWorkbook(records)
		if err != nil {
			return nil, fmt.Errorf("render xlsx: %w", err)
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("diagnosticos_%s.xlsx", stamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}
}

func (s *analysisService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
