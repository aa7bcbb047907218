package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TelemetryPurger deletes readings older than a cutoff.
type TelemetryPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewRetentionWorker deletes telemetry older than retention every interval.
func NewRetentionWorker(purger TelemetryPurger, retention, interval time.Duration, log *zap.Logger) *PeriodicWorker {
	return newRetentionWorker(purger, retention, interval, time.Now, log)
}

func newRetentionWorker(purger TelemetryPurger, retention, interval time.Duration, now func() time.Time, log *zap.Logger) *PeriodicWorker {
	const name = "telemetry-retention"
	taskLog := log.With(zap.String("worker", name))
	return NewPeriodicWorker(name, interval, func(ctx context.Context) error {
		cutoff := now().Add(-retention)
		deleted, err := purger.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		if deleted > 0 {
			taskLog.Info("expired telemetry purged",
				zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
		}
		return nil
	}, log)
}
