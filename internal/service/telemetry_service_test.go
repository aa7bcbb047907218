package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fungiscan/internal/apperr"
	"fungiscan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTelemetryFixture() (*telemetryService, *fakeTelemetryRepo, *fakeCache) {
	repo := &fakeTelemetryRepo{}
	cache := newFakeCache()
	svc := NewTelemetryService(repo, cache, newTestMetrics(), zap.NewNop()).(*telemetryService)
	return svc, repo, cache
}

func TestIngest_ReplacesClientTimestamp(t *testing.T) {
	svc, repo, cache := newTelemetryFixture()
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	reading, err := svc.Ingest(context.Background(), map[string]interface{}{
		"temperatura": 22.5,
		"humedad":     61.0,
		"timestamp":   1.0,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(1700000000), reading.Timestamp)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(repo.readings[0].Payload, &payload))
	assert.NotContains(t, payload, "timestamp")
	assert.Equal(t, 22.5, payload["temperatura"])
	assert.Equal(t, 1, cache.bumps)
}

func TestIngest_AcceptsArbitraryShape(t *testing.T) {
	svc, _, _ := newTelemetryFixture()

	_, err := svc.Ingest(context.Background(), map[string]interface{}{})
	assert.NoError(t, err)

	_, err = svc.Ingest(context.Background(), map[string]interface{}{"nested": map[string]interface{}{"a": []interface{}{1.0, "x"}}})
	assert.NoError(t, err)
}

func TestIngest_RejectsMissingBody(t *testing.T) {
	svc, repo, _ := newTelemetryFixture()

	_, err := svc.Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, repo.readings)
}

func TestLatest_ReturnsAscendingOrder(t *testing.T) {
	svc, repo, _ := newTelemetryFixture()
	for _, ts := range []float64{3, 1, 2} {
		require.NoError(t, repo.Create(context.Background(), &models.TelemetryReading{Timestamp: ts, Payload: []byte(`{}`)}))
	}

	readings, err := svc.Latest(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{readings[0].Timestamp, readings[1].Timestamp, readings[2].Timestamp})
}

func TestLatest_KeepsNewestWindow(t *testing.T) {
	svc, repo, _ := newTelemetryFixture()
	for ts := 1; ts <= 25; ts++ {
		require.NoError(t, repo.Create(context.Background(), &models.TelemetryReading{Timestamp: float64(ts), Payload: []byte(`{}`)}))
	}

	readings, err := svc.Latest(context.Background(), SnapshotTelemetryPoints)
	require.NoError(t, err)
	require.Len(t, readings, SnapshotTelemetryPoints)
	assert.Equal(t, float64(6), readings[0].Timestamp)
	assert.Equal(t, float64(25), readings[len(readings)-1].Timestamp)
}

func TestPurgeOlderThan(t *testing.T) {
	svc, repo, cache := newTelemetryFixture()
	for _, ts := range []float64{100, 200, 300} {
		require.NoError(t, repo.Create(context.Background(), &models.TelemetryReading{Timestamp: ts, Payload: []byte(`{}`)}))
	}

	deleted, err := svc.PurgeOlderThan(context.Background(), time.Unix(250, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 1, cache.bumps)

	deleted, err = svc.PurgeOlderThan(context.Background(), time.Unix(250, 0))
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 1, cache.bumps)
}
