package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"fungiscan/internal/apperr"
	"fungiscan/internal/metrics"
	"fungiscan/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// errValueTooLong is what the SQL stores report for an oversized varchar.
var errValueTooLong = errors.New("value too long for type character varying(150)")

type fakeInference struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	block chan struct{}
}

func (f *fakeInference) Analyze(ctx context.Context, image []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type fakeDiagnosisRepo struct {
	mu      sync.Mutex
	records []models.DiagnosisRecord
	seq     uint
	err     error
}

func (r *fakeDiagnosisRepo) Append(ctx context.Context, record *models.DiagnosisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if utf8.RuneCountInString(record.Username) > models.MaxUsernameLength {
		return apperr.Store("append diagnosis", errValueTooLong)
	}
	r.seq++
	record.ID = r.seq
	record.RecordID = "rec-" + strconv.Itoa(int(r.seq))
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeDiagnosisRepo) sorted() []models.DiagnosisRecord {
	out := append([]models.DiagnosisRecord(nil), r.records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *fakeDiagnosisRepo) Latest(ctx context.Context) (*models.DiagnosisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	if len(all) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &all[0], nil
}

func (r *fakeDiagnosisRepo) History(ctx context.Context, username string, limit int) ([]models.DiagnosisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.DiagnosisRecord{}
	for _, rec := range r.sorted() {
		if username != "" && rec.Username != username {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *fakeDiagnosisRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.records)), nil
}

type fakeTelemetryRepo struct {
	mu       sync.Mutex
	readings []models.TelemetryReading
	seq      uint
}

func (r *fakeTelemetryRepo) Create(ctx context.Context, reading *models.TelemetryReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	reading.ID = r.seq
	r.readings = append(r.readings, *reading)
	return nil
}

func (r *fakeTelemetryRepo) GetLatest(ctx context.Context, limit int) ([]models.TelemetryReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]models.TelemetryReading{}, r.readings...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTelemetryRepo) DeleteOlderThan(ctx context.Context, cutoff float64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.readings[:0]
	var deleted int64
	for _, reading := range r.readings {
		if reading.Timestamp < cutoff {
			deleted++
			continue
		}
		kept = append(kept, reading)
	}
	r.readings = kept
	return deleted, nil
}

func (r *fakeTelemetryRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.readings)), nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]models.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if utf8.RuneCountInString(user.Username) > models.MaxUsernameLength {
		return apperr.Store("create user", errValueTooLong)
	}
	if _, ok := r.users[user.Username]; ok {
		return apperr.ErrConflict
	}
	user.ID = uint(len(r.users) + 1)
	r.users[user.Username] = *user
	return nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]string
	ttls     map[string]time.Duration
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, token, username string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = username
	r.ttls[token] = ttl
	return nil
}

func (r *fakeSessionRepo) Get(ctx context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username, ok := r.sessions[token]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return username, nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	items    map[string][]byte
	counters map[string]int64
	bumps    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string][]byte{}, counters: map[string]int64{}}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *fakeCache) Counter(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key], nil
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	c.bumps++
	return c.counters[key], nil
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}
