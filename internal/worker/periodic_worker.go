package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicWorker runs a task immediately on Start and then on every tick.
type PeriodicWorker struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	task     Task
	log      *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

func NewPeriodicWorker(name string, interval time.Duration, task Task, log *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		timeout:  30 * time.Second,
		task:     task,
		log:      log.With(zap.String("worker", name)),
	}
}

func (w *PeriodicWorker) Name() string {
	return w.name
}

func (w *PeriodicWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopChan != nil {
		return
	}
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	go w.run(w.stopChan, w.done)
}

func (w *PeriodicWorker) Stop() {
	w.mu.Lock()
	stop, done := w.stopChan, w.done
	w.stopChan, w.done = nil, nil
	w.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (w *PeriodicWorker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(stop)
	for {
		select {
		case <-ticker.C:
			w.runOnce(stop)
		case <-stop:
			return
		}
	}
}

func (w *PeriodicWorker) runOnce(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	// Abort a long run as soon as the worker is stopped.
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := w.task(ctx); err != nil {
		w.log.Error("worker run failed", zap.Error(err))
	}
}
