package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Worker interface {
	Name() string
	Start()
	Stop()
}

type Scheduler struct {
	workers     []Worker
	stopTimeout time.Duration
	started     bool
	stopped     bool
	mu          sync.RWMutex
	log         *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{
		workers:     make([]Worker, 0),
		stopTimeout: 10 * time.Second,
		log:         log,
	}
}

func (s *Scheduler) AddWorker(worker Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.started {
		return
	}
	s.started = true

	s.log.Info("starting scheduler", zap.Int("workers", len(s.workers)))
	for _, w := range s.workers {
		w.Start()
		s.log.Info("worker started", zap.String("worker", w.Name()))
	}
}

// Stop stops every worker and waits for them, up to the stop timeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	workers := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	s.log.Info("stopping scheduler")

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped gracefully")
	case <-time.After(s.stopTimeout):
		s.log.Warn("scheduler stop timeout", zap.Duration("timeout", s.stopTimeout))
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started && !s.stopped
}
