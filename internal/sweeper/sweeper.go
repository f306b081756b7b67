// Package sweeper reclaims queue turns that nobody claimed. It runs the
// store's expiry sweep on a fixed cadence and pushes turn notifications for
// every entry the sweep promoted.
package sweeper

import (
	"context"
	"log"
	"time"

	"gym-access-backend/config"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/store"
)

// Service drives periodic reservation expiry.
type Service struct {
	cfg        *config.Config
	store      store.Store
	workerPool *notification.WorkerPool
}

// NewService creates the sweeper. The worker pool may be nil when push
// notifications are not configured.
func NewService(cfg *config.Config, s store.Store, workerPool *notification.WorkerPool) *Service {
	return &Service{cfg: cfg, store: s, workerPool: workerPool}
}

// Run starts the sweep loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Sweeper.Enabled {
		log.Println("Sweeper is disabled. Not starting.")
		return
	}
	log.Printf("Starting sweeper: interval=%s timeout=%s batch=%d",
		s.cfg.Sweeper.Interval, s.cfg.Sweeper.Timeout, s.cfg.Sweeper.BatchSize)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Sweeper.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Sweeper.Interval)
		}
	}
}

// SweepOnce performs a single sweep invocation.
func (s *Service) SweepOnce(ctx context.Context) {
	start := time.Now()
	result, err := s.store.SweepExpired(ctx, s.cfg.Sweeper.Timeout, s.cfg.Sweeper.BatchSize)
	if err != nil {
		log.Printf("Sweep failed after expiring %d entries: %v", result.Expired, err)
		return
	}

	if s.workerPool != nil {
		s.workerPool.DispatchPromotions(result.Promoted)
	}

	if result.Expired > 0 || result.Notified > 0 {
		log.Printf("Sweep finished: expired=%d notified=%d elapsed=%s",
			result.Expired, result.Notified, time.Since(start))
	}
}
