package application

import (
	"context"
	"log"
	"time"
)

// DefaultInterval is the evaluation period when none is configured.
const DefaultInterval = 10 * time.Second

// Scheduler drives the evaluator on a fixed-delay timer: the next
// tick is armed only after the previous one finishes, so slow ticks
// delay the schedule instead of overlapping.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(service *Service, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{service: service, interval: interval, logger: logger}
}

// Start runs the evaluation loop until ctx is cancelled. Tick errors
// are already logged by the evaluator; the loop keeps going.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.service == nil {
		return
	}
	s.logger.Printf("evaluator: scheduler started interval=%s", s.interval)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("evaluator: scheduler stopped")
			return
		case <-timer.C:
			_ = s.service.Tick(ctx)
			timer.Reset(s.interval)
		}
	}
}
