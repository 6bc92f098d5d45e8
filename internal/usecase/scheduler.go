package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/be-green/grab-cafe/internal/domain"
	"github.com/be-green/grab-cafe/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start and stop recurring cycles.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided driver. Cycle
// failures are logged, never fatal; a missed cycle is retried by the
// next tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := s.pipeline.RunCycle(ctx); err != nil {
			switch {
			case errors.Is(err, domain.ErrFetchFailed):
				s.log("cycle skipped, listing unreachable", "error", err)
			case errors.Is(err, domain.ErrStorageFailed):
				s.log("cycle aborted, storage error", "error", err)
			case errors.Is(err, domain.ErrDeliveryFailed):
				s.log("delivery batch interrupted", "error", err)
			default:
				s.log("cycle failed", "error", err)
			}
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
