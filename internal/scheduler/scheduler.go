package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one cycle and returns how long to wait before the next one.
type TickFunc func(ctx context.Context) (time.Duration, error)

// Options tune scheduler behaviour.
type Options struct {
	// Fallback is used as the delay when a tick fails without returning one.
	Fallback time.Duration
	// StartupDelay holds off the first tick.
	StartupDelay time.Duration
}

// Scheduler drives back-to-back cycles with a delay chosen by each cycle.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Fallback <= 0 {
		panic("scheduler fallback delay must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick and sleeping for the delay it asks for until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if err := Sleep(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	for cycle := 1; ; cycle++ {
		started := time.Now()
		delay, err := tick(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Error().Err(err).Int("cycle", cycle).Msg("tick execution failed")
			if delay <= 0 {
				delay = s.opts.Fallback
			}
		}

		s.logger.Debug().Int("cycle", cycle).
			Dur("took", time.Since(started)).
			Dur("next_in", delay).
			Msg("cycle finished")

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Sleep blocks for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
