package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"oi-surge-alerts/internal/scheduler"
)

// State is the process-wide ban status. Only the Guard mutates it.
type State struct {
	Banned bool
	Until  time.Time
}

// Active reports whether requests must still be withheld at now.
func (s State) Active(now time.Time) bool {
	return s.Banned && now.Before(s.Until)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options tune retry and ban behaviour.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	DefaultBan  time.Duration
	Now         func() time.Time
	Sleep       SleepFunc
}

// Guard wraps provider calls with retry/backoff and rate-limit ban handling.
// It is not safe for concurrent use; the orchestrator owns it.
type Guard struct {
	opts   Options
	state  State
	logger zerolog.Logger
}

// New constructs a Guard, filling unset options with defaults.
func New(opts Options, logger zerolog.Logger) *Guard {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.DefaultBan <= 0 {
		opts.DefaultBan = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = scheduler.Sleep
	}
	return &Guard{opts: opts, logger: logger.With().Str("component", "ban_guard").Logger()}
}

// State returns a snapshot of the ban status.
func (g *Guard) State() State {
	return g.state
}

// Clear lifts the ban.
func (g *Guard) Clear() {
	if g.state.Banned {
		g.logger.Info().Time("banned_until", g.state.Until).Msg("ban state cleared")
	}
	g.state = State{}
}

// Do runs fn under the guard. It returns nil on success, a *BanError on a ban
// (detected now or still active), an ErrInvalidInstrument-wrapped error for
// per-instrument rejections, or ErrRetriesExhausted once every attempt failed.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if now := g.opts.Now(); g.state.Active(now) {
		return &BanError{Until: g.state.Until, Cached: true}
	}

	var lastErr error
	for attempt := 0; attempt < g.opts.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if g.state.Banned {
				g.Clear()
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		k, resp := classify(err)
		switch k {
		case kindBan:
			return g.ban(op, resp, err)
		case kindInvalid:
			if errors.Is(err, ErrInvalidInstrument) {
				return err
			}
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidInstrument, err)
		}

		lastErr = err
		if attempt == g.opts.MaxAttempts-1 {
			break
		}

		delay := g.opts.BaseDelay * time.Duration(1<<attempt)
		g.logger.Warn().Err(err).Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("transient provider failure, retrying")
		if err := g.opts.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %w: %w", op, ErrRetriesExhausted, lastErr)
}

func (g *Guard) ban(op string, resp ResponseError, cause error) error {
	now := g.opts.Now()
	until := now.Add(g.opts.DefaultBan)
	if resp != nil {
		if parsed, ok := parseBannedUntil(resp.Body()); ok {
			until = parsed
		}
	}

	g.state = State{Banned: true, Until: until}
	g.logger.Error().Err(cause).Str("op", op).
		Time("banned_until", until).
		Msg("provider rate-limit ban detected")
	return &BanError{Until: until, Cause: cause}
}

// Call is the typed form of Guard.Do.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, op, func(ctx context.Context) error {
		res, err := fn(ctx)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}
