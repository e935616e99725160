package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"oi-surge-alerts/internal/alerting"
	"oi-surge-alerts/internal/exchange"
	"oi-surge-alerts/internal/guard"
	"oi-surge-alerts/internal/instrument"
	"oi-surge-alerts/internal/scheduler"
)

// Options pace the monitoring loop.
type Options struct {
	Name          string
	FetchPause    time.Duration
	MinCycle      time.Duration
	PerInstrument time.Duration
	CycleOverhead time.Duration
	InitBackoff   time.Duration
	BanMargin     time.Duration
}

// Deps are the collaborators of the Service. Heartbeat and Scheduler are optional.
type Deps struct {
	Market    exchange.MarketSource
	Registry  *instrument.Registry
	Guard     *guard.Guard
	Evaluator *alerting.Evaluator
	Notifier  alerting.Notifier
	Heartbeat *scheduler.Heartbeat
	Scheduler *scheduler.Scheduler
	Now       func() time.Time
	Sleep     guard.SleepFunc
}

// Service orchestrates discovery, fetching, evaluation and pacing. All state
// it reaches is mutated from the goroutine calling Run.
type Service struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger

	needsRefresh bool
	banAnnounced time.Time
}

// New constructs the monitoring service.
func New(deps Deps, opts Options, logger zerolog.Logger) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = scheduler.Sleep
	}
	if opts.Name == "" {
		opts.Name = "oisurge"
	}
	if opts.MinCycle <= 0 {
		opts.MinCycle = 60 * time.Second
	}
	if opts.InitBackoff <= 0 {
		opts.InitBackoff = 60 * time.Second
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// Run performs startup discovery and then loops until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.deps.Scheduler.Run(ctx, s.RunCycle)
}

// Start announces the boot and retries discovery at a fixed interval until it succeeds.
func (s *Service) Start(ctx context.Context) error {
	s.announce(ctx, fmt.Sprintf("%s starting", s.opts.Name))

	for attempt := 1; ; attempt++ {
		err := s.deps.Registry.Refresh(ctx)
		if err == nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).
			Dur("backoff", s.opts.InitBackoff).
			Msg("instrument discovery failed, retrying")
		if err := s.deps.Sleep(ctx, s.opts.InitBackoff); err != nil {
			return err
		}
	}

	count := s.deps.Registry.Len()
	s.logger.Info().Int("instruments", count).Msg("monitoring started")
	s.announce(ctx, fmt.Sprintf("Monitoring %d instruments", count))
	return nil
}

// RunCycle executes one steady-state cycle and returns the delay before the next.
func (s *Service) RunCycle(ctx context.Context) (time.Duration, error) {
	now := s.deps.Now()
	state := s.deps.Guard.State()

	if state.Active(now) {
		wait := state.Until.Sub(now) + s.opts.BanMargin
		if !s.banAnnounced.Equal(state.Until) {
			s.banAnnounced = state.Until
			s.announce(ctx, fmt.Sprintf("Rate-limit ban active until %s, pausing requests", state.Until.UTC().Format(time.RFC3339)))
		}
		s.logger.Warn().Time("banned_until", state.Until).Dur("wait", wait).Msg("waiting for ban to expire")
		return wait, nil
	}

	if state.Banned {
		s.deps.Guard.Clear()
		s.needsRefresh = true
	}
	if s.needsRefresh {
		if err := s.deps.Registry.Refresh(ctx); err != nil {
			if guard.IsBan(err) {
				return 0, nil
			}
			return s.opts.InitBackoff, fmt.Errorf("refresh after ban: %w", err)
		}
		s.needsRefresh = false
		s.announce(ctx, fmt.Sprintf("Ban lifted, monitoring %d instruments", s.deps.Registry.Len()))
	}

	if err := s.fetch(ctx); err != nil && !guard.IsBan(err) {
		return 0, err
	}

	s.evaluate(ctx)
	s.heartbeat(ctx)

	if s.deps.Guard.State().Active(s.deps.Now()) {
		return 0, nil
	}
	return s.NextDelay(), nil
}

// fetch updates every series. A ban stops the phase; other failures only skip
// the affected step or instrument.
func (s *Service) fetch(ctx context.Context) error {
	if err := s.fetchSpot(ctx); err != nil {
		return err
	}
	return s.fetchOpenInterest(ctx)
}

func (s *Service) fetchSpot(ctx context.Context) error {
	tickers, err := guard.Call(ctx, s.deps.Guard, "ticker_24hr", s.deps.Market.Tickers)
	if err != nil {
		if guard.IsBan(err) || ctx.Err() != nil {
			return err
		}
		s.logger.Error().Err(err).Msg("price fetch failed, skipping this cycle")
		return nil
	}

	at := s.deps.Now()
	updated := 0
	for _, t := range tickers {
		h, ok := s.deps.Registry.Lookup(t.Symbol)
		if !ok {
			continue
		}
		h.Spot.Append(at, t.LastPrice)
		updated++
	}
	s.logger.Debug().Int("updated", updated).Int("tickers", len(tickers)).Msg("prices recorded")
	return nil
}

func (s *Service) fetchOpenInterest(ctx context.Context) error {
	fetched, skipped := 0, 0
	for i, symbol := range s.deps.Registry.Symbols() {
		if i > 0 && s.opts.FetchPause > 0 {
			if err := s.deps.Sleep(ctx, s.opts.FetchPause); err != nil {
				return err
			}
		}

		oi, err := guard.Call(ctx, s.deps.Guard, "open_interest", func(ctx context.Context) (exchange.OpenInterest, error) {
			return s.deps.Market.OpenInterest(ctx, symbol)
		})
		switch {
		case err == nil:
			if h, ok := s.deps.Registry.Lookup(symbol); ok {
				h.OpenInterest.Append(s.deps.Now(), oi.Value)
				fetched++
			}
		case guard.IsBan(err):
			s.logger.Error().Err(err).Str("symbol", symbol).Int("fetched", fetched).Msg("ban detected, aborting open interest fetch")
			return err
		case guard.IsInvalidInstrument(err):
			s.deps.Registry.Remove(symbol)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			skipped++
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("open interest fetch failed, skipping instrument")
		}
	}
	s.logger.Debug().Int("fetched", fetched).Int("skipped", skipped).Msg("open interest recorded")
	return nil
}

func (s *Service) evaluate(ctx context.Context) {
	now := s.deps.Now()
	sent, failed := 0, 0
	for _, symbol := range s.deps.Registry.Symbols() {
		h, ok := s.deps.Registry.Lookup(symbol)
		if !ok {
			continue
		}
		outcome, _ := s.deps.Evaluator.Evaluate(ctx, now, h)
		switch outcome {
		case alerting.OutcomeSent:
			sent++
		case alerting.OutcomeDispatchFailed:
			failed++
		}
	}
	if sent > 0 || failed > 0 {
		s.logger.Info().Int("sent", sent).Int("failed", failed).Msg("alerts evaluated")
	}
}

func (s *Service) heartbeat(ctx context.Context) {
	if !s.deps.Heartbeat.Due() {
		return
	}
	status := "no ban"
	if st := s.deps.Guard.State(); st.Banned {
		status = "banned until " + st.Until.UTC().Format(time.RFC3339)
	}
	s.announce(ctx, fmt.Sprintf("%s heartbeat: %d instruments, %d alerts sent, %s",
		s.opts.Name, s.deps.Registry.Len(), s.deps.Evaluator.Sent(), status))
}

// NextDelay is the pause after a cycle: proportional to the monitored set,
// never below the minimum cycle.
func (s *Service) NextDelay() time.Duration {
	delay := time.Duration(s.deps.Registry.Len())*s.opts.PerInstrument + s.opts.CycleOverhead
	if delay < s.opts.MinCycle {
		return s.opts.MinCycle
	}
	return delay
}

func (s *Service) announce(ctx context.Context, text string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Announce(ctx, text); err != nil {
		s.logger.Error().Err(err).Str("text", text).Msg("failed to send announcement")
	}
}
