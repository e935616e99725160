package alerting

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"oi-surge-alerts/internal/instrument"
	"oi-surge-alerts/internal/rating"
	"oi-surge-alerts/internal/series"
)

// DefaultHorizons are the lookback windows every instrument is measured over.
var DefaultHorizons = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

// Outcome is the result of one evaluation.
type Outcome int

const (
	OutcomeQuiet Outcome = iota
	OutcomeCooldown
	OutcomeSent
	OutcomeDispatchFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQuiet:
		return "quiet"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeSent:
		return "sent"
	case OutcomeDispatchFailed:
		return "dispatch_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Recorder keeps an audit trail of dispatched alerts.
type Recorder interface {
	RecordAlert(ctx context.Context, note Notification) error
}

// EvaluatorOptions tune the alert state machine.
type EvaluatorOptions struct {
	Horizons          []time.Duration
	Cooldown          time.Duration
	PriceTiers        rating.Table
	OpenInterestTiers rating.Table
}

// Evaluator decides per instrument whether recent moves deserve a notification.
type Evaluator struct {
	opts     EvaluatorOptions
	notifier Notifier
	recorder Recorder
	logger   zerolog.Logger
	sent     int
}

// NewEvaluator constructs an Evaluator. recorder may be nil.
func NewEvaluator(opts EvaluatorOptions, notifier Notifier, recorder Recorder, logger zerolog.Logger) *Evaluator {
	if len(opts.Horizons) == 0 {
		opts.Horizons = DefaultHorizons
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	if len(opts.PriceTiers) == 0 {
		opts.PriceTiers = rating.PriceTiers
	}
	if len(opts.OpenInterestTiers) == 0 {
		opts.OpenInterestTiers = rating.OpenInterestTiers
	}
	return &Evaluator{
		opts:     opts,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With().Str("component", "alert_evaluator").Logger(),
	}
}

// Sent is the number of alerts dispatched successfully since start.
func (e *Evaluator) Sent() int {
	return e.sent
}

// Evaluate runs one cycle of the state machine for h at now. The returned
// error is a dispatch failure; trigger bookkeeping has already been applied
// when it is non-nil.
func (e *Evaluator) Evaluate(ctx context.Context, now time.Time, h *instrument.History) (Outcome, error) {
	if h.InCooldown(now, e.opts.Cooldown) {
		return OutcomeCooldown, nil
	}

	spot := e.changes(h.Spot, now)
	oi := e.changes(h.OpenInterest, now)

	priceHit := triggered(spot, e.opts.PriceTiers)
	oiHit := triggered(oi, e.opts.OpenInterestTiers)
	if !priceHit && !oiHit {
		return OutcomeQuiet, nil
	}

	h.RecordTrigger(now)

	note := Notification{
		ID:         uuid.NewString(),
		Instrument: h.Instrument,
		At:         now,
		FirstAlert: h.FirstAlert,
		Repeats:    len(h.Repeats),
	}
	if last, ok := h.LastRepeat(); ok {
		note.LastRepeat = last
	}
	if priceHit {
		note.Price = dimension(spot, e.opts.PriceTiers)
	}
	if oiHit {
		note.OpenInterest = dimension(oi, e.opts.OpenInterestTiers)
		note.SuspectedShort = diverging(spot, oi)
	}

	if err := e.notifier.Notify(ctx, note); err != nil {
		e.logger.Error().Err(err).Str("alert_id", note.ID).Str("symbol", h.Instrument.Symbol).Msg("failed to dispatch alert")
		return OutcomeDispatchFailed, fmt.Errorf("dispatch alert %s: %w", h.Instrument.Symbol, err)
	}
	h.LastAlert = now
	e.sent++

	if e.recorder != nil {
		if err := e.recorder.RecordAlert(ctx, note); err != nil {
			e.logger.Error().Err(err).Str("alert_id", note.ID).Msg("failed to persist alert record")
		}
	}
	return OutcomeSent, nil
}

func (e *Evaluator) changes(s *series.Series, now time.Time) []HorizonChange {
	out := make([]HorizonChange, len(e.opts.Horizons))
	for i, horizon := range e.opts.Horizons {
		pct, ok := s.ChangeOver(now, horizon)
		out[i] = HorizonChange{Horizon: horizon, Percent: pct, Defined: ok}
	}
	return out
}

func triggered(changes []HorizonChange, table rating.Table) bool {
	for _, c := range changes {
		if c.Defined && table.Triggers(c.Percent) {
			return true
		}
	}
	return false
}

// dimension rates the largest absolute move; unknown horizons count as zero.
func dimension(changes []HorizonChange, table rating.Table) *Dimension {
	peak := 0.0
	for _, c := range changes {
		if c.Defined && math.Abs(c.Percent) > math.Abs(peak) {
			peak = c.Percent
		}
	}
	return &Dimension{Label: table.Rate(peak), Peak: peak, Changes: changes}
}

// diverging reports a falling price together with rising open interest on any
// horizon where both are known.
func diverging(spot, oi []HorizonChange) bool {
	for i := range spot {
		if i >= len(oi) {
			break
		}
		if spot[i].Defined && oi[i].Defined && spot[i].Percent < 0 && oi[i].Percent > 0 {
			return true
		}
	}
	return false
}
