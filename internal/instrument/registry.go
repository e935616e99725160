package instrument

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"oi-surge-alerts/internal/exchange"
	"oi-surge-alerts/internal/guard"
)

// ErrNoInstruments is returned when discovery yields nothing to monitor.
var ErrNoInstruments = errors.New("instrument: no qualifying instruments")

const (
	contractPerpetual = "PERPETUAL"
	statusTrading     = "TRADING"
)

// Instrument identifies one monitored perpetual contract.
type Instrument struct {
	Symbol  string
	Base    string
	Quote   string
	Display string
}

// Canonical normalises exchange metadata into an Instrument.
func Canonical(info exchange.InstrumentInfo) Instrument {
	symbol := strings.ToUpper(strings.TrimSpace(info.Symbol))
	quote := strings.ToUpper(strings.TrimSpace(info.QuoteAsset))
	base := strings.ToUpper(strings.TrimSpace(info.BaseAsset))
	if base == "" {
		base = strings.TrimSuffix(symbol, quote)
	}
	return Instrument{
		Symbol:  symbol,
		Base:    base,
		Quote:   quote,
		Display: base + "/" + quote,
	}
}

// Options configure discovery and history retention.
type Options struct {
	SettlementAsset string
	Retention       time.Duration
	MaxRepeats      int
}

// Registry is the monitored set together with each instrument's history.
// It is owned by a single goroutine.
type Registry struct {
	source    exchange.InstrumentSource
	guard     *guard.Guard
	opts      Options
	histories map[string]*History
	logger    zerolog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(source exchange.InstrumentSource, g *guard.Guard, opts Options, logger zerolog.Logger) *Registry {
	opts.SettlementAsset = strings.ToUpper(strings.TrimSpace(opts.SettlementAsset))
	if opts.SettlementAsset == "" {
		opts.SettlementAsset = "USDT"
	}
	return &Registry{
		source:    source,
		guard:     g,
		opts:      opts,
		histories: make(map[string]*History),
		logger:    logger.With().Str("component", "instrument_registry").Logger(),
	}
}

// Refresh rediscovers the monitored set. Histories of instruments still listed
// are kept, new instruments start empty, vanished ones are dropped. On error
// the current set is left untouched.
func (r *Registry) Refresh(ctx context.Context) error {
	infos, err := guard.Call(ctx, r.guard, "exchange_info", r.source.Instruments)
	if err != nil {
		return fmt.Errorf("refresh instruments: %w", err)
	}

	qualifying := lo.Filter(infos, func(info exchange.InstrumentInfo, _ int) bool {
		return strings.EqualFold(info.QuoteAsset, r.opts.SettlementAsset) &&
			strings.EqualFold(info.ContractType, contractPerpetual) &&
			strings.EqualFold(info.Status, statusTrading)
	})
	instruments := lo.UniqBy(lo.Map(qualifying, func(info exchange.InstrumentInfo, _ int) Instrument {
		return Canonical(info)
	}), func(inst Instrument) string { return inst.Symbol })
	if len(instruments) == 0 {
		return ErrNoInstruments
	}

	next := make(map[string]*History, len(instruments))
	added := 0
	for _, inst := range instruments {
		if h, ok := r.histories[inst.Symbol]; ok {
			h.Instrument = inst
			next[inst.Symbol] = h
			continue
		}
		next[inst.Symbol] = newHistory(inst, r.opts.Retention, r.opts.MaxRepeats)
		added++
	}
	removed := len(r.histories) - (len(next) - added)
	r.histories = next

	r.logger.Info().Int("instruments", len(next)).
		Int("added", added).
		Int("removed", removed).
		Msg("monitored set refreshed")
	return nil
}

// Lookup returns the history of a monitored instrument.
func (r *Registry) Lookup(symbol string) (*History, bool) {
	h, ok := r.histories[symbol]
	return h, ok
}

// Ensure returns the history of symbol, creating an empty one when missing.
func (r *Registry) Ensure(inst Instrument) *History {
	if h, ok := r.histories[inst.Symbol]; ok {
		return h
	}
	h := newHistory(inst, r.opts.Retention, r.opts.MaxRepeats)
	r.histories[inst.Symbol] = h
	return h
}

// Remove drops an instrument and its history.
func (r *Registry) Remove(symbol string) bool {
	if _, ok := r.histories[symbol]; !ok {
		return false
	}
	delete(r.histories, symbol)
	r.logger.Warn().Str("symbol", symbol).Msg("instrument removed from monitored set")
	return true
}

// Symbols returns the monitored symbols in sorted order.
func (r *Registry) Symbols() []string {
	symbols := lo.Keys(r.histories)
	sort.Strings(symbols)
	return symbols
}

// Len is the size of the monitored set.
func (r *Registry) Len() int {
	return len(r.histories)
}
