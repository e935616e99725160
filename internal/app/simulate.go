package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"oi-surge-alerts/internal/alerting"
	"oi-surge-alerts/internal/exchange"
	"oi-surge-alerts/internal/instrument"
)

// SimulateAlert 用给定的一分钟涨跌幅模拟一次告警流程，并通过已配置的通道发送。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) (alerting.Outcome, error) {
	return a.simulate(ctx, a.newNotifier(), time.Now().UTC(), opts)
}

func (a *App) simulate(ctx context.Context, notifier alerting.Notifier, now time.Time, opts SimulateOptions) (alerting.Outcome, error) {
	symbol := strings.ToUpper(strings.TrimSpace(opts.Symbol))
	if symbol == "" {
		return alerting.OutcomeQuiet, errors.New("symbol is required")
	}
	if opts.PriceChangePct <= -100 || opts.OpenInterestPct <= -100 {
		return alerting.OutcomeQuiet, errors.New("changes must be greater than -100%")
	}

	registry := a.newRegistry(nil, a.newGuard())
	h := registry.Ensure(instrument.Canonical(exchange.InstrumentInfo{
		Symbol:     symbol,
		QuoteAsset: a.Config.Binance.SettlementAsset,
	}))

	start := now.Add(-time.Minute)
	h.Spot.Append(start, 100)
	h.Spot.Append(now, 100*(1+opts.PriceChangePct/100))
	h.OpenInterest.Append(start, 1000)
	h.OpenInterest.Append(now, 1000*(1+opts.OpenInterestPct/100))

	outcome, err := a.newEvaluator(notifier, nil).Evaluate(ctx, now, h)
	if err != nil {
		return outcome, err
	}
	if outcome == alerting.OutcomeQuiet {
		return outcome, fmt.Errorf("simulated moves (price %+.2f%%, open interest %+.2f%%) stay below the trigger floors", opts.PriceChangePct, opts.OpenInterestPct)
	}
	return outcome, nil
}
