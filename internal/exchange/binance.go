package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BinanceOptions parameterise the futures REST client.
type BinanceOptions struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Binance reads USDⓈ-M futures market data.
type Binance struct {
	cli    *futures.Client
	logger zerolog.Logger
}

// NewBinance constructs the futures client. Error responses are surfaced as *ResponseError.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cli := futures.NewClient(opts.APIKey, opts.APISecret)
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" {
		cli.BaseURL = base
	}
	cli.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &statusTransport{base: http.DefaultTransport},
	}

	return &Binance{
		cli:    cli,
		logger: logger.With().Str("component", "binance_fetcher").Logger(),
	}
}

// Instruments lists every futures symbol with its quote asset, contract type and status.
func (b *Binance) Instruments(ctx context.Context) ([]InstrumentInfo, error) {
	info, err := b.cli.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	return lo.Map(info.Symbols, func(s futures.Symbol, _ int) InstrumentInfo {
		return InstrumentInfo{
			Symbol:       s.Symbol,
			BaseAsset:    s.BaseAsset,
			QuoteAsset:   s.QuoteAsset,
			ContractType: string(s.ContractType),
			Status:       string(s.Status),
		}
	}), nil
}

// Tickers returns the last price of every instrument in one batch call.
// Entries with unparsable prices are skipped.
func (b *Binance) Tickers(ctx context.Context) ([]Ticker, error) {
	stats, err := b.cli.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ticker 24hr: %w", err)
	}

	tickers := make([]Ticker, 0, len(stats))
	for _, st := range stats {
		price, err := decimal.NewFromString(st.LastPrice)
		if err != nil {
			b.logger.Debug().Err(err).Str("symbol", st.Symbol).Str("price", st.LastPrice).Msg("skip unparsable last price")
			continue
		}
		tickers = append(tickers, Ticker{Symbol: st.Symbol, LastPrice: price.InexactFloat64()})
	}
	return tickers, nil
}

// OpenInterest returns the current open interest of one instrument.
func (b *Binance) OpenInterest(ctx context.Context, symbol string) (OpenInterest, error) {
	res, err := b.cli.NewGetOpenInterestService().Symbol(symbol).Do(ctx)
	if err != nil {
		return OpenInterest{}, fmt.Errorf("open interest %s: %w", symbol, err)
	}

	value, err := decimal.NewFromString(res.OpenInterest)
	if err != nil {
		return OpenInterest{}, fmt.Errorf("parse open interest %s: %w", symbol, err)
	}

	oi := OpenInterest{Symbol: symbol, Value: value.InexactFloat64()}
	if res.Time > 0 {
		oi.At = time.UnixMilli(res.Time).UTC()
	}
	return oi, nil
}

var (
	_ InstrumentSource = (*Binance)(nil)
	_ MarketSource     = (*Binance)(nil)
)
