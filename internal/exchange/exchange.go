package exchange

import (
	"context"
	"time"
)

// InstrumentInfo is the subset of exchange metadata used for discovery.
type InstrumentInfo struct {
	Symbol       string
	BaseAsset    string
	QuoteAsset   string
	ContractType string
	Status       string
}

// Ticker is the last traded price of one instrument.
type Ticker struct {
	Symbol    string
	LastPrice float64
}

// OpenInterest is a single open-interest reading.
type OpenInterest struct {
	Symbol string
	Value  float64
	At     time.Time
}

// InstrumentSource lists tradable instruments.
type InstrumentSource interface {
	Instruments(ctx context.Context) ([]InstrumentInfo, error)
}

// MarketSource provides price and open-interest snapshots.
type MarketSource interface {
	Tickers(ctx context.Context) ([]Ticker, error)
	OpenInterest(ctx context.Context, symbol string) (OpenInterest, error)
}
