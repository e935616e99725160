package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRecord is the audit row of a dispatched alert.
type AlertRecord struct {
	ID                string
	Symbol            string
	PriceLabel        string
	PricePeakPct      decimal.NullDecimal
	OpenInterestLabel string
	OpenInterestPct   decimal.NullDecimal
	SuspectedShort    bool
	FirstAlertAt      time.Time
	AlertedAt         time.Time
	CreatedAt         time.Time
}
