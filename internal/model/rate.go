package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRateSnapshot is a point-in-time conversion rate with provenance.
// Consumed once when a stage is approved and copied onto the stage/invoice.
type ExchangeRateSnapshot struct {
	Rate      decimal.Decimal
	Source    string
	FetchedAt time.Time
}
