// Package exchange resolves the current USD/PYG conversion rate from an
// ordered cascade of external sources.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dbritez/consultora-billing/internal/model"
)

var ErrRateUnavailable = errors.New("no exchange rate available from any provider")

// Resolver tries providers strictly in order and short-circuits on the
// first valid positive rate. Provider order encodes preference: cheapest
// and most authoritative sources first. Failures are logged and swallowed,
// never propagated, so one dead feed cannot block a payment approval.
type Resolver struct {
	providers       []Provider
	providerTimeout time.Duration
	log             zerolog.Logger
}

func NewResolver(providers []Provider, providerTimeout time.Duration, log zerolog.Logger) *Resolver {
	return &Resolver{
		providers:       providers,
		providerTimeout: providerTimeout,
		log:             log.With().Str("component", "exchange").Logger(),
	}
}

// FetchCurrent returns a fresh rate snapshot. The snapshot is stamped once
// onto the approving stage and never substituted into historical records.
// When every provider fails, the caller receives ErrRateUnavailable and is
// expected to fall back to the last persisted configured rate.
func (r *Resolver) FetchCurrent(ctx context.Context) (model.ExchangeRateSnapshot, error) {
	for _, provider := range r.providers {
		providerCtx, cancel := context.WithTimeout(ctx, r.providerTimeout)
		rate, err := provider.Fetch(providerCtx)
		cancel()

		if err != nil {
			r.log.Warn().Err(err).Str("provider", provider.Name()).Msg("rate provider failed")
			continue
		}
		if rate.LessThanOrEqual(decimal.Zero) {
			r.log.Warn().Str("provider", provider.Name()).Str("rate", rate.String()).Msg("rate provider returned non-positive rate")
			continue
		}

		return model.ExchangeRateSnapshot{
			Rate:      rate,
			Source:    provider.Name(),
			FetchedAt: time.Now().UTC(),
		}, nil
	}

	return model.ExchangeRateSnapshot{}, ErrRateUnavailable
}
