// Package sequence issues invoice document numbers.
package sequence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dbritez/consultora-billing/internal/model"
)

// Store persists one monotonically increasing counter per company.
// NextValue must be atomic: concurrent calls for the same company return
// distinct, strictly increasing values.
type Store interface {
	NextValue(ctx context.Context, companyID uuid.UUID) (int64, error)
}

// ReservedNumber is a committed document number. The reservation happens
// before any submission attempt and is never rolled back or reused, so two
// documents can never share a number. Failed submissions leave gaps, which
// the numbering model permits.
type ReservedNumber struct {
	Value     int64
	Formatted string
}

type Sequencer struct {
	store Store
}

func NewSequencer(store Store) *Sequencer {
	return &Sequencer{store: store}
}

// ReserveNext increments the company counter and formats the number with
// the company's establishment and expedition-point codes.
func (s *Sequencer) ReserveNext(ctx context.Context, company model.CompanyProfile) (ReservedNumber, error) {
	value, err := s.store.NextValue(ctx, company.ID)
	if err != nil {
		return ReservedNumber{}, fmt.Errorf("reserve document number: %w", err)
	}
	return ReservedNumber{
		Value:     value,
		Formatted: Format(company.EstablishmentCode, company.PointCode, value),
	}, nil
}

// Format renders the authority document number: EEE-PPP-NNNNNNN.
func Format(establishment, point string, value int64) string {
	if establishment == "" {
		establishment = "001"
	}
	if point == "" {
		point = "001"
	}
	return fmt.Sprintf("%s-%s-%07d", establishment, point, value)
}
