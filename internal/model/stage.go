package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StageStatus string

const (
	StageStatusPending             StageStatus = "PENDING"
	StageStatusAvailable           StageStatus = "AVAILABLE"
	StageStatusPendingVerification StageStatus = "PENDING_VERIFICATION"
	StageStatusPaid                StageStatus = "PAID"
)

// StageDefinition is one entry of a project's payment plan as submitted by
// the caller, before any stage rows exist.
type StageDefinition struct {
	Name             string
	Percentage       int
	Amount           decimal.Decimal
	Currency         string
	RequiredProgress int
}

type PaymentStage struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	CompanyID        uuid.UUID
	Ordinal          int
	Name             string
	Percentage       int
	Amount           decimal.Decimal
	Currency         string
	RequiredProgress int
	Status           StageStatus
	PaymentMethod    *string
	EvidenceNote     *string
	ProofFileRef     *string
	RejectionReason  *string
	PaidAt           *time.Time
	// Exchange rate frozen at approval time. Historical fact, never
	// recalculated from current market data.
	ExchangeRate       *decimal.Decimal
	ExchangeRateSource *string
	ExchangeRateAt     *time.Time
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StageTotals aggregates a project's payment plan for list views.
type StageTotals struct {
	TotalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal
	PaidPercentage int
	Currency       string
}
