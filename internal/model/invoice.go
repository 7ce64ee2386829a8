package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "PENDING"
	InvoiceStatusAccepted InvoiceStatus = "ACCEPTED"
	InvoiceStatusRejected InvoiceStatus = "REJECTED"
)

type Invoice struct {
	ID        uuid.UUID
	StageID   *uuid.UUID // nil for traditional non-staged payments
	ProjectID uuid.UUID
	CompanyID uuid.UUID

	// Number is the formatted document number (establishment-point-sequence,
	// e.g. "001-001-0000042"); SequenceValue is the raw reserved counter value.
	Number        string
	SequenceValue int64

	AmountSource   decimal.Decimal
	SourceCurrency string
	ExchangeRate   decimal.Decimal
	AmountLocal    int64 // guaraníes, no subunit
	TaxRate        int
	TaxBase        int64
	TaxAmount      int64

	Status InvoiceStatus

	// Authority response. CDC is the control code proving acceptance,
	// ProtocolID the processing lot identifier.
	CDC             *string
	ProtocolID      *string
	VerificationURL *string
	RejectionCode   *string
	RejectionReason *string

	// RawDocument keeps the exact JSON submitted to the gateway for audit.
	RawDocument []byte

	// Client identity snapshot, copied at creation time. These are
	// historical facts and must never be refreshed from the live profile.
	ClientName           string
	ClientRUC            string
	ClientAddress        string
	ClientDepartmentCode int
	ClientCityCode       int
	ClientEmail          *string
	ClientPhone          *string

	IssuedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
