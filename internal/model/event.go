package model

import "github.com/google/uuid"

type EventType string

const (
	EventStageAvailable   EventType = "stage_available"
	EventPaymentApproved  EventType = "payment_approved"
	EventPaymentRejected  EventType = "payment_rejected"
	EventInvoiceGenerated EventType = "invoice_generated"
)

// Event is a fire-and-forget notification handed to the outer application's
// transport. The core never waits on delivery.
type Event struct {
	Type      EventType
	ProjectID uuid.UUID
	StageID   uuid.UUID
	InvoiceID *uuid.UUID
	StageName string
	Reason    string
}
