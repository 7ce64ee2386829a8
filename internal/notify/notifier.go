// Package notify hands ledger events to the notification transport.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dbritez/consultora-billing/internal/model"
)

// LogNotifier records events in the service log. The real-time transport
// belongs to the outer application; it consumes the same events from its
// own subscription, so this core only needs a sink that never blocks.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, event model.Event) {
	entry := n.log.Info().
		Str("event", string(event.Type)).
		Str("project_id", event.ProjectID.String()).
		Str("stage_id", event.StageID.String()).
		Str("stage", event.StageName)
	if event.InvoiceID != nil {
		entry = entry.Str("invoice_id", event.InvoiceID.String())
	}
	if event.Reason != "" {
		entry = entry.Str("reason", event.Reason)
	}
	entry.Msg("billing event")
}
