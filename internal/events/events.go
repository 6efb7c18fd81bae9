package events

import "context"

// Event types, one per invoice state transition plus the raw deposit signal
// from the watcher.
const (
	EventInvoiceCreated   = "invoice_created"
	EventInvoicePaid      = "invoice_paid"
	EventInvoiceApproved  = "invoice_approved"
	EventInvoiceSettled   = "invoice_settled"
	EventInvoiceDisputed  = "invoice_disputed"
	EventInvoiceResolved  = "invoice_resolved"
	EventInvoiceCancelled = "invoice_cancelled"
	EventDepositReceived  = "deposit_received"
)

// StreamInvoices is the pub/sub channel carrying all ledger notifications.
const StreamInvoices = "events:invoice"

type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
