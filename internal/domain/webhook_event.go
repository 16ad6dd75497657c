package domain

import "time"

// Webhook event types delivered by the payment processor.
const (
	EventHoldSucceeded = "hold.succeeded"
	EventHoldFailed    = "hold.failed"
)

// WebhookEvent is one row of the append-only idempotency ledger. A row is
// inserted once per distinct external event id and never mutated afterwards.
type WebhookEvent struct {
	ID           int64
	EventID      string
	EventType    string
	BookingToken string
	Outcome      string
	CreatedAt    time.Time
}
