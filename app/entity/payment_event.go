package entity

import "time"

// PaymentEvent is the ledger's audit trail: one row per status transition or
// notable gateway interaction.
type PaymentEvent struct {
	ID uint64

	PaymentID uint64

	EventType string

	OldStatus *int32
	NewStatus int32

	// ExternalRef correlates with the gateway (charge id, invoice id).
	ExternalRef *string

	CreatedAt time.Time
}
