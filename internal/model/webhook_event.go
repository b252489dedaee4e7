package model

import "time"

// WebhookEvent stores every inbound Paystack delivery together with the
// outcome of its handling. The ledger itself is the idempotency source of
// truth; this table exists for audit and debugging of gateway retries.
type WebhookEvent struct {
	ID             uint   `gorm:"primaryKey"`
	EventType      string `gorm:"index"`
	Reference      string `gorm:"index"`
	SignatureValid bool
	Outcome        string
	CreatedAt      time.Time
}
