package model

import "time"

// Transaction is the audit record written once per successful
// reconciliation. It doubles as a secondary idempotency signal for
// administrative reporting.
type Transaction struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index"`
	Reference string `gorm:"index"`
	Amount    int
	CreatedAt time.Time
}
