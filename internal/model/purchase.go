package model

import "time"

// PendingPurchase is one checkout attempt. It is created unconfirmed when a
// Paystack checkout session is opened and flipped to confirmed exactly once
// by the reconciler. Rows are never deleted; abandoned checkouts simply stay
// unconfirmed.
type PendingPurchase struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	Reference string `gorm:"uniqueIndex;not null"`
	Quantity  int    `gorm:"not null"`
	Amount    int    `gorm:"not null"`
	Confirmed bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User User
}
