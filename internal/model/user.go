package model

import "time"

// User stores a buyer identified by their Telegram account.
// Balance is informational only; it is never touched by the
// reconciliation path.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	Username   string
	Email      string
	Balance    int

	ReferredBy    *uint
	ReferralCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
