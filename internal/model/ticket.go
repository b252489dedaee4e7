package model

import "time"

// Ticket is one paid raffle unit. Codes are short and human readable
// (the winner is announced by code), so uniqueness is guaranteed by the
// unique index rather than by construction.
type Ticket struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	Code      string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time

	User User
}
