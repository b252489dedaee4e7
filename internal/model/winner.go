package model

import "time"

// Winner records a manually announced winning ticket. Selection itself is
// up to the admin; the bot only records and broadcasts the result.
type Winner struct {
	ID          uint   `gorm:"primaryKey"`
	TicketCode  string `gorm:"index;not null"`
	UserID      uint
	AnnouncedBy string
	CreatedAt   time.Time
}
