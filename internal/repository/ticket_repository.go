package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
)

// TicketRepository handles issued raffle tickets.
type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// CreateTx inserts a ticket inside an existing transaction. A code
// collision surfaces as gorm.ErrDuplicatedKey; callers regenerate and
// retry rather than failing.
func (r *TicketRepository) CreateTx(tx *gorm.DB, ticket *model.Ticket) error {
	return tx.Create(ticket).Error
}

// CodeExistsTx reports whether a code is already issued, inside an
// existing transaction.
func (r *TicketRepository) CodeExistsTx(tx *gorm.DB, code string) (bool, error) {
	var ticket model.Ticket
	err := tx.Select("id").Where("code = ?", code).First(&ticket).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check code: %w", err)
	}
}

func (r *TicketRepository) FindByCode(ctx context.Context, code string) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *TicketRepository) ListByUser(ctx context.Context, userID uint) ([]model.Ticket, error) {
	var tickets []model.Ticket
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *TicketRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Ticket{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
