package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
)

// WinnerRepository records manually announced winners.
type WinnerRepository struct {
	db *gorm.DB
}

func NewWinnerRepository(db *gorm.DB) *WinnerRepository {
	return &WinnerRepository{db: db}
}

func (r *WinnerRepository) Create(ctx context.Context, winner *model.Winner) error {
	if err := r.db.WithContext(ctx).Create(winner).Error; err != nil {
		return fmt.Errorf("create winner: %w", err)
	}
	return nil
}

func (r *WinnerRepository) ListRecent(ctx context.Context, limit int) ([]model.Winner, error) {
	var winners []model.Winner
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&winners).Error; err != nil {
		return nil, err
	}
	return winners, nil
}
