package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
)

// TransactionRepository handles the reconciliation audit trail.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateTx inserts an audit row inside an existing transaction.
func (r *TransactionRepository) CreateTx(tx *gorm.DB, txn *model.Transaction) error {
	if err := tx.Create(txn).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uint) ([]model.Transaction, error) {
	var txns []model.Transaction
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// TotalRevenue sums all confirmed amounts.
func (r *TransactionRepository) TotalRevenue(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
