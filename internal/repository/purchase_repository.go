package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
)

// PurchaseRepository handles pending purchases, the idempotency source of
// truth for the payment flow.
type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// CreateTx inserts a pending purchase inside an existing transaction. The
// reference column carries a unique index; a duplicate reference surfaces
// as gorm.ErrDuplicatedKey and means the reference generator misbehaved.
func (r *PurchaseRepository) CreateTx(tx *gorm.DB, purchase *model.PendingPurchase) error {
	if err := tx.Create(purchase).Error; err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) FindByReference(ctx context.Context, reference string) (*model.PendingPurchase, error) {
	var purchase model.PendingPurchase
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// LatestUnconfirmedForUser returns the most recent unconfirmed purchase for
// the user. Best-effort fallback for webhooks whose reference never made it
// into the ledger; with several purchases pending for one user it may pick
// the wrong one, matching the "most recent" semantics of the gateway flow.
// The confirmed filter also means a duplicate delivery for a reference that
// was resolved through this fallback finds no match once the purchase is
// confirmed; ConfirmTx has already made the redelivery harmless.
func (r *PurchaseRepository) LatestUnconfirmedForUser(ctx context.Context, userID uint) (*model.PendingPurchase, error) {
	var purchase model.PendingPurchase
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND confirmed = ?", userID, false).
		Order("created_at DESC").
		First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ConfirmTx flips confirmed from false to true inside an existing
// transaction. The WHERE confirmed=false guard plus the affected-row count
// makes the transition a compare-and-swap: of any number of concurrent
// reconciliations for the same purchase, exactly one observes flipped=true.
func (r *PurchaseRepository) ConfirmTx(tx *gorm.DB, purchaseID uint) (flipped bool, err error) {
	res := tx.Model(&model.PendingPurchase{}).
		Where("id = ? AND confirmed = ?", purchaseID, false).
		Update("confirmed", true)
	if res.Error != nil {
		return false, fmt.Errorf("confirm purchase: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PurchaseRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.PendingPurchase{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
