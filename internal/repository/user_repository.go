package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate finds a user by Telegram ID, creating the row on first
// interaction. Username and email are filled in only on creation.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username, email string) (*model.User, error) {
	return getOrCreateUser(r.db.WithContext(ctx), telegramID, username, email)
}

// GetOrCreateTx is GetOrCreate inside an existing transaction.
func (r *UserRepository) GetOrCreateTx(tx *gorm.DB, telegramID int64, username, email string) (*model.User, error) {
	return getOrCreateUser(tx, telegramID, username, email)
}

func getOrCreateUser(db *gorm.DB, telegramID int64, username, email string) (*model.User, error) {
	var user model.User
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID: telegramID,
			Username:   username,
			Email:      email,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// CreditReferral marks user as referred by referrer and bumps the
// referrer's counter. A user can only ever be credited once.
func (r *UserRepository) CreditReferral(ctx context.Context, user *model.User, referrer *model.User) error {
	if user.ReferredBy != nil || user.ID == referrer.ID {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("referred_by", referrer.ID).Error; err != nil {
			return fmt.Errorf("mark referred: %w", err)
		}
		if err := tx.Model(referrer).Update("referral_count", gorm.Expr("referral_count + 1")).Error; err != nil {
			return fmt.Errorf("bump referral count: %w", err)
		}
		return nil
	})
}
