package repository

import (
	"context"
	"log"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
)

// WebhookEventRepository stores the audit trail of inbound gateway
// deliveries. Failures here are logged and dropped: the audit row is
// best-effort and must never affect reconciliation.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Record(ctx context.Context, event *model.WebhookEvent) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		log.Printf("record webhook event: %v", err)
	}
}

func (r *WebhookEventRepository) ListByReference(ctx context.Context, reference string) ([]model.WebhookEvent, error) {
	var events []model.WebhookEvent
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
