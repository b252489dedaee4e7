package service

import (
	"context"

	"raffle-bot/internal/model"
)

// Notifier delivers reconciliation results to the buyer. Implementations
// are best-effort: by the time a notifier runs the ledger has already
// committed, so delivery failures must be swallowed, never propagated
// back into the payment path.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, user *model.User, quantity int, codes []string)
}

// NopNotifier discards notifications. Used in tests and when the bot is
// not configured.
type NopNotifier struct{}

func (NopNotifier) PaymentConfirmed(context.Context, *model.User, int, []string) {}
