package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
	"raffle-bot/internal/paystack"
	"raffle-bot/internal/repository"
)

// Gateway is the slice of the payment provider the services need.
// *paystack.Client satisfies it; tests substitute fakes.
type Gateway interface {
	InitializeTransaction(ctx context.Context, amount int, email, reference string, meta paystack.Metadata) (*paystack.CheckoutSession, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifiedTransaction, error)
}

var (
	// ErrInvalidQuantity rejects non-positive ticket quantities.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrGatewayUnavailable means the checkout session could not be
	// created; no ledger row was written.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPersistenceFailed means the session was created but the pending
	// purchase could not be stored. The webhook reconciler's fallback
	// lookup by email papers over this window.
	ErrPersistenceFailed = errors.New("could not persist pending purchase")
)

// Buyer identifies who is checking out.
type Buyer struct {
	TelegramID int64
	Username   string
}

// Checkout is a successfully opened payment session.
type Checkout struct {
	URL       string
	Reference string
	Quantity  int
	Amount    int
}

// CheckoutService opens gateway checkout sessions and records the matching
// pending purchase. It never mints tickets: "payment started" and "payment
// confirmed" stay separate by construction.
type CheckoutService struct {
	db          *gorm.DB
	users       *repository.UserRepository
	purchases   *repository.PurchaseRepository
	gateway     Gateway
	ticketPrice int
}

func NewCheckoutService(db *gorm.DB, users *repository.UserRepository, purchases *repository.PurchaseRepository, gateway Gateway, ticketPrice int) *CheckoutService {
	return &CheckoutService{
		db:          db,
		users:       users,
		purchases:   purchases,
		gateway:     gateway,
		ticketPrice: ticketPrice,
	}
}

// TicketPrice returns the configured unit price.
func (s *CheckoutService) TicketPrice() int {
	return s.ticketPrice
}

// Initiate opens a checkout session for quantity tickets and persists the
// pending purchase. The gateway call happens before any write: a failed
// session creation leaves no ledger trace.
func (s *CheckoutService) Initiate(ctx context.Context, buyer Buyer, quantity int) (*Checkout, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	amount := quantity * s.ticketPrice
	email := SynthesizeEmail(buyer.TelegramID)
	reference := NewReference()

	session, err := s.gateway.InitializeTransaction(ctx, amount, email, reference, paystack.Metadata{TelegramID: buyer.TelegramID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if session.Reference != "" {
		reference = session.Reference
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.users.GetOrCreateTx(tx, buyer.TelegramID, buyer.Username, email)
		if err != nil {
			return err
		}
		return s.purchases.CreateTx(tx, &model.PendingPurchase{
			UserID:    user.ID,
			Reference: reference,
			Quantity:  quantity,
			Amount:    amount,
		})
	})
	if err != nil {
		// The gateway session exists with no local record: an accepted,
		// bounded inconsistency that the reconciler's email fallback bridges.
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	return &Checkout{
		URL:       session.AuthorizationURL,
		Reference: reference,
		Quantity:  quantity,
		Amount:    amount,
	}, nil
}

// emailDomain is used to synthesize a contact email for buyers who only
// exist as a Telegram identity; Paystack requires an email per charge.
const emailDomain = "megawin.ng"

// SynthesizeEmail derives the deterministic placeholder email for a
// Telegram user. The reconciler's fallback lookup depends on this being
// stable per user.
func SynthesizeEmail(telegramID int64) string {
	return fmt.Sprintf("%d@%s", telegramID, emailDomain)
}
