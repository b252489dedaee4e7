package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
	"raffle-bot/internal/paystack"
	"raffle-bot/internal/repository"
)

// ReconcileOutcome classifies how a webhook delivery was absorbed. All of
// these are normal control flow for a webhook-driven design, not errors.
type ReconcileOutcome string

const (
	OutcomeConfirmed          ReconcileOutcome = "confirmed"
	OutcomeAlreadyProcessed   ReconcileOutcome = "already_processed"
	OutcomeNotSuccessful      ReconcileOutcome = "not_successful"
	OutcomeNoMatchingPurchase ReconcileOutcome = "no_matching_purchase"
)

var (
	// ErrAuthenticityFailed means the signature header was missing or did
	// not match the raw body. Nothing was parsed beyond that point.
	ErrAuthenticityFailed = errors.New("webhook signature check failed")
	// ErrMalformedPayload means the body carried no usable reference.
	ErrMalformedPayload = errors.New("webhook payload carries no reference")
	// ErrVerificationFailed wraps a failed or timed-out verify call. The
	// gateway retries delivery, and retried delivery is safe.
	ErrVerificationFailed = errors.New("could not verify transaction with gateway")
)

// ReconcileResult is the outcome of one webhook delivery.
type ReconcileResult struct {
	Outcome   ReconcileOutcome
	Reference string
	Quantity  int
	Codes     []string
	UserID    uint
}

// webhookPayload is the minimum the reconciler reads out of the untrusted
// body: the event discriminator and the correlation reference. Everything
// else is re-fetched from the verify endpoint.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// ReconcileService turns an authenticated, re-verified payment
// notification into an exactly-once ticket allocation.
type ReconcileService struct {
	db        *gorm.DB
	users     *repository.UserRepository
	purchases *repository.PurchaseRepository
	tickets   *repository.TicketRepository
	txns      *repository.TransactionRepository
	events    *repository.WebhookEventRepository
	gateway   Gateway
	notifier  Notifier
	newCode   func() string
	secret    string
}

func NewReconcileService(
	db *gorm.DB,
	users *repository.UserRepository,
	purchases *repository.PurchaseRepository,
	tickets *repository.TicketRepository,
	txns *repository.TransactionRepository,
	events *repository.WebhookEventRepository,
	gateway Gateway,
	notifier Notifier,
	webhookSecret string,
) *ReconcileService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReconcileService{
		db:        db,
		users:     users,
		purchases: purchases,
		tickets:   tickets,
		txns:      txns,
		events:    events,
		gateway:   gateway,
		notifier:  notifier,
		newCode:   NewTicketCode,
		secret:    webhookSecret,
	}
}

// SetCodeGenerator replaces the ticket code source. Tests install
// deterministic generators; production wiring keeps NewTicketCode.
func (s *ReconcileService) SetCodeGenerator(gen func() string) {
	if gen != nil {
		s.newCode = gen
	}
}

// Reconcile runs the webhook state machine: authenticity, gateway
// re-verification, correlation lookup, idempotency gate, atomic
// confirmation. Gates run strictly in that order; each one stops
// processing cold.
func (s *ReconcileService) Reconcile(ctx context.Context, body []byte, signatureHeader string) (*ReconcileResult, error) {
	// 1. Authenticity, before any JSON decoding of untrusted content.
	if !paystack.ValidSignature(s.secret, body, signatureHeader) {
		s.events.Record(ctx, &model.WebhookEvent{Outcome: "authenticity_failed"})
		return nil, ErrAuthenticityFailed
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Data.Reference == "" {
		s.events.Record(ctx, &model.WebhookEvent{EventType: payload.Event, SignatureValid: true, Outcome: "malformed"})
		return nil, ErrMalformedPayload
	}
	reference := payload.Data.Reference

	audit := func(outcome ReconcileOutcome) {
		s.events.Record(ctx, &model.WebhookEvent{
			EventType:      payload.Event,
			Reference:      reference,
			SignatureValid: true,
			Outcome:        string(outcome),
		})
	}

	// Failure events and test pings never reach the verify endpoint.
	if payload.Event != "" && payload.Event != "charge.success" {
		audit(OutcomeNotSuccessful)
		return &ReconcileResult{Outcome: OutcomeNotSuccessful, Reference: reference}, nil
	}

	// 2. Re-verification: the body is a hint, the verify endpoint decides.
	verified, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		s.events.Record(ctx, &model.WebhookEvent{EventType: payload.Event, Reference: reference, SignatureValid: true, Outcome: "verify_failed"})
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if verified.Status != "success" {
		audit(OutcomeNotSuccessful)
		return &ReconcileResult{Outcome: OutcomeNotSuccessful, Reference: reference}, nil
	}

	// 3. Correlation lookup, with the email fallback for purchases whose
	// row never made it into the ledger.
	purchase, err := s.locatePurchase(ctx, reference, verified.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		audit(OutcomeNoMatchingPurchase)
		return &ReconcileResult{Outcome: OutcomeNoMatchingPurchase, Reference: reference}, nil
	}

	// 4. Idempotency gate. Cheap fast path; the CAS inside the
	// transaction is the actual guarantee under concurrency.
	if purchase.Confirmed {
		audit(OutcomeAlreadyProcessed)
		return &ReconcileResult{Outcome: OutcomeAlreadyProcessed, Reference: purchase.Reference}, nil
	}

	// 5. Atomic confirmation: flip, audit row and ticket batch share one commit.
	codes, flipped, err := s.confirm(ctx, purchase)
	if err != nil {
		return nil, err
	}
	if !flipped {
		audit(OutcomeAlreadyProcessed)
		return &ReconcileResult{Outcome: OutcomeAlreadyProcessed, Reference: purchase.Reference}, nil
	}

	audit(OutcomeConfirmed)
	log.Printf("[info] purchase %d confirmed: %d tickets for user %d (ref %s)", purchase.ID, len(codes), purchase.UserID, purchase.Reference)

	s.notify(ctx, purchase, codes)

	return &ReconcileResult{
		Outcome:   OutcomeConfirmed,
		Reference: purchase.Reference,
		Quantity:  purchase.Quantity,
		Codes:     codes,
		UserID:    purchase.UserID,
	}, nil
}

func (s *ReconcileService) locatePurchase(ctx context.Context, reference, email string) (*model.PendingPurchase, error) {
	purchase, err := s.purchases.FindByReference(ctx, reference)
	if err == nil {
		return purchase, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup purchase: %w", err)
	}

	if email == "" {
		return nil, nil
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	purchase, err = s.purchases.LatestUnconfirmedForUser(ctx, user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup fallback purchase: %w", err)
	}
	log.Printf("[info] reference %s matched via email fallback to purchase %d", reference, purchase.ID)
	return purchase, nil
}

// confirm flips the purchase, writes the audit row and mints the ticket
// batch inside one transaction. A mid-batch failure rolls everything back
// and leaves the purchase pending, so the gateway's redelivery is a safe
// retry. flipped=false means another delivery won the CAS.
func (s *ReconcileService) confirm(ctx context.Context, purchase *model.PendingPurchase) (codes []string, flipped bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err = s.purchases.ConfirmTx(tx, purchase.ID)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}

		if err := s.txns.CreateTx(tx, &model.Transaction{
			UserID:    purchase.UserID,
			Reference: purchase.Reference,
			Amount:    purchase.Amount,
		}); err != nil {
			return err
		}

		quantity := purchase.Quantity
		if quantity < 1 {
			quantity = 1
		}
		for i := 0; i < quantity; i++ {
			code, err := s.mintTicket(tx, purchase.UserID)
			if err != nil {
				return err
			}
			codes = append(codes, code)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("confirm purchase %d: %w", purchase.ID, err)
	}
	return codes, flipped, nil
}

// mintTicket runs the generate-check-retry loop for a single ticket. A
// duplicate-key error from the insert is a concurrent collision and counts
// as a retry, not a failure.
func (s *ReconcileService) mintTicket(tx *gorm.DB, userID uint) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.newCode()

		exists, err := s.tickets.CodeExistsTx(tx, code)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}

		err = s.tickets.CreateTx(tx, &model.Ticket{UserID: userID, Code: code})
		if err == nil {
			return code, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return "", fmt.Errorf("insert ticket: %w", err)
	}
	return "", ErrCodeSpaceExhausted
}

// notify is fire-and-forget; the ledger has committed by the time we get
// here, so nothing a notifier does may fail the reconciliation.
func (s *ReconcileService) notify(ctx context.Context, purchase *model.PendingPurchase, codes []string) {
	user, err := s.users.FindByID(ctx, purchase.UserID)
	if err != nil {
		log.Printf("notify: load user %d: %v", purchase.UserID, err)
		return
	}
	s.notifier.PaymentConfirmed(ctx, user, purchase.Quantity, codes)
}
