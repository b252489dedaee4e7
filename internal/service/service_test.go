package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"raffle-bot/internal/model"
	"raffle-bot/internal/paystack"
	"raffle-bot/internal/repository"
	"raffle-bot/internal/service"
)

const (
	testSecret = "whsec_test"
	testPrice  = 500
)

// fakeGateway is an in-memory stand-in for the Paystack client.
type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	verifyErr   error
	verified    map[string]*paystack.VerifiedTransaction
	verifyCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verified: make(map[string]*paystack.VerifiedTransaction)}
}

func (g *fakeGateway) InitializeTransaction(_ context.Context, amount int, email, reference string, _ paystack.Metadata) (*paystack.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.CheckoutSession{
		AuthorizationURL: "https://checkout.paystack.com/" + reference,
		Reference:        reference,
	}, nil
}

func (g *fakeGateway) VerifyTransaction(_ context.Context, reference string) (*paystack.VerifiedTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if v, ok := g.verified[reference]; ok {
		return v, nil
	}
	return &paystack.VerifiedTransaction{Status: "abandoned"}, nil
}

// markPaid makes the gateway report the reference as successfully charged.
func (g *fakeGateway) markPaid(reference, email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified[reference] = &paystack.VerifiedTransaction{Status: "success", CustomerEmail: email}
}

type notification struct {
	userID   uint
	quantity int
	codes    []string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *fakeNotifier) PaymentConfirmed(_ context.Context, user *model.User, quantity int, codes []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{userID: user.ID, quantity: quantity, codes: codes})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// env wires a full service stack over a throwaway SQLite file.
type env struct {
	db        *gorm.DB
	users     *repository.UserRepository
	purchases *repository.PurchaseRepository
	tickets   *repository.TicketRepository
	txns      *repository.TransactionRepository
	gateway   *fakeGateway
	notifier  *fakeNotifier
	checkout  *service.CheckoutService
	reconcile *service.ReconcileService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "raffle_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	e := &env{
		db:        db,
		users:     repository.NewUserRepository(db),
		purchases: repository.NewPurchaseRepository(db),
		tickets:   repository.NewTicketRepository(db),
		txns:      repository.NewTransactionRepository(db),
		gateway:   newFakeGateway(),
		notifier:  &fakeNotifier{},
	}
	e.checkout = service.NewCheckoutService(db, e.users, e.purchases, e.gateway, testPrice)
	e.reconcile = service.NewReconcileService(
		db, e.users, e.purchases, e.tickets, e.txns,
		repository.NewWebhookEventRepository(db),
		e.gateway, e.notifier, testSecret,
	)
	return e
}

// signedWebhook builds a charge.success body for the reference along with
// a valid signature header.
func signedWebhook(reference string) (body []byte, header string) {
	body = []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"%s"}}`, reference))
	return body, paystack.Signature(testSecret, body)
}

func (e *env) ticketCount(t *testing.T) int64 {
	t.Helper()
	n, err := e.tickets.Count(context.Background())
	if err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	return n
}

func (e *env) transactionCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&model.Transaction{}).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func (e *env) purchaseByReference(t *testing.T, reference string) *model.PendingPurchase {
	t.Helper()
	p, err := e.purchases.FindByReference(context.Background(), reference)
	if err != nil {
		t.Fatalf("find purchase %s: %v", reference, err)
	}
	return p
}
