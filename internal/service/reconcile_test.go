package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"raffle-bot/internal/paystack"
	"raffle-bot/internal/service"
)

// initiatePaid opens a checkout and marks it paid at the fake gateway,
// returning the reference.
func initiatePaid(t *testing.T, e *env, telegramID int64, qty int) string {
	t.Helper()
	checkout, err := e.checkout.Initiate(context.Background(), service.Buyer{TelegramID: telegramID}, qty)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	e.gateway.markPaid(checkout.Reference, service.SynthesizeEmail(telegramID))
	return checkout.Reference
}

func TestReconcile_ConfirmsAndMintsTickets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := initiatePaid(t, e, 42, 3)

	body, sig := signedWebhook(ref)
	result, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if result.Outcome != service.OutcomeConfirmed {
		t.Fatalf("outcome = %s, want confirmed", result.Outcome)
	}
	if len(result.Codes) != 3 {
		t.Fatalf("minted %d codes, want 3", len(result.Codes))
	}
	if n := e.ticketCount(t); n != 3 {
		t.Errorf("ticket count = %d, want 3", n)
	}

	purchase := e.purchaseByReference(t, ref)
	if !purchase.Confirmed {
		t.Error("purchase not confirmed after reconcile")
	}

	txns, err := e.txns.ListByUser(ctx, purchase.UserID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(txns))
	}
	if txns[0].Amount != 3*testPrice {
		t.Errorf("audit amount = %d, want %d", txns[0].Amount, 3*testPrice)
	}

	if e.notifier.count() != 1 {
		t.Errorf("notifier called %d times, want 1", e.notifier.count())
	}
}

func TestReconcile_DuplicateDeliveryIsNoop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := initiatePaid(t, e, 42, 2)
	body, sig := signedWebhook(ref)

	first, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if first.Outcome != service.OutcomeConfirmed {
		t.Errorf("first outcome = %s", first.Outcome)
	}
	if second.Outcome != service.OutcomeAlreadyProcessed {
		t.Errorf("second outcome = %s, want already_processed", second.Outcome)
	}
	if n := e.ticketCount(t); n != 2 {
		t.Errorf("ticket count = %d after duplicate delivery, want 2", n)
	}
	if e.notifier.count() != 1 {
		t.Errorf("notifier called %d times, want 1", e.notifier.count())
	}
}

func TestReconcile_InvalidSignatureMutatesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := initiatePaid(t, e, 42, 2)

	body, _ := signedWebhook(ref)
	for _, header := range []string{"", "deadbeef", "not-a-signature"} {
		_, err := e.reconcile.Reconcile(ctx, body, header)
		if !errors.Is(err, service.ErrAuthenticityFailed) {
			t.Errorf("header %q: error = %v, want ErrAuthenticityFailed", header, err)
		}
	}

	if n := e.ticketCount(t); n != 0 {
		t.Errorf("forged webhooks minted %d tickets", n)
	}
	if e.purchaseByReference(t, ref).Confirmed {
		t.Error("forged webhook confirmed the purchase")
	}
	if e.gateway.verifyCalls != 0 {
		t.Errorf("forged webhook reached the verify endpoint %d times", e.gateway.verifyCalls)
	}
}

func TestReconcile_NotSuccessfulStatusMutatesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	checkout, err := e.checkout.Initiate(ctx, service.Buyer{TelegramID: 42}, 2)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	// Gateway never saw a successful charge; the body still claims one.
	body, sig := signedWebhook(checkout.Reference)

	result, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Outcome != service.OutcomeNotSuccessful {
		t.Errorf("outcome = %s, want not_successful", result.Outcome)
	}
	if n := e.ticketCount(t); n != 0 {
		t.Errorf("unsuccessful charge minted %d tickets", n)
	}
	if e.purchaseByReference(t, checkout.Reference).Confirmed {
		t.Error("unsuccessful charge confirmed the purchase")
	}
}

func TestReconcile_IgnoresNonChargeEvents(t *testing.T) {
	e := newEnv(t)
	body := []byte(`{"event":"charge.failed","data":{"reference":"RF-any"}}`)
	sig := paystack.Signature(testSecret, body)

	result, err := e.reconcile.Reconcile(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Outcome != service.OutcomeNotSuccessful {
		t.Errorf("outcome = %s, want not_successful", result.Outcome)
	}
	if e.gateway.verifyCalls != 0 {
		t.Error("failure event reached the verify endpoint")
	}
}

func TestReconcile_NoMatchingPurchase(t *testing.T) {
	e := newEnv(t)
	e.gateway.markPaid("RF-lost", "stranger@megawin.ng")
	body, sig := signedWebhook("RF-lost")

	result, err := e.reconcile.Reconcile(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Outcome != service.OutcomeNoMatchingPurchase {
		t.Errorf("outcome = %s, want no_matching_purchase", result.Outcome)
	}
	if n := e.ticketCount(t); n != 0 {
		t.Errorf("unmatched webhook minted %d tickets", n)
	}
}

func TestReconcile_EmailFallbackBridgesLostReference(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// The local row exists under its own reference, but the webhook
	// arrives with a reference the ledger never saw, as happens when the
	// checkout insert failed after the gateway session was opened. The
	// verified customer email bridges the gap.
	local := initiatePaid(t, e, 42, 4)
	e.gateway.markPaid("RF-unseen", service.SynthesizeEmail(42))
	body, sig := signedWebhook("RF-unseen")

	result, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Outcome != service.OutcomeConfirmed {
		t.Fatalf("outcome = %s, want confirmed via email fallback", result.Outcome)
	}
	if result.Reference != local {
		t.Errorf("confirmed reference %q, want local %q", result.Reference, local)
	}
	if n := e.ticketCount(t); n != 4 {
		t.Errorf("ticket count = %d, want 4", n)
	}
}

func TestReconcile_EmailFallbackDuplicateReportsNoMatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	local := initiatePaid(t, e, 42, 2)
	e.gateway.markPaid("RF-unseen", service.SynthesizeEmail(42))
	body, sig := signedWebhook("RF-unseen")

	first, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Outcome != service.OutcomeConfirmed || first.Reference != local {
		t.Fatalf("first delivery: outcome %s for %q", first.Outcome, first.Reference)
	}

	// The fallback only sees unconfirmed rows, so the redelivery finds
	// nothing. The purchase itself is already safe behind the confirm CAS.
	second, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if second.Outcome != service.OutcomeNoMatchingPurchase {
		t.Errorf("second outcome = %s, want no_matching_purchase", second.Outcome)
	}
	if n := e.ticketCount(t); n != 2 {
		t.Errorf("ticket count = %d after redelivery, want 2", n)
	}
	if e.notifier.count() != 1 {
		t.Errorf("notifier called %d times, want 1", e.notifier.count())
	}
}

func TestReconcile_MidBatchFailureRollsBackEverything(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := initiatePaid(t, e, 42, 3)

	// Take the tickets table away so minting fails after the confirmed
	// flip and the audit row were written inside the same transaction.
	if err := e.db.Exec("ALTER TABLE tickets RENAME TO tickets_hidden").Error; err != nil {
		t.Fatalf("hide tickets table: %v", err)
	}

	body, sig := signedWebhook(ref)
	if _, err := e.reconcile.Reconcile(ctx, body, sig); err == nil {
		t.Fatal("reconcile succeeded without a tickets table")
	}

	if e.purchaseByReference(t, ref).Confirmed {
		t.Error("failed batch left the purchase confirmed")
	}
	if n := e.transactionCount(t); n != 0 {
		t.Errorf("failed batch left %d audit rows", n)
	}
	if e.notifier.count() != 0 {
		t.Errorf("notifier called %d times after a rolled-back batch", e.notifier.count())
	}

	// Redelivery after the fault clears must confirm the full batch.
	if err := e.db.Exec("ALTER TABLE tickets_hidden RENAME TO tickets").Error; err != nil {
		t.Fatalf("restore tickets table: %v", err)
	}
	result, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != service.OutcomeConfirmed {
		t.Fatalf("redelivery outcome = %s, want confirmed", result.Outcome)
	}
	if n := e.ticketCount(t); n != 3 {
		t.Errorf("ticket count = %d after redelivery, want 3", n)
	}
	if n := e.transactionCount(t); n != 1 {
		t.Errorf("audit rows = %d after redelivery, want 1", n)
	}
}

func TestReconcile_CodeSpaceExhaustionRollsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := initiatePaid(t, e, 42, 2)

	// A generator stuck on one code mints the first ticket and then
	// collides until the retry bound trips, failing the whole batch.
	e.reconcile.SetCodeGenerator(func() string { return "#Q1X777" })

	body, sig := signedWebhook(ref)
	_, err := e.reconcile.Reconcile(ctx, body, sig)
	if !errors.Is(err, service.ErrCodeSpaceExhausted) {
		t.Fatalf("error = %v, want ErrCodeSpaceExhausted", err)
	}

	if e.purchaseByReference(t, ref).Confirmed {
		t.Error("exhausted batch left the purchase confirmed")
	}
	if n := e.ticketCount(t); n != 0 {
		t.Errorf("exhausted batch left %d tickets", n)
	}
	if n := e.transactionCount(t); n != 0 {
		t.Errorf("exhausted batch left %d audit rows", n)
	}

	// Redelivery with the real generator succeeds.
	e.reconcile.SetCodeGenerator(service.NewTicketCode)
	result, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != service.OutcomeConfirmed {
		t.Fatalf("redelivery outcome = %s, want confirmed", result.Outcome)
	}
	if len(result.Codes) != 2 {
		t.Errorf("redelivery minted %d codes, want 2", len(result.Codes))
	}
}

func TestReconcile_VerifyFailureLeavesPurchasePending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := initiatePaid(t, e, 42, 2)
	e.gateway.verifyErr = errors.New("timeout")

	body, sig := signedWebhook(ref)
	_, err := e.reconcile.Reconcile(ctx, body, sig)
	if !errors.Is(err, service.ErrVerificationFailed) {
		t.Fatalf("error = %v, want ErrVerificationFailed", err)
	}
	if e.purchaseByReference(t, ref).Confirmed {
		t.Error("failed verification confirmed the purchase")
	}

	// Redelivery after the gateway recovers must succeed.
	e.gateway.verifyErr = nil
	result, err := e.reconcile.Reconcile(ctx, body, sig)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != service.OutcomeConfirmed {
		t.Errorf("redelivery outcome = %s, want confirmed", result.Outcome)
	}
}

func TestReconcile_ReverseOrderBatches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	refOne := initiatePaid(t, e, 42, 1)
	refFive := initiatePaid(t, e, 42, 5)

	// Reconcile in reverse initiation order.
	for _, tc := range []struct {
		ref  string
		want int
	}{
		{refFive, 5},
		{refOne, 1},
	} {
		body, sig := signedWebhook(tc.ref)
		result, err := e.reconcile.Reconcile(ctx, body, sig)
		if err != nil {
			t.Fatalf("Reconcile(%s): %v", tc.ref, err)
		}
		if result.Outcome != service.OutcomeConfirmed {
			t.Fatalf("outcome for %s = %s", tc.ref, result.Outcome)
		}
		if len(result.Codes) != tc.want {
			t.Errorf("batch for %s sized %d, want %d", tc.ref, len(result.Codes), tc.want)
		}
	}

	if n := e.ticketCount(t); n != 6 {
		t.Errorf("total tickets = %d, want 6", n)
	}
}

func TestReconcile_ConcurrentDistinctPurchases(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	const buyers = 8

	refs := make([]string, buyers)
	for i := range refs {
		refs[i] = initiatePaid(t, e, int64(100+i), 2)
	}

	var wg sync.WaitGroup
	outcomes := make([]service.ReconcileOutcome, buyers)
	errs := make([]error, buyers)
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			body, sig := signedWebhook(ref)
			result, err := e.reconcile.Reconcile(ctx, body, sig)
			if err != nil {
				errs[i] = err
				return
			}
			outcomes[i] = result.Outcome
		}(i, ref)
	}
	wg.Wait()

	for i := range refs {
		if errs[i] != nil {
			t.Fatalf("reconcile %d: %v", i, errs[i])
		}
		if outcomes[i] != service.OutcomeConfirmed {
			t.Errorf("reconcile %d outcome = %s", i, outcomes[i])
		}
	}

	if n := e.ticketCount(t); n != 2*buyers {
		t.Errorf("total tickets = %d, want %d", n, 2*buyers)
	}
	assertCodesUniqueAndOwned(t, e, refs)
}

func TestReconcile_ConcurrentDuplicateDeliveries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := initiatePaid(t, e, 42, 3)
	body, sig := signedWebhook(ref)

	const deliveries = 4
	var wg sync.WaitGroup
	outcomes := make([]service.ReconcileOutcome, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := e.reconcile.Reconcile(ctx, body, sig)
			if err != nil {
				t.Errorf("delivery %d: %v", i, err)
				return
			}
			outcomes[i] = result.Outcome
		}(i)
	}
	wg.Wait()

	confirmed := 0
	for _, o := range outcomes {
		if o == service.OutcomeConfirmed {
			confirmed++
		} else if o != service.OutcomeAlreadyProcessed {
			t.Errorf("unexpected outcome %s", o)
		}
	}
	if confirmed != 1 {
		t.Errorf("%d deliveries confirmed, want exactly 1", confirmed)
	}
	if n := e.ticketCount(t); n != 3 {
		t.Errorf("ticket count = %d, want 3", n)
	}
}

// assertCodesUniqueAndOwned checks pairwise code uniqueness across the
// whole dataset and that every purchase's tickets landed with its owner.
func assertCodesUniqueAndOwned(t *testing.T, e *env, refs []string) {
	t.Helper()
	seen := make(map[string]struct{})
	for _, ref := range refs {
		purchase := e.purchaseByReference(t, ref)
		tickets, err := e.tickets.ListByUser(context.Background(), purchase.UserID)
		if err != nil {
			t.Fatalf("list tickets: %v", err)
		}
		if len(tickets) != purchase.Quantity {
			t.Errorf("user %d holds %d tickets, want %d", purchase.UserID, len(tickets), purchase.Quantity)
		}
		for _, ticket := range tickets {
			if _, dup := seen[ticket.Code]; dup {
				t.Errorf("ticket code %q issued twice", ticket.Code)
			}
			seen[ticket.Code] = struct{}{}
		}
	}
}
