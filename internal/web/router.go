// Package web exposes the HTTP surface: the Paystack webhook endpoint and
// a health check.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"raffle-bot/internal/paystack"
	"raffle-bot/internal/service"
)

// Reconciler is the slice of the reconcile service the webhook handler
// needs; tests substitute fakes.
type Reconciler interface {
	Reconcile(ctx context.Context, body []byte, signatureHeader string) (*service.ReconcileResult, error)
}

// maxWebhookBody bounds how much of an untrusted request body is read.
const maxWebhookBody = 1 << 20

type webhookResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Router builds the HTTP handler.
func Router(reconciler Reconciler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health)
	r.Post("/webhook/paystack", paystackWebhook(reconciler))

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// paystackWebhook adapts reconciliation outcomes to what the gateway's
// retry policy expects: application-level no-ops answer 200 so the sender
// stops retrying, a forged signature answers 401, and a failed
// re-verification answers 502 to invite redelivery.
func paystackWebhook(reconciler Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			respond(w, http.StatusBadRequest, webhookResponse{OK: false, Reason: "unreadable body"})
			return
		}

		result, err := reconciler.Reconcile(r.Context(), body, r.Header.Get(paystack.SignatureHeader))
		switch {
		case errors.Is(err, service.ErrAuthenticityFailed):
			respond(w, http.StatusUnauthorized, webhookResponse{OK: false, Reason: "invalid signature"})
		case errors.Is(err, service.ErrMalformedPayload):
			respond(w, http.StatusOK, webhookResponse{OK: false, Reason: "no reference"})
		case errors.Is(err, service.ErrVerificationFailed):
			respond(w, http.StatusBadGateway, webhookResponse{OK: false, Reason: "verification unavailable"})
		case err != nil:
			log.Printf("webhook reconcile: %v", err)
			respond(w, http.StatusInternalServerError, webhookResponse{OK: false, Reason: "internal error"})
		case result.Outcome == service.OutcomeConfirmed:
			respond(w, http.StatusOK, webhookResponse{OK: true})
		default:
			respond(w, http.StatusOK, webhookResponse{OK: false, Reason: string(result.Outcome)})
		}
	}
}

func respond(w http.ResponseWriter, status int, body webhookResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write webhook response: %v", err)
	}
}
