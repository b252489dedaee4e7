// Package paystack is a minimal client for the two Paystack endpoints the
// raffle flow needs: transaction initialize and transaction verify.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.paystack.co"

// Metadata travels with the checkout session and comes back on verify,
// carrying the buyer's Telegram identity across the gateway round-trip.
type Metadata struct {
	TelegramID int64 `json:"tg_user_id"`
}

// CheckoutSession is the result of initializing a transaction.
type CheckoutSession struct {
	AuthorizationURL string
	Reference        string
}

// VerifiedTransaction is the authoritative state of a transaction as
// reported by the verify endpoint. The webhook body is only a hint; this
// is what reconciliation trusts.
type VerifiedTransaction struct {
	Status        string
	Amount        int
	CustomerEmail string
	Metadata      Metadata
}

// Client talks to the Paystack REST API with a bounded timeout.
type Client struct {
	secret  string
	baseURL string
	httpc   *http.Client
}

func NewClient(secret string) *Client {
	return &Client{
		secret:  secret,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a local server.
func NewClientWithBaseURL(secret, baseURL string) *Client {
	c := NewClient(secret)
	c.baseURL = baseURL
	return c
}

type initializeRequest struct {
	Email     string   `json:"email"`
	Amount    int      `json:"amount"`
	Reference string   `json:"reference"`
	Metadata  Metadata `json:"metadata"`
}

type initializeResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
	Message string `json:"message"`
}

// InitializeTransaction opens a checkout session for amount (in whole
// currency units; Paystack expects kobo, hence the x100) and returns the
// redirect URL. The reference is chosen by us and echoed back.
func (c *Client) InitializeTransaction(ctx context.Context, amount int, email, reference string, meta Metadata) (*CheckoutSession, error) {
	body := initializeRequest{
		Email:     email,
		Amount:    amount * 100,
		Reference: reference,
		Metadata:  meta,
	}

	var resp initializeResponse
	if err := c.post(ctx, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack initialize rejected: %s", resp.Message)
	}

	return &CheckoutSession{
		AuthorizationURL: resp.Data.AuthorizationURL,
		Reference:        resp.Data.Reference,
	}, nil
}

type verifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Status   string `json:"status"`
		Amount   int    `json:"amount"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata Metadata `json:"metadata"`
	} `json:"data"`
	Message string `json:"message"`
}

// VerifyTransaction asks Paystack for the authoritative status of a
// transaction by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	var resp verifyResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack verify rejected: %s", resp.Message)
	}

	return &VerifiedTransaction{
		Status:        resp.Data.Status,
		Amount:        resp.Data.Amount,
		CustomerEmail: resp.Data.Customer.Email,
		Metadata:      resp.Data.Metadata,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("paystack request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("paystack %s: status %d", req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("paystack decode: %w", err)
	}
	return nil
}
