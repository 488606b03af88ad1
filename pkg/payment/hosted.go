package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HostedProvider drives a hosted-checkout payment API over HTTP. The customer
// is redirected to the returned checkout URL; the processor confirms via the
// payment webhook or the verify endpoint.
type HostedProvider struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewHostedProvider(baseURL, apiKey string) *HostedProvider {
	return &HostedProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type hostedCheckoutReq struct {
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"` // smallest currency unit
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	CustomerEmail string `json:"customer_email,omitempty"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
	ExpiresInSec  int64  `json:"expires_in_sec,omitempty"`
}

type hostedCheckoutResp struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (p *HostedProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	payload := hostedCheckoutReq{
		OrderID:       req.OrderID,
		Amount:        req.AmountCents,
		Currency:      req.Currency,
		Description:   req.Description,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	}
	if req.ExpiresIn > 0 {
		payload.ExpiresInSec = int64(req.ExpiresIn.Seconds())
	}
	var out hostedCheckoutResp
	if err := p.post(ctx, "/v1/checkout/sessions", payload, &out); err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	return &CheckoutSession{
		SessionID:   out.SessionID,
		Status:      out.Status,
		CheckoutURL: out.CheckoutURL,
		ExpiresAt:   time.Unix(out.ExpiresAt, 0),
	}, nil
}

type hostedSessionResp struct {
	SessionID     string `json:"session_id"`
	PaymentStatus string `json:"payment_status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

func (p *HostedProvider) VerifySession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify session %s: status %d", sessionID, resp.StatusCode)
	}
	var out hostedSessionResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &SessionStatus{
		SessionID:   out.SessionID,
		Paid:        out.PaymentStatus == "paid" || out.PaymentStatus == "COMPLETED",
		AmountCents: out.Amount,
		Currency:    out.Currency,
	}, nil
}

func (p *HostedProvider) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
