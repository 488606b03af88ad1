package payment

import (
	"context"
	"time"
)

// CheckoutRequest describes a hosted checkout for a credit package.
type CheckoutRequest struct {
	OrderID       string // unique order ref; doubles as the idempotency key
	AmountCents   int64
	Currency      string
	Description   string
	Credits       int
	TierID        string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	ExpiresIn     time.Duration
}

// CheckoutSession is the provider-side session the customer is redirected to.
type CheckoutSession struct {
	SessionID   string
	Status      string
	CheckoutURL string
	ExpiresAt   time.Time
}

// SessionStatus is the provider's view of a session when verifying after the fact.
type SessionStatus struct {
	SessionID   string
	Paid        bool
	AmountCents int64
	Currency    string
}

// Provider abstracts the payment processor. The ledger never talks to it
// directly; the checkout service and webhook handler do.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	VerifySession(ctx context.Context, sessionID string) (*SessionStatus, error)
}
