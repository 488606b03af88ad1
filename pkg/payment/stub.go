package payment

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StubProvider is a no-op provider for development; every session it issues
// verifies as paid.
type StubProvider struct{}

func (s *StubProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	id := fmt.Sprintf("stub_%s_%d", req.OrderID, time.Now().UnixNano())
	return &CheckoutSession{
		SessionID:   id,
		Status:      "PENDING",
		CheckoutURL: "",
		ExpiresAt:   time.Now().Add(req.ExpiresIn),
	}, nil
}

func (s *StubProvider) VerifySession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	return &SessionStatus{
		SessionID: sessionID,
		Paid:      strings.HasPrefix(sessionID, "stub_"),
	}, nil
}
