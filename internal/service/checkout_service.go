package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"noirqr/config"
	"noirqr/internal/domain"
	"noirqr/internal/models"
	"noirqr/internal/repository"
	"noirqr/pkg/payment"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUnknownTier         = errors.New("unknown pricing tier")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
)

// CheckoutService drives the purchase flow: hosted checkout creation, then
// crediting through the ledger once the processor confirms. The checkout
// session id is the grant's external ref, so webhook delivery and manual
// verification can both run (and retry) without double-crediting.
type CheckoutService struct {
	cfg         *config.Config
	provider    payment.Provider
	paymentRepo *repository.PaymentRepository
	ledger      *LedgerService
}

func NewCheckoutService(cfg *config.Config, provider payment.Provider, paymentRepo *repository.PaymentRepository, ledger *LedgerService) *CheckoutService {
	return &CheckoutService{cfg: cfg, provider: provider, paymentRepo: paymentRepo, ledger: ledger}
}

// CreateCheckout opens a provider session for the tier and records the
// pending payment.
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID uint, email, tierID string) (*models.Payment, *payment.CheckoutSession, error) {
	tier := domain.TierByID(tierID)
	if tier == nil {
		return nil, nil, ErrUnknownTier
	}
	orderID := uuid.NewString()
	session, err := s.provider.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:       orderID,
		AmountCents:   tier.PriceCents,
		Currency:      "USD",
		Description:   fmt.Sprintf("%s Package - %d QR credits", tier.Name, tier.Credits),
		Credits:       tier.Credits,
		TierID:        tier.ID,
		CustomerEmail: email,
		SuccessURL:    s.cfg.Payment.SuccessURL,
		CancelURL:     s.cfg.Payment.CancelURL,
		ExpiresIn:     s.cfg.Payment.CheckoutExpiry,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("checkout session: %w", err)
	}
	p := &models.Payment{
		UserID:         userID,
		TierID:         tier.ID,
		Credits:        tier.Credits,
		AmountCents:    tier.PriceCents,
		Currency:       "USD",
		Provider:       "hosted",
		ProviderRef:    session.SessionID,
		Status:         domain.PaymentPending,
		IdempotencyKey: orderID,
		ExpiresAt:      &session.ExpiresAt,
	}
	if err := s.paymentRepo.Create(p); err != nil {
		return nil, nil, err
	}
	return p, session, nil
}

// VerifyAndCredit is the manual verification path (success-page polling).
// It asks the provider whether the session is paid and then settles it.
func (s *CheckoutService) VerifyAndCredit(ctx context.Context, userID uint, sessionID string) (*GrantResult, error) {
	status, err := s.provider.VerifySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	if !status.Paid {
		return nil, ErrPaymentNotCompleted
	}
	p, err := s.paymentRepo.GetByProviderRef(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return s.settle(p)
}

// Settle credits the payment's account and marks the payment completed.
// Idempotent: a session already granted returns AlreadyApplied.
func (s *CheckoutService) Settle(reference string) (*models.Payment, *GrantResult, error) {
	p, err := s.paymentRepo.GetByProviderRef(reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}
	gr, err := s.settle(p)
	if err != nil {
		return p, nil, err
	}
	return p, gr, nil
}

func (s *CheckoutService) settle(p *models.Payment) (*GrantResult, error) {
	desc := fmt.Sprintf("Purchased %d QR credits for $%.2f", p.Credits, float64(p.AmountCents)/100)
	gr, err := s.ledger.Grant(p.UserID, domain.TxPurchase, p.Credits, p.AmountCents, desc, p.ProviderRef)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentCompleted {
		now := time.Now()
		p.Status = domain.PaymentCompleted
		p.CompletedAt = &now
		if err := s.paymentRepo.Update(p); err != nil {
			return gr, err
		}
	}
	return gr, nil
}
