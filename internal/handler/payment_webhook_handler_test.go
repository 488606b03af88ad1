package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"noirqr/config"
	"noirqr/internal/models"
	"noirqr/internal/repository"
	"noirqr/internal/service"
	"noirqr/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubCheckoutProvider struct{ seq int }

func (p *stubCheckoutProvider) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	p.seq++
	return &payment.CheckoutSession{
		SessionID:   fmt.Sprintf("hook_sess_%d", p.seq),
		Status:      "open",
		CheckoutURL: "https://pay.example.com/checkout",
		ExpiresAt:   time.Now().Add(req.ExpiresIn),
	}, nil
}

func (p *stubCheckoutProvider) VerifySession(_ context.Context, sessionID string) (*payment.SessionStatus, error) {
	return &payment.SessionStatus{SessionID: sessionID, Paid: true}, nil
}

func newWebhookFixture(t *testing.T, secret string) (*gin.Engine, *service.LedgerService, *gorm.DB, string, uint) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	cfg := &config.Config{
		Payment: config.PaymentConfig{
			WebhookSecret:  secret,
			CheckoutExpiry: 30 * time.Minute,
		},
		Credits: config.CreditsConfig{SignupBonus: 100, MonthlyBonus: 100},
	}
	ledger := service.NewLedgerService(db, &cfg.Credits)
	checkoutSvc := service.NewCheckoutService(cfg, &stubCheckoutProvider{}, repository.NewPaymentRepository(db), ledger)
	h := NewPaymentWebhookHandler(checkoutSvc, repository.NewAuditLogRepository(db), cfg)

	u := &models.User{Email: "hooked@example.com", Name: "Hooked"}
	require.NoError(t, db.Create(u).Error)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)
	_, session, err := checkoutSvc.CreateCheckout(context.Background(), u.ID, u.Email, "tier-1")
	require.NoError(t, err)

	r := gin.New()
	r.POST("/api/v1/webhooks/payment", h.Handle)
	return r, ledger, db, session.SessionID, u.ID
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookSettlesPayment(t *testing.T) {
	r, ledger, db, sessionID, userID := newWebhookFixture(t, "hook-secret")

	body, _ := json.Marshal(gin.H{"reference": sessionID, "status": "COMPLETED"})
	w := postWebhook(r, body, sign("hook-secret", body))
	require.Equal(t, http.StatusOK, w.Code)

	bal, err := ledger.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 1100, bal.Remaining)

	var p models.Payment
	require.NoError(t, db.Where("provider_ref = ?", sessionID).First(&p).Error)
	assert.Equal(t, "COMPLETED", p.Status)

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "payment_completed").Count(&audits).Error)
	assert.EqualValues(t, 1, audits)
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	r, ledger, db, sessionID, userID := newWebhookFixture(t, "hook-secret")

	body, _ := json.Marshal(gin.H{"reference": sessionID, "status": "COMPLETED"})
	for i := 0; i < 3; i++ {
		w := postWebhook(r, body, sign("hook-secret", body))
		require.Equal(t, http.StatusOK, w.Code)
	}

	bal, err := ledger.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 1100, bal.Remaining)

	// only the delivery that actually credited is audited
	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "payment_completed").Count(&audits).Error)
	assert.EqualValues(t, 1, audits)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	r, ledger, _, sessionID, userID := newWebhookFixture(t, "hook-secret")

	body, _ := json.Marshal(gin.H{"reference": sessionID, "status": "COMPLETED"})
	w := postWebhook(r, body, sign("wrong-secret", body))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	bal, err := ledger.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 100, bal.Remaining)
}

func TestWebhookIgnoresNonCompletedStatus(t *testing.T) {
	r, ledger, _, sessionID, userID := newWebhookFixture(t, "")

	body, _ := json.Marshal(gin.H{"reference": sessionID, "status": "FAILED"})
	w := postWebhook(r, body, "")
	require.Equal(t, http.StatusOK, w.Code)

	bal, err := ledger.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 100, bal.Remaining)
}

func TestWebhookUnknownReferenceAcked(t *testing.T) {
	r, _, _, _, _ := newWebhookFixture(t, "")

	body, _ := json.Marshal(gin.H{"reference": "sess_unknown", "status": "COMPLETED"})
	w := postWebhook(r, body, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookRequiresReference(t *testing.T) {
	r, _, _, _, _ := newWebhookFixture(t, "")

	body, _ := json.Marshal(gin.H{"status": "COMPLETED"})
	w := postWebhook(r, body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
