package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"noirqr/config"
	"noirqr/internal/models"
	"noirqr/internal/repository"
	"noirqr/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentWebhookHandler struct {
	svc       *service.CheckoutService
	auditRepo *repository.AuditLogRepository
	cfg       *config.Config
}

func NewPaymentWebhookHandler(svc *service.CheckoutService, auditRepo *repository.AuditLogRepository, cfg *config.Config) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{svc: svc, auditRepo: auditRepo, cfg: cfg}
}

// Handle processes the payment processor's webhook. Expects JSON
// { "reference": "...", "status": "COMPLETED" } and an optional
// X-Webhook-Signature (HMAC-SHA256 of the body). Unknown references and
// repeated deliveries are acknowledged with 200 so the provider stops
// retrying; the ledger's external ref guard makes redelivery harmless.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.Payment.WebhookSecret != "" {
		sig := c.GetHeader("X-Webhook-Signature")
		if !h.verifySignature(body, sig) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}
	var payload struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference required"})
		return
	}
	if payload.Status != "COMPLETED" && payload.Status != "completed" && payload.Status != "paid" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	p, gr, err := h.svc.Settle(payload.Reference)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			log.Printf("[webhook] payment not found for reference=%s", payload.Reference)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		log.Printf("[webhook] settle failed: reference=%s err=%v", payload.Reference, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settle failed"})
		return
	}
	if !gr.AlreadyApplied {
		_ = h.auditRepo.Create(&models.AuditLog{
			UserID:     &p.UserID,
			Action:     "payment_completed",
			Resource:   "payment",
			ResourceID: payload.Reference,
			IP:         c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.Payment.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
