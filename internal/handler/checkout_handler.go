package handler

import (
	"errors"
	"log"
	"net/http"

	"noirqr/internal/middleware"
	"noirqr/internal/models"
	"noirqr/internal/repository"
	"noirqr/internal/service"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	svc       *service.CheckoutService
	userRepo  *repository.UserRepository
	auditRepo *repository.AuditLogRepository
}

func NewCheckoutHandler(svc *service.CheckoutService, userRepo *repository.UserRepository, auditRepo *repository.AuditLogRepository) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, userRepo: userRepo, auditRepo: auditRepo}
}

type CreateSessionRequest struct {
	TierID string `json:"tier_id" binding:"required"`
}

// CreateSession opens a hosted checkout for a pricing tier.
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.userRepo.GetByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	p, session, err := h.svc.CreateCheckout(c.Request.Context(), userID, u.Email, req.TierID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownTier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[checkout] create session failed: user=%d tier=%s err=%v", userID, req.TierID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":   session.SessionID,
		"checkout_url": session.CheckoutURL,
		"expires_at":   p.ExpiresAt,
	})
}

type VerifyPaymentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// VerifyPayment is the success-page fallback when the webhook has not landed
// yet: it asks the provider directly and credits the account. Retries and
// webhook races return already_processed instead of double-crediting.
func (h *CheckoutHandler) VerifyPayment(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session ID"})
		return
	}
	gr, err := h.svc.VerifyAndCredit(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotCompleted):
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment not completed"})
		case errors.Is(err, service.ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		default:
			log.Printf("[checkout] verify failed: user=%d session=%s err=%v", userID, req.SessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify payment"})
		}
		return
	}
	if gr.AlreadyApplied {
		c.JSON(http.StatusOK, gin.H{"success": true, "already_processed": true, "message": "Credits already added"})
		return
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &userID,
		Action:     "payment_verified",
		Resource:   "payment",
		ResourceID: req.SessionID,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": gin.H{
			"total":     gr.Balance.Total,
			"used":      gr.Balance.Used,
			"remaining": gr.Balance.Remaining,
		},
	})
}
