package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"noirqr/internal/domain"
	"noirqr/internal/middleware"
	"noirqr/internal/service"

	"github.com/gin-gonic/gin"
)

type CreditsHandler struct {
	ledger *service.LedgerService
}

func NewCreditsHandler(ledger *service.LedgerService) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

// GetBalance returns the user's credit snapshot. Accounts created before the
// ledger existed are provisioned lazily with the signup bonus.
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	bal, err := h.ledger.Balance(userID)
	if errors.Is(err, service.ErrAccountNotFound) {
		bal, err = h.ledger.Provision(userID)
	}
	if err != nil {
		log.Printf("[credits] balance failed: user=%d err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch credits"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"total":        bal.Total,
		"used":         bal.Used,
		"remaining":    bal.Remaining,
		"last_updated": bal.UpdatedAt,
	})
}

// GetTransactions returns recent ledger history, newest first.
func (h *CreditsHandler) GetTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	txns, err := h.ledger.History(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch transactions"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

type UseCreditsRequest struct {
	Count int `json:"count" binding:"required,gt=0"`
}

// UseCredits deducts credits ahead of client-side generation work.
func (h *CreditsHandler) UseCredits(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req UseCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit count"})
		return
	}
	bal, err := h.ledger.Consume(userID, req.Count)
	if err != nil {
		respondConsumeError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": gin.H{"total": bal.Total, "used": bal.Used, "remaining": bal.Remaining},
	})
}

// MonthlyBonus grants the current month's free credits; calling it again in
// the same month is a no-op.
func (h *CreditsHandler) MonthlyBonus(c *gin.Context) {
	userID := middleware.GetUserID(c)
	gr, err := h.ledger.MonthlyBonus(userID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credit balance not found"})
			return
		}
		log.Printf("[credits] monthly bonus failed: user=%d err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add monthly credits"})
		return
	}
	if gr.AlreadyApplied {
		c.JSON(http.StatusOK, gin.H{
			"already_received": true,
			"message":          "Monthly credits already received this month",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"new_balance": gin.H{
			"total":     gr.Balance.Total,
			"used":      gr.Balance.Used,
			"remaining": gr.Balance.Remaining,
		},
	})
}

// Pricing lists the purchasable credit packages. Public.
func (h *CreditsHandler) Pricing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": domain.PricingTiers})
}

func respondConsumeError(c *gin.Context, userID uint, err error) {
	var insufficient *service.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "insufficient credits",
			"remaining": insufficient.Remaining,
			"needed":    insufficient.Requested,
		})
	case errors.Is(err, service.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "credit balance not found"})
	case errors.Is(err, service.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit count"})
	default:
		log.Printf("[credits] consume failed: user=%d err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to use credits"})
	}
}
