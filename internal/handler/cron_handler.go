package handler

import (
	"crypto/subtle"
	"log"
	"net/http"

	"noirqr/config"
	"noirqr/internal/service"

	"github.com/gin-gonic/gin"
)

type CronHandler struct {
	cfg    *config.Config
	ledger *service.LedgerService
}

func NewCronHandler(cfg *config.Config, ledger *service.LedgerService) *CronHandler {
	return &CronHandler{cfg: cfg, ledger: ledger}
}

// MonthlyCredits runs the monthly bonus sweep. Called by an external
// scheduler on the 1st of each month with Authorization: Bearer <CRON_SECRET>.
func (h *CronHandler) MonthlyCredits(c *gin.Context) {
	expected := "Bearer " + h.cfg.Credits.CronSecret
	got := c.GetHeader("Authorization")
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.ledger.MonthlyBonusSweep()
	if err != nil {
		log.Printf("[cron] monthly credits sweep failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to distribute monthly credits"})
		return
	}
	log.Printf("[cron] monthly credits: eligible=%d granted=%d skipped=%d failed=%d",
		res.Eligible, res.Granted, res.Skipped, res.Failed)
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}
