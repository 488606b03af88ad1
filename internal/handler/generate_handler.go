package handler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"

	"noirqr/config"
	"noirqr/internal/middleware"
	"noirqr/internal/service"
	"noirqr/pkg/cloudinary"
	"noirqr/pkg/qr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GenerateHandler struct {
	cfg     *config.Config
	ledger  *service.LedgerService
	encoder qr.Encoder
	cloud   cloudinary.Client
}

func NewGenerateHandler(cfg *config.Config, ledger *service.LedgerService, encoder qr.Encoder, cloud cloudinary.Client) *GenerateHandler {
	return &GenerateHandler{cfg: cfg, ledger: ledger, encoder: encoder, cloud: cloud}
}

type GenerateRequest struct {
	Items  []string `json:"items" binding:"required"`
	Size   int      `json:"size"`
	Level  string   `json:"level"`
	Upload bool     `json:"upload"` // host PNGs on Cloudinary and return URLs
}

type GeneratedItem struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"` // base64 PNG
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Generate consumes one credit per item, then encodes each payload to a PNG.
// Input is validated before credits are touched so a rejected request never
// deducts anything.
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate(&req, h.cfg.QR.SyncBatchMax); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Upload && h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image hosting not configured"})
		return
	}
	bal, err := h.ledger.Consume(userID, len(req.Items))
	if err != nil {
		respondConsumeError(c, userID, err)
		return
	}
	opts := qr.Options{Size: req.Size, Level: req.Level, MaxSize: h.cfg.QR.MaxSize}
	batchID := uuid.NewString()
	results := make([]GeneratedItem, len(req.Items))
	for i, content := range req.Items {
		results[i] = h.encodeItem(c, content, opts, req.Upload, batchID, i)
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id": batchID,
		"items":    results,
		"balance":  gin.H{"total": bal.Total, "used": bal.Used, "remaining": bal.Remaining},
	})
}

func (h *GenerateHandler) encodeItem(c *gin.Context, content string, opts qr.Options, upload bool, batchID string, index int) GeneratedItem {
	item := GeneratedItem{Content: content}
	png, err := h.encoder.Encode(content, opts)
	if err != nil {
		log.Printf("[generate] encode failed: batch=%s index=%d err=%v", batchID, index, err)
		item.Error = "encoding failed"
		return item
	}
	if upload {
		publicID := fmt.Sprintf("%s/%d", batchID, index)
		url, err := h.cloud.UploadImage(c.Request.Context(), bytes.NewReader(png), h.cfg.QR.UploadFolder, publicID)
		if err != nil {
			log.Printf("[generate] upload failed: batch=%s index=%d err=%v", batchID, index, err)
			item.Error = "upload failed"
			return item
		}
		item.URL = url
		return item
	}
	item.Image = base64.StdEncoding.EncodeToString(png)
	return item
}

func (h *GenerateHandler) validate(req *GenerateRequest, maxBatch int) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	if maxBatch <= 0 || maxBatch > h.cfg.QR.MaxBatchSize {
		maxBatch = h.cfg.QR.MaxBatchSize
	}
	if len(req.Items) > maxBatch {
		return fmt.Errorf("batch too large: %d items (max %d)", len(req.Items), maxBatch)
	}
	for i, item := range req.Items {
		if item == "" {
			return fmt.Errorf("item %d is empty", i)
		}
	}
	return nil
}
