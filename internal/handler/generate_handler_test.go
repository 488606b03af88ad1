package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"noirqr/config"
	"noirqr/internal/models"
	"noirqr/internal/service"
	"noirqr/pkg/qr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerateRouter(t *testing.T) (*gin.Engine, *service.LedgerService, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	u := &models.User{Email: "gen@example.com", Name: "Gen User"}
	require.NoError(t, db.Create(u).Error)

	cfg := &config.Config{
		Credits: config.CreditsConfig{SignupBonus: 100, MonthlyBonus: 100},
		QR: config.QRConfig{
			MaxBatchSize: 10000,
			DefaultSize:  256,
			MaxSize:      1024,
			UploadFolder: "qr-batches",
			SyncBatchMax: 5,
		},
	}
	ledger := service.NewLedgerService(db, &cfg.Credits)
	h := NewGenerateHandler(cfg, ledger, qr.DefaultEncoder{}, nil)

	r := gin.New()
	r.POST("/api/v1/generate", asUser(u.ID), h.Generate)
	return r, ledger, u
}

func TestGenerateBatch(t *testing.T) {
	r, ledger, u := newGenerateRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/generate", gin.H{
		"items": []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		BatchID string          `json:"batch_id"`
		Items   []GeneratedItem `json:"items"`
		Balance struct {
			Used      int `json:"used"`
			Remaining int `json:"remaining"`
		} `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, 3, resp.Balance.Used)
	assert.Equal(t, 97, resp.Balance.Remaining)

	for _, item := range resp.Items {
		assert.Empty(t, item.Error)
		png, err := base64.StdEncoding.DecodeString(item.Image)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(png[1:4]), "PNG"))
	}
}

func TestGenerateInsufficientCreditsDoesNotEncode(t *testing.T) {
	r, ledger, u := newGenerateRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)
	_, err = ledger.Consume(u.ID, 98)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/generate", gin.H{
		"items": []string{"a", "b", "c"},
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	bal, err := ledger.Balance(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, bal.Remaining)
}

func TestGenerateRejectsInvalidBatchBeforeCharging(t *testing.T) {
	r, ledger, u := newGenerateRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)

	// empty list
	w := doJSON(t, r, http.MethodPost, "/api/v1/generate", gin.H{"items": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// blank item
	w = doJSON(t, r, http.MethodPost, "/api/v1/generate", gin.H{"items": []string{"ok", ""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// over the synchronous batch cap
	w = doJSON(t, r, http.MethodPost, "/api/v1/generate", gin.H{
		"items": []string{"1", "2", "3", "4", "5", "6"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bal, err := ledger.Balance(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, bal.Remaining)
	assert.Equal(t, 0, bal.Used)
}

func TestGenerateUploadWithoutHosting(t *testing.T) {
	r, ledger, u := newGenerateRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/generate", gin.H{
		"items":  []string{"a"},
		"upload": true,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	bal, err := ledger.Balance(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, bal.Remaining)
}
