package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"noirqr/config"
	"noirqr/internal/models"
	"noirqr/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.CreditBalance{},
		&models.CreditTransaction{},
		&models.Payment{},
		&models.AuditLog{},
	))
	return db
}

// asUser stands in for AuthRequired in tests.
func asUser(id uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", id)
		c.Next()
	}
}

func newCreditsRouter(t *testing.T) (*gin.Engine, *service.LedgerService, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	u := &models.User{Email: "api@example.com", Name: "API User"}
	require.NoError(t, db.Create(u).Error)

	ledger := service.NewLedgerService(db, &config.CreditsConfig{SignupBonus: 100, MonthlyBonus: 100})
	h := NewCreditsHandler(ledger)

	r := gin.New()
	grp := r.Group("/api/v1/credits", asUser(u.ID))
	grp.GET("/balance", h.GetBalance)
	grp.GET("/transactions", h.GetTransactions)
	grp.POST("/use", h.UseCredits)
	grp.POST("/monthly-bonus", h.MonthlyBonus)
	r.GET("/api/v1/pricing", h.Pricing)
	return r, ledger, u
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetBalanceProvisionsLazily(t *testing.T) {
	r, _, _ := newCreditsRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/credits/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var resp struct {
		Total     int `json:"total"`
		Used      int `json:"used"`
		Remaining int `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp.Total)
	assert.Equal(t, 0, resp.Used)
	assert.Equal(t, 100, resp.Remaining)
}

func TestUseCredits(t *testing.T) {
	r, ledger, u := newCreditsRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/credits/use", gin.H{"count": 40})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Balance struct {
			Remaining int `json:"remaining"`
			Used      int `json:"used"`
		} `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 40, resp.Balance.Used)
	assert.Equal(t, 60, resp.Balance.Remaining)
}

func TestUseCreditsInsufficient(t *testing.T) {
	r, ledger, u := newCreditsRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/credits/use", gin.H{"count": 5000})
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp struct {
		Error     string `json:"error"`
		Remaining int    `json:"remaining"`
		Needed    int    `json:"needed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient credits", resp.Error)
	assert.Equal(t, 100, resp.Remaining)
	assert.Equal(t, 5000, resp.Needed)
}

func TestUseCreditsBadRequest(t *testing.T) {
	r, _, _ := newCreditsRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/credits/use", gin.H{"count": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/credits/use", gin.H{"count": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTransactions(t *testing.T) {
	r, ledger, u := newCreditsRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)
	_, err = ledger.Consume(u.ID, 10)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/v1/credits/transactions?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Transactions []struct {
			Kind    string `json:"kind"`
			Credits int    `json:"credits"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Transactions, 2)
	assert.Equal(t, "usage", resp.Transactions[0].Kind)
	assert.Equal(t, "signup_bonus", resp.Transactions[1].Kind)
}

func TestMonthlyBonusEndpoint(t *testing.T) {
	r, ledger, u := newCreditsRouter(t)
	_, err := ledger.Provision(u.ID)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/credits/monthly-bonus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first struct {
		Success    bool `json:"success"`
		NewBalance struct {
			Remaining int `json:"remaining"`
		} `json:"new_balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.True(t, first.Success)
	assert.Equal(t, 200, first.NewBalance.Remaining)

	w = doJSON(t, r, http.MethodPost, "/api/v1/credits/monthly-bonus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		AlreadyReceived bool `json:"already_received"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.AlreadyReceived)
}

func TestPricingPublic(t *testing.T) {
	r, _, _ := newCreditsRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/pricing", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tiers []struct {
			ID         string `json:"id"`
			PriceCents int64  `json:"price_cents"`
			Credits    int    `json:"credits"`
		} `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tiers, 10)
	assert.Equal(t, "tier-1", resp.Tiers[0].ID)
	assert.EqualValues(t, 500, resp.Tiers[0].PriceCents)
	assert.Equal(t, 1000, resp.Tiers[0].Credits)
}
