package router

import (
	"time"

	"noirqr/config"
	"noirqr/internal/handler"
	"noirqr/internal/middleware"
	"noirqr/internal/repository"
	"noirqr/internal/service"
	"noirqr/pkg/cloudinary"
	"noirqr/pkg/payment"
	"noirqr/pkg/qr"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, provider payment.Provider, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	ledger := service.NewLedgerService(db, &cfg.Credits)
	authSvc := service.NewAuthService(cfg, userRepo, ledger)
	checkoutSvc := service.NewCheckoutService(cfg, provider, paymentRepo, ledger)
	encoder := qr.DefaultEncoder{}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, userRepo, auditRepo)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, auditRepo)
	creditsHandler := handler.NewCreditsHandler(ledger)
	generateHandler := handler.NewGenerateHandler(cfg, ledger, encoder, cloud)
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc, userRepo, auditRepo)
	webhookHandler := handler.NewPaymentWebhookHandler(checkoutSvc, auditRepo, cfg)
	cronHandler := handler.NewCronHandler(cfg, ledger)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/session", authMw, authHandler.Session)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
		}

		api.GET("/pricing", creditsHandler.Pricing)

		credits := api.Group("/credits")
		credits.Use(authMw)
		{
			credits.GET("/balance", creditsHandler.GetBalance)
			credits.GET("/transactions", creditsHandler.GetTransactions)
			credits.POST("/use", creditsHandler.UseCredits)
			credits.POST("/monthly-bonus", creditsHandler.MonthlyBonus)
		}

		api.POST("/generate", authMw, generateHandler.Generate)

		checkout := api.Group("/checkout")
		checkout.Use(authMw)
		{
			checkout.POST("/session", checkoutHandler.CreateSession)
			checkout.POST("/verify", checkoutHandler.VerifyPayment)
		}

		api.POST("/webhooks/payment", webhookHandler.Handle)
		api.GET("/cron/monthly-credits", cronHandler.MonthlyCredits)
	}

	r.GET("/ws/generate", handler.UpgradeGenerateWS(&cfg.JWT, &cfg.QR, ledger, qr.DefaultEncoder{}))

	return r
}
