package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	OAuth      OAuthConfig
	Cloudinary CloudinaryConfig
	Payment    PaymentConfig
	Credits    CreditsConfig
	QR         QRConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type PaymentConfig struct {
	ProviderBaseURL string
	APIKey          string
	WebhookSecret   string
	CheckoutExpiry  time.Duration
	SuccessURL      string
	CancelURL       string
}

type CreditsConfig struct {
	SignupBonus  int
	MonthlyBonus int
	CronSecret   string
}

// QRConfig bounds a single generation request.
type QRConfig struct {
	MaxBatchSize int
	DefaultSize  int
	MaxSize      int
	UploadFolder string
	SyncBatchMax int // larger batches must use the websocket stream
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "8080"),
			Env:          envOr("APP_ENV", "development"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DATABASE_DSN", "noirqr:noirqr@tcp(localhost:3306)/noirqr?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  envOr("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: envOr("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "noirqr",
		},
		OAuth: OAuthConfig{
			GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
		Payment: PaymentConfig{
			ProviderBaseURL: os.Getenv("PAYMENT_PROVIDER_URL"),
			APIKey:          os.Getenv("PAYMENT_API_KEY"),
			WebhookSecret:   os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			CheckoutExpiry:  30 * time.Minute,
			SuccessURL:      envOr("CHECKOUT_SUCCESS_URL", "https://noirqr.app/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:       envOr("CHECKOUT_CANCEL_URL", "https://noirqr.app/?canceled=true"),
		},
		Credits: CreditsConfig{
			SignupBonus:  envOrInt("SIGNUP_BONUS_CREDITS", 100),
			MonthlyBonus: envOrInt("MONTHLY_BONUS_CREDITS", 100),
			CronSecret:   envOr("CRON_SECRET", "dev-cron-secret-change-in-production"),
		},
		QR: QRConfig{
			MaxBatchSize: 10000,
			DefaultSize:  256,
			MaxSize:      1024,
			UploadFolder: "qr-batches",
			SyncBatchMax: 500,
		},
	}
}

// Validate rejects setups that would accept unsigned payment webhooks in
// production. Development runs tolerate a missing secret.
func (p *PaymentConfig) Validate(env string) error {
	if env == "production" && p.ProviderBaseURL != "" && p.WebhookSecret == "" {
		return errors.New("PAYMENT_WEBHOOK_SECRET must be set when a payment provider is configured in production")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
