package service

import (
	"testing"

	"noirqr/config"
	"noirqr/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: gives every pooled connection its own database
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

func testCreditsConfig() *config.CreditsConfig {
	return &config.CreditsConfig{SignupBonus: 100, MonthlyBonus: 100}
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: "Test User"}
	require.NoError(t, db.Create(u).Error)
	return u
}
