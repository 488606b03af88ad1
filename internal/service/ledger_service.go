package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"noirqr/config"
	"noirqr/internal/domain"
	"noirqr/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("credit balance not found")
	ErrInvalidAmount   = errors.New("credit amount must be positive")
)

// InsufficientCreditsError carries the shortfall so handlers can render an
// accurate upsell prompt.
type InsufficientCreditsError struct {
	Remaining int
	Requested int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d but only %d remaining", e.Requested, e.Remaining)
}

// GrantResult reports the balance after a grant. AlreadyApplied means the
// grant was recorded by an earlier call (same external ref, or monthly bonus
// already taken this month) and nothing was mutated; webhook callers must
// treat that as success.
type GrantResult struct {
	Balance        models.CreditBalance
	AlreadyApplied bool
}

// LedgerService owns the per-user credit balance and its append-only
// transaction trail. Every mutation locks the balance row and writes the
// matching transaction in the same gorm transaction, so a failure anywhere
// rolls the whole unit back.
type LedgerService struct {
	db           *gorm.DB
	signupBonus  int
	monthlyBonus int
}

func NewLedgerService(db *gorm.DB, cfg *config.CreditsConfig) *LedgerService {
	return &LedgerService{db: db, signupBonus: cfg.SignupBonus, monthlyBonus: cfg.MonthlyBonus}
}

// Provision creates the balance row plus the signup bonus transaction for a
// new user. Safe to call twice: a concurrent duplicate loses on the user_id
// unique index and gets the existing row back.
func (s *LedgerService) Provision(userID uint) (*models.CreditBalance, error) {
	bal := models.CreditBalance{
		UserID:    userID,
		Total:     s.signupBonus,
		Used:      0,
		Remaining: s.signupBonus,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bal).Error; err != nil {
			return err
		}
		txn := models.CreditTransaction{
			UserID:      userID,
			Kind:        domain.TxSignupBonus,
			Credits:     s.signupBonus,
			Description: fmt.Sprintf("Free signup bonus - %d QR credits", s.signupBonus),
		}
		return tx.Create(&txn).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.Balance(userID)
	}
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// Balance returns the current snapshot without locking.
func (s *LedgerService) Balance(userID uint) (*models.CreditBalance, error) {
	var bal models.CreditBalance
	if err := s.db.Where("user_id = ?", userID).First(&bal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &bal, nil
}

// Grant credits the account. The idempotency condition for the kind is
// re-checked under the row lock: an existing transaction with the same
// externalRef, or an existing monthly bonus this calendar month, turns the
// call into a no-op. When two webhook deliveries race past the pre-check the
// unique index on external_ref is the final arbiter and the loser is
// reclassified as AlreadyApplied rather than an error.
func (s *LedgerService) Grant(userID uint, kind string, credits int, amountCents int64, description, externalRef string) (*GrantResult, error) {
	if credits <= 0 {
		return nil, ErrInvalidAmount
	}
	var res GrantResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		bal, err := lockBalance(tx, userID)
		if err != nil {
			return err
		}
		if externalRef != "" {
			var n int64
			if err := tx.Model(&models.CreditTransaction{}).
				Where("external_ref = ?", externalRef).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				res = GrantResult{Balance: *bal, AlreadyApplied: true}
				return nil
			}
		}
		if kind == domain.TxMonthlyBonus {
			applied, err := monthlyBonusApplied(tx, userID, time.Now().UTC())
			if err != nil {
				return err
			}
			if applied {
				res = GrantResult{Balance: *bal, AlreadyApplied: true}
				return nil
			}
		}
		bal.Total += credits
		bal.Remaining += credits
		if err := tx.Model(bal).Updates(map[string]interface{}{
			"total":     bal.Total,
			"remaining": bal.Remaining,
		}).Error; err != nil {
			return err
		}
		txn := models.CreditTransaction{
			UserID:      userID,
			Kind:        kind,
			AmountCents: amountCents,
			Credits:     credits,
			Description: description,
		}
		if externalRef != "" {
			txn.ExternalRef = &externalRef
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		res = GrantResult{Balance: *bal}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the external_ref race: the credits are already on the books.
		log.Printf("[ledger] duplicate grant ref=%s user=%d, treating as already applied", externalRef, userID)
		bal, berr := s.Balance(userID)
		if berr != nil {
			return nil, berr
		}
		return &GrantResult{Balance: *bal, AlreadyApplied: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Consume deducts count credits for a generation run. The balance row stays
// locked from the read to the commit so two concurrent consumes cannot both
// pass the remaining check.
func (s *LedgerService) Consume(userID uint, count int) (*models.CreditBalance, error) {
	if count <= 0 {
		return nil, ErrInvalidAmount
	}
	var snapshot models.CreditBalance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		bal, err := lockBalance(tx, userID)
		if err != nil {
			return err
		}
		if bal.Remaining < count {
			return &InsufficientCreditsError{Remaining: bal.Remaining, Requested: count}
		}
		bal.Used += count
		bal.Remaining -= count
		if err := tx.Model(bal).Updates(map[string]interface{}{
			"used":      bal.Used,
			"remaining": bal.Remaining,
		}).Error; err != nil {
			return err
		}
		txn := models.CreditTransaction{
			UserID:      userID,
			Kind:        domain.TxUsage,
			Credits:     count,
			Description: usageDescription(count),
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		snapshot = *bal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// History returns the most recent transactions, newest first. Ties on
// created_at fall back to insertion order.
func (s *LedgerService) History(userID uint, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var txns []models.CreditTransaction
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// SweepResult summarizes a monthly bonus run.
type SweepResult struct {
	Eligible int `json:"eligible"`
	Granted  int `json:"granted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// MonthlyBonusSweep grants the monthly bonus to every account that has not
// received one this calendar month. The per-account grant re-checks
// eligibility under the row lock, so running the sweep concurrently with user
// triggered bonus claims stays single-grant.
func (s *LedgerService) MonthlyBonusSweep() (*SweepResult, error) {
	monthStart := startOfMonth(time.Now().UTC())
	var ids []uint
	err := s.db.Model(&models.User{}).
		Where("NOT EXISTS (SELECT 1 FROM credit_transactions t WHERE t.user_id = users.id AND t.kind = ? AND t.created_at >= ?)",
			domain.TxMonthlyBonus, monthStart).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	res := &SweepResult{Eligible: len(ids)}
	desc := fmt.Sprintf("Monthly bonus - %d free QR credits", s.monthlyBonus)
	for _, id := range ids {
		gr, err := s.Grant(id, domain.TxMonthlyBonus, s.monthlyBonus, 0, desc, "")
		switch {
		case errors.Is(err, ErrAccountNotFound):
			// user exists but was never provisioned; skip rather than fail the sweep
			res.Skipped++
		case err != nil:
			log.Printf("[ledger] monthly bonus failed for user %d: %v", id, err)
			res.Failed++
		case gr.AlreadyApplied:
			res.Skipped++
		default:
			res.Granted++
		}
	}
	return res, nil
}

// MonthlyBonus grants the calling user's bonus for the current month.
func (s *LedgerService) MonthlyBonus(userID uint) (*GrantResult, error) {
	desc := fmt.Sprintf("Monthly bonus - %d free QR credits", s.monthlyBonus)
	return s.Grant(userID, domain.TxMonthlyBonus, s.monthlyBonus, 0, desc, "")
}

func lockBalance(tx *gorm.DB, userID uint) (*models.CreditBalance, error) {
	q := tx
	if tx.Dialector.Name() == "mysql" {
		// sqlite has no FOR UPDATE; its single writer serializes the unit anyway
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var bal models.CreditBalance
	err := q.Where("user_id = ?", userID).
		First(&bal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &bal, nil
}

func monthlyBonusApplied(tx *gorm.DB, userID uint, now time.Time) (bool, error) {
	var n int64
	err := tx.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND kind = ? AND created_at >= ?", userID, domain.TxMonthlyBonus, startOfMonth(now)).
		Count(&n).Error
	return n > 0, err
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func usageDescription(count int) string {
	if count == 1 {
		return "Generated 1 QR code"
	}
	return fmt.Sprintf("Generated %d QR codes", count)
}
