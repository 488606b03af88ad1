package models

import "time"

// CreditTransaction is the append-only ledger trail. Rows are immutable once
// written; there is no soft delete and no update path. Credits is always
// positive, the sign is implied by Kind. ExternalRef carries the payment
// session id for purchases and is nil otherwise so the unique index tolerates
// many absent values.
type CreditTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Kind        string    `gorm:"size:30;not null;index" json:"kind"` // signup_bonus, monthly_bonus, purchase, usage
	AmountCents int64     `gorm:"not null;default:0" json:"amount_cents"`
	Credits     int       `gorm:"not null" json:"credits"`
	Description string    `gorm:"size:255" json:"description"`
	ExternalRef *string   `gorm:"uniqueIndex;size:255" json:"external_ref,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
