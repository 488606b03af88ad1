package models

import "time"

// CreditBalance is the one-row-per-user ledger head. Total and Used only ever
// grow; Remaining must equal Total - Used and never go negative. All mutations
// go through the ledger service, which locks this row for the duration of the
// read-modify-write.
type CreditBalance struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Total     int       `gorm:"not null;default:0" json:"total"`
	Used      int       `gorm:"not null;default:0" json:"used"`
	Remaining int       `gorm:"not null;default:0" json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (CreditBalance) TableName() string {
	return "credit_balances"
}
