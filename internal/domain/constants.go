package domain

// Transaction kinds recorded in the credit ledger.
const (
	TxSignupBonus  = "signup_bonus"
	TxMonthlyBonus = "monthly_bonus"
	TxPurchase     = "purchase"
	TxUsage        = "usage"
)

// Payment statuses.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentExpired   = "EXPIRED"
)
