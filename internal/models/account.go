package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionIncome  TransactionKind = "income"
	TransactionExpense TransactionKind = "expense"
)

// Transaction categories mirrored into the cooperative's own account.
const (
	CategorySavings          = "sacco_savings"
	CategoryWithdrawal       = "sacco_withdrawal"
	CategoryLoanDisbursement = "loan_disbursement"
	CategoryLoanRepayment    = "loan_repayment"
	CategoryDefaulterCover   = "defaulter_cover"
)

// SaccoAccount is the cooperative's own operating account. Every settlement
// path (meeting completion, loan disbursement, withdrawal disbursement,
// defaulter coverage) mirrors its cash effect here.
type SaccoAccount struct {
	ID      uint `gorm:"primaryKey"`
	SaccoID uint `gorm:"uniqueIndex;not null"`
	Sacco   SaccoOrganization

	Name          string          `gorm:"size:255;not null"`
	BankName      string          `gorm:"size:100"`
	AccountNumber string          `gorm:"size:50"`
	Balance       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AccountTransaction struct {
	ID        uint `gorm:"primaryKey"`
	AccountID uint `gorm:"index;not null"`
	Account   SaccoAccount

	Kind        TransactionKind `gorm:"size:10;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Category    string          `gorm:"size:50;not null"`
	Description string          `gorm:"size:255"`
	Date        time.Time       `gorm:"index;not null"`
	Reference   string          `gorm:"size:64;uniqueIndex"`

	// Back references used by reporting and by meeting reset.
	MeetingID    *uint `gorm:"index"`
	LoanID       *uint `gorm:"index"`
	WithdrawalID *uint `gorm:"index"`

	RecordedBy *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}
