package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanPending   LoanStatus = "pending"
	LoanApproved  LoanStatus = "approved"
	LoanRejected  LoanStatus = "rejected"
	LoanDisbursed LoanStatus = "disbursed"
	LoanActive    LoanStatus = "active"
	LoanPaid      LoanStatus = "paid"
	LoanDefaulted LoanStatus = "defaulted"
)

type LoanType string

const (
	LoanTypeNormal LoanType = "normal"
	// LoanTypeMissedContribution: zero-interest arrears loan raised by
	// meeting settlement when the cooperative fronts a defaulter's weekly
	// contribution. Created directly in disbursed state.
	LoanTypeMissedContribution LoanType = "missed_contribution"
)

// Loan invariant: BalancePrincipal + AmountPaidPrincipal == PrincipalAmount
// at all times, and the same for interest.
type Loan struct {
	ID       uint `gorm:"primaryKey"`
	SaccoID  uint `gorm:"index:idx_loans_sacco_status;not null"`
	Sacco    SaccoOrganization
	MemberID uint `gorm:"index:idx_loans_member_status;not null"`
	Member   SaccoMember

	LoanNumber      string          `gorm:"size:50;uniqueIndex;not null"`
	PrincipalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	InterestRate    decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	InterestAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	ApplicationDate  time.Time `gorm:"not null"`
	ApprovalDate     *time.Time
	DisbursementDate *time.Time
	DueDate          *time.Time
	DurationMonths   uint `gorm:"not null;default:12"`

	AmountPaidPrincipal decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	AmountPaidInterest  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	BalancePrincipal    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	BalanceInterest     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	Status   LoanStatus `gorm:"size:20;not null;default:'pending';index:idx_loans_sacco_status;index:idx_loans_member_status"`
	LoanType LoanType   `gorm:"size:30;not null;default:'normal'"`

	// Meeting that raised this loan; set for missed_contribution loans so a
	// meeting reset can find and remove them.
	MeetingID *uint `gorm:"index"`

	Purpose         string `gorm:"size:500"`
	Notes           string `gorm:"size:500"`
	ApprovedBy      *uint
	RejectionReason string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalBalance is the remaining principal plus interest.
func (l *Loan) TotalBalance() decimal.Decimal {
	return l.BalancePrincipal.Add(l.BalanceInterest)
}

// IsOverdue reports whether the due date has passed on an unpaid loan.
func (l *Loan) IsOverdue(now time.Time) bool {
	if l.DueDate == nil || l.Status == LoanPaid || l.Status == LoanRejected {
		return false
	}
	return now.After(*l.DueDate)
}

type LoanPayment struct {
	ID     uint `gorm:"primaryKey"`
	LoanID uint `gorm:"index;not null"`
	Loan   Loan

	PaymentDate     time.Time       `gorm:"not null"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PrincipalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	InterestAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	PaymentMethod   string `gorm:"size:50"`
	ReferenceNumber string `gorm:"size:100"`
	Notes           string `gorm:"size:255"`
	RecordedBy      *uint

	// Passbook entry for the principal portion.
	EntryID *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

type LoanGuarantor struct {
	ID          uint `gorm:"primaryKey"`
	LoanID      uint `gorm:"uniqueIndex:idx_loan_guarantor;not null"`
	Loan        Loan
	GuarantorID uint `gorm:"uniqueIndex:idx_loan_guarantor;not null"`
	Guarantor   SaccoMember `gorm:"foreignKey:GuarantorID"`

	GuaranteeAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsActive        bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
