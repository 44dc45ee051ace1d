package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalDisbursed WithdrawalStatus = "disbursed"
)

// Withdrawal reserves member funds while pending or approved: available
// balance calculations subtract the allocations of every withdrawal in
// those two states. Rejection releases the reservation implicitly.
type Withdrawal struct {
	ID       uint `gorm:"primaryKey"`
	SaccoID  uint `gorm:"index;not null"`
	Sacco    SaccoOrganization
	MemberID uint `gorm:"index:idx_withdrawals_member_status;not null"`
	Member   SaccoMember

	WithdrawalNumber string          `gorm:"size:50;uniqueIndex;not null"`
	RequestDate      time.Time       `gorm:"not null"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Reason           string          `gorm:"size:255"`
	Notes            string          `gorm:"size:255"`

	Status WithdrawalStatus `gorm:"size:20;not null;default:'pending';index:idx_withdrawals_member_status"`

	RequestedBy      *uint
	ApprovedBy       *uint
	ApprovalDate     *time.Time
	DisbursementDate *time.Time
	RejectionReason  string `gorm:"size:255"`

	Allocations []WithdrawalAllocation

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithdrawalAllocation draws part of a withdrawal from one section.
// Allocation amounts always sum to exactly Withdrawal.Amount, and only
// withdrawable sections are legal targets.
type WithdrawalAllocation struct {
	ID           uint `gorm:"primaryKey"`
	WithdrawalID uint `gorm:"index;not null"`
	SectionID    uint `gorm:"index;not null"`
	Section      PassbookSection

	Amount decimal.Decimal `gorm:"type:numeric(12,2);not null"`

	// Passbook debit entry written at disbursement.
	EntryID *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}
