package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MeetingStatus string

const (
	MeetingPlanned    MeetingStatus = "planned"
	MeetingInProgress MeetingStatus = "in_progress"
	MeetingCompleted  MeetingStatus = "completed"
)

type FundingSource string

const (
	// FundingMember: the member brought the money themselves.
	FundingMember FundingSource = "member"
	// FundingSacco: the cooperative fronted the money for a defaulter;
	// always paired with a missed_contribution loan.
	FundingSacco FundingSource = "sacco"
)

// WeeklyMeeting is the settlement unit. Once completed, its totals are
// derived from the passbook entries tagged with the meeting id; the stored
// columns are a cache, never the source of truth.
type WeeklyMeeting struct {
	ID          uint `gorm:"primaryKey"`
	SaccoID     uint `gorm:"index:idx_meetings_sacco_week;not null"`
	Sacco       SaccoOrganization
	CashRoundID *uint `gorm:"index"`

	MeetingDate time.Time `gorm:"index;not null"`
	WeekNumber  uint      `gorm:"not null;index:idx_meetings_sacco_week"`
	Year        uint      `gorm:"not null;index:idx_meetings_sacco_week"`

	RecipientID *uint
	Recipient   *SaccoMember `gorm:"foreignKey:RecipientID"`

	TotalCollected    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalDeductions   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	AmountToRecipient decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	AmountToBank      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	MembersPresent uint `gorm:"not null;default:0"`
	MembersAbsent  uint `gorm:"not null;default:0"`

	Status      MeetingStatus `gorm:"size:20;not null;default:'planned'"`
	Notes       string        `gorm:"size:500"`
	RecordedBy  *uint
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyContribution is one member's row for one meeting.
type WeeklyContribution struct {
	ID        uint `gorm:"primaryKey"`
	MeetingID uint `gorm:"uniqueIndex:idx_contrib_meeting_member;not null"`
	Meeting   WeeklyMeeting
	MemberID  uint `gorm:"uniqueIndex:idx_contrib_meeting_member;not null"`
	Member    SaccoMember

	// No column default: defaulter rows are created absent and a default
	// would override the false on insert.
	WasPresent        bool            `gorm:"not null"`
	AmountContributed decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	OptionalSavings   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	IsRecipient   bool          `gorm:"not null;default:false"`
	FundingSource FundingSource `gorm:"size:20;not null;default:'member'"`

	// Deduction breakdown by section type, filled for the recipient when
	// compulsory deductions are processed.
	CompulsorySavingsDeduction decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	WelfareDeduction           decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	DevelopmentDeduction       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	OtherDeductions            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalDeductions            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	Notes string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
