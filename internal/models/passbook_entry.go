package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryDirection string

const (
	EntryCredit EntryDirection = "credit" // money into the section
	EntryDebit  EntryDirection = "debit"  // money out of the section
)

// PassbookEntry is the atomic, append-only ledger record. Entries are never
// mutated; corrections are opposite-direction reversal entries. The only
// deletion path is a meeting reset, which must be followed by a balance
// recalculation for every touched (member, section) pair.
//
// For a fixed (member, section), replaying all entries ordered by
// (transaction_date, id) from zero must reproduce every BalanceAfter.
type PassbookEntry struct {
	ID        uint `gorm:"primaryKey"`
	MemberID  uint `gorm:"index:idx_entries_member_section;not null"`
	Member    SaccoMember
	SectionID uint `gorm:"index:idx_entries_member_section;not null"`
	Section   PassbookSection

	TransactionDate time.Time       `gorm:"index;not null"`
	Direction       EntryDirection  `gorm:"size:10;not null"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	BalanceAfter    decimal.Decimal `gorm:"type:numeric(12,2);not null"`

	Description     string `gorm:"size:255"`
	ReferenceNumber string `gorm:"size:100"`
	RecordedBy      *uint

	// Weekly meeting link; set for entries posted by meeting settlement.
	MeetingID  *uint `gorm:"index"`
	WeekNumber *uint

	IsReversal      bool `gorm:"not null;default:false"`
	ReversesEntryID *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}
