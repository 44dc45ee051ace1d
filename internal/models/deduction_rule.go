package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DeductionAppliesTo string

const (
	DeductionAppliesRecipient DeductionAppliesTo = "recipient"
	DeductionAppliesAll       DeductionAppliesTo = "all_members"
	DeductionAppliesSpecific  DeductionAppliesTo = "specific"
)

// DeductionRule configures a compulsory deduction taken from the cash round
// recipient (or, unusually, from all members) into a passbook section.
type DeductionRule struct {
	ID        uint `gorm:"primaryKey"`
	SaccoID   uint `gorm:"index;not null"`
	Sacco     SaccoOrganization
	SectionID uint `gorm:"index;not null"`
	Section   PassbookSection

	Amount    decimal.Decimal    `gorm:"type:numeric(12,2);not null"`
	AppliesTo DeductionAppliesTo `gorm:"size:20;not null;default:'recipient'"`

	// No column default: a default would override IsActive=false on create,
	// since zero-valued fields with defaults are omitted from the insert.
	IsActive       bool      `gorm:"not null"`
	EffectiveFrom  time.Time `gorm:"not null"`
	EffectiveUntil *time.Time

	Description string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEffectiveOn reports whether the rule applies on the given date.
func (r *DeductionRule) IsEffectiveOn(date time.Time) bool {
	if !r.IsActive {
		return false
	}
	if date.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && date.After(*r.EffectiveUntil) {
		return false
	}
	return true
}
