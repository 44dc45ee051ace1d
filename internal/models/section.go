package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SectionType string

const (
	SectionTypeSavings     SectionType = "savings"
	SectionTypeWelfare     SectionType = "welfare"
	SectionTypeDevelopment SectionType = "development"
	SectionTypeLoan        SectionType = "loan"
	SectionTypeEmergency   SectionType = "emergency"
	SectionTypeInterest    SectionType = "interest"
	SectionTypeOther       SectionType = "other"
)

// PassbookSection is a named ledger category ("Compulsory Savings",
// "Welfare", ...) with its own running balance per member. Sections are
// never deleted once entries reference them, only deactivated.
type PassbookSection struct {
	ID      uint `gorm:"primaryKey"`
	SaccoID uint `gorm:"uniqueIndex:idx_sections_sacco_name;not null"`
	Sacco   SaccoOrganization

	Name        string      `gorm:"size:100;not null;uniqueIndex:idx_sections_sacco_name"`
	SectionType SectionType `gorm:"size:20;not null"`
	Description string      `gorm:"size:255"`

	IsCompulsory bool            `gorm:"not null;default:false"`
	WeeklyAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Withdrawable bool            `gorm:"not null;default:false"`

	DisplayOrder uint `gorm:"not null;default:0"`
	IsActive     bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
