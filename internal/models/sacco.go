package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaccoOrganization is the tenant: one savings cooperative.
type SaccoOrganization struct {
	ID                 uint   `gorm:"primaryKey"`
	Name               string `gorm:"size:255;not null"`
	RegistrationNumber string `gorm:"size:100;uniqueIndex"`
	Description        string `gorm:"size:500"`
	Email              string `gorm:"size:100"`
	Phone              string `gorm:"size:20"`
	Address            string `gorm:"size:255"`

	// Standard weekly contribution per member, used as fallback when a
	// defaulter is recorded without an explicit amount.
	CashRoundAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	MeetingDay      string          `gorm:"size:20;default:'Saturday'"`

	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
