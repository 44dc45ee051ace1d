package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashRoundStatus string

const (
	CashRoundPlanned   CashRoundStatus = "planned"
	CashRoundActive    CashRoundStatus = "active"
	CashRoundCompleted CashRoundStatus = "completed"
)

// CashRound is one full rotation: every active member receives the weekly
// pot exactly once, so num_weeks always equals the active member count.
type CashRound struct {
	ID      uint `gorm:"primaryKey"`
	SaccoID uint `gorm:"index;not null"`
	Sacco   SaccoOrganization

	Name            string `gorm:"size:100;not null"`
	RoundNumber     uint   `gorm:"not null"`
	StartDate       time.Time
	ExpectedEndDate time.Time
	WeeklyAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	NumWeeks        uint            `gorm:"not null"`

	Status    CashRoundStatus `gorm:"size:20;not null;default:'planned'"`
	CreatedBy *uint
	Notes     string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CashRoundMember struct {
	ID          uint `gorm:"primaryKey"`
	CashRoundID uint `gorm:"uniqueIndex:idx_round_member;not null"`
	CashRound   CashRound
	MemberID    uint `gorm:"uniqueIndex:idx_round_member;not null"`
	Member      SaccoMember

	PositionInRotation uint `gorm:"not null"`
	IsActive           bool `gorm:"not null;default:true"`
	LeftAt             *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CashRoundSchedule tracks whose turn it is. CurrentPosition always indexes
// a member in RotationOrder and is mutated only inside the same transaction
// as the meeting completion (or reset) that moves it.
type CashRoundSchedule struct {
	ID          uint `gorm:"primaryKey"`
	SaccoID     uint `gorm:"index;not null"`
	CashRoundID uint `gorm:"uniqueIndex;not null"`
	CashRound   CashRound

	StartDate time.Time
	EndDate   *time.Time
	IsActive  bool `gorm:"not null;default:false"`

	RotationOrder   []uint `gorm:"serializer:json;not null"`
	CurrentPosition uint   `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
