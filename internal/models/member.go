package models

import "time"

type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "active"
	MemberStatusSuspended MemberStatus = "suspended"
	MemberStatusInactive  MemberStatus = "inactive"
	MemberStatusResigned  MemberStatus = "resigned"
)

// SaccoMember owns one passbook; entries reference the member directly.
type SaccoMember struct {
	ID      uint `gorm:"primaryKey"`
	SaccoID uint `gorm:"index:idx_members_sacco_status;not null"`
	Sacco   SaccoOrganization

	MemberNumber   string `gorm:"size:50;not null;index"`
	PassbookNumber string `gorm:"size:50"`
	Name           string `gorm:"size:255;not null"`
	Phone          string `gorm:"size:20"`
	NationalID     string `gorm:"size:50"`

	Status   MemberStatus `gorm:"size:20;not null;default:'active';index:idx_members_sacco_status"`
	JoinedOn time.Time
	LeftOn   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
