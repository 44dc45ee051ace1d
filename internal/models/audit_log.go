package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

type AuditLog struct {
	ID      uint `gorm:"primaryKey"`
	SaccoID *uint `gorm:"index"`

	UserID   uint
	UserName string `gorm:"size:100"`

	EntityType  string      `gorm:"size:50;not null"`
	EntityID    uint        `gorm:"not null"`
	Action      AuditAction `gorm:"size:20;not null"`
	Description string      `gorm:"size:500"`

	CreatedAt time.Time
}
