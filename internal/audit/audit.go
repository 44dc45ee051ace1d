package audit

import (
	"fmt"

	"sacco-backend/internal/database"
	"sacco-backend/internal/models"
)

type LogOptions struct {
	SaccoID     *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
}

// WriteLog appends one audit row. Ledger mutations have their own undo
// mechanisms (reversal entries, meeting reset), so the log is purely a
// who-did-what trail.
func WriteLog(opts LogOptions) error {
	row := models.AuditLog{
		SaccoID:     opts.SaccoID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
	}

	if err := database.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("could not write audit log: %w", err)
	}

	return nil
}
