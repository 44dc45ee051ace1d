package audit

import (
	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/audit-logs?entity_type=loan&user_id=2&limit=100
//
// Officers see their own sacco's trail; a super admin may filter with
// sacco_id or read across all cooperatives.
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.AuditLog{})

		if ptr, ok := c.Locals(auth.CtxSaccoIDKey).(*uint); ok && ptr != nil {
			q = q.Where("sacco_id = ?", *ptr)
		} else if id := c.QueryInt("sacco_id"); id > 0 {
			q = q.Where("sacco_id = ?", id)
		}

		if entityType := c.Query("entity_type"); entityType != "" {
			q = q.Where("entity_type = ?", entityType)
		}
		if entityID := c.QueryInt("entity_id"); entityID > 0 {
			q = q.Where("entity_id = ?", entityID)
		}
		if userID := c.QueryInt("user_id"); userID > 0 {
			q = q.Where("user_id = ?", userID)
		}

		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		var logs []models.AuditLog
		if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load audit logs")
		}
		return c.JSON(logs)
	}
}
