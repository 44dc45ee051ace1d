package admin

import (
	"strings"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateSectionRequest struct {
	Name         string           `json:"name"`
	SectionType  string           `json:"section_type"`
	Description  string           `json:"description"`
	IsCompulsory bool             `json:"is_compulsory"`
	WeeklyAmount *decimal.Decimal `json:"weekly_amount"`
	Withdrawable bool             `json:"withdrawable"`
	DisplayOrder uint             `json:"display_order"`
}

type UpdateSectionRequest struct {
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	IsCompulsory *bool            `json:"is_compulsory"`
	WeeklyAmount *decimal.Decimal `json:"weekly_amount"`
	Withdrawable *bool            `json:"withdrawable"`
	DisplayOrder *uint            `json:"display_order"`
	IsActive     *bool            `json:"is_active"`
}

func validSectionType(s string) bool {
	switch models.SectionType(s) {
	case models.SectionTypeSavings, models.SectionTypeWelfare, models.SectionTypeDevelopment,
		models.SectionTypeLoan, models.SectionTypeEmergency, models.SectionTypeInterest, models.SectionTypeOther:
		return true
	}
	return false
}

func CreateSectionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body CreateSectionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}
		if !validSectionType(body.SectionType) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown section_type")
		}

		section := models.PassbookSection{
			SaccoID:      saccoID,
			Name:         body.Name,
			SectionType:  models.SectionType(body.SectionType),
			Description:  body.Description,
			IsCompulsory: body.IsCompulsory,
			Withdrawable: body.Withdrawable,
			DisplayOrder: body.DisplayOrder,
			IsActive:     true,
		}
		if body.WeeklyAmount != nil {
			section.WeeklyAmount = *body.WeeklyAmount
		}

		if err := database.DB.Create(&section).Error; err != nil {
			return fiber.NewError(fiber.StatusConflict, "could not create section (name taken?)")
		}

		writeAudit(c, &saccoID, "section", section.ID, models.AuditActionCreate, "created section "+section.Name)
		return c.Status(fiber.StatusCreated).JSON(section)
	}
}

func ListSectionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		q := database.DB.Where("sacco_id = ?", saccoID)
		if c.QueryBool("active_only", false) {
			q = q.Where("is_active = ?", true)
		}

		var sections []models.PassbookSection
		if err := q.Order("display_order ASC, id ASC").Find(&sections).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sections")
		}
		return c.JSON(sections)
	}
}

// UpdateSectionHandler also serves deactivation. Sections with ledger
// entries are never deleted, only switched inactive.
func UpdateSectionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid section id")
		}

		var section models.PassbookSection
		if err := database.DB.First(&section, "id = ? AND sacco_id = ?", id, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "section not found")
		}

		var body UpdateSectionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Name != nil {
			section.Name = strings.TrimSpace(*body.Name)
		}
		if body.Description != nil {
			section.Description = *body.Description
		}
		if body.IsCompulsory != nil {
			section.IsCompulsory = *body.IsCompulsory
		}
		if body.WeeklyAmount != nil {
			section.WeeklyAmount = *body.WeeklyAmount
		}
		if body.Withdrawable != nil {
			section.Withdrawable = *body.Withdrawable
		}
		if body.DisplayOrder != nil {
			section.DisplayOrder = *body.DisplayOrder
		}
		if body.IsActive != nil {
			section.IsActive = *body.IsActive
		}

		if err := database.DB.Save(&section).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update section")
		}

		writeAudit(c, &saccoID, "section", section.ID, models.AuditActionUpdate, "updated section "+section.Name)
		return c.JSON(section)
	}
}
