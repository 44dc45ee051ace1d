package admin

import (
	"time"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateRuleRequest struct {
	SectionID      uint            `json:"section_id"`
	Amount         decimal.Decimal `json:"amount"`
	AppliesTo      string          `json:"applies_to"` // defaults to recipient
	EffectiveFrom  string          `json:"effective_from"`
	EffectiveUntil *string         `json:"effective_until"`
	Description    string          `json:"description"`
}

type UpdateRuleRequest struct {
	Amount         *decimal.Decimal `json:"amount"`
	EffectiveUntil *string          `json:"effective_until"`
	IsActive       *bool            `json:"is_active"`
	Description    *string          `json:"description"`
}

func CreateRuleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body CreateRuleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if !body.Amount.IsPositive() {
			return fiber.NewError(fiber.StatusBadRequest, "amount must be greater than 0")
		}

		var section models.PassbookSection
		if err := database.DB.First(&section, "id = ? AND sacco_id = ?", body.SectionID, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "section not found")
		}

		appliesTo := models.DeductionAppliesRecipient
		if body.AppliesTo != "" {
			appliesTo = models.DeductionAppliesTo(body.AppliesTo)
			switch appliesTo {
			case models.DeductionAppliesRecipient, models.DeductionAppliesAll, models.DeductionAppliesSpecific:
			default:
				return fiber.NewError(fiber.StatusBadRequest, "unknown applies_to")
			}
		}

		from := time.Now()
		if body.EffectiveFrom != "" {
			if from, err = time.Parse("2006-01-02", body.EffectiveFrom); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "effective_from must be YYYY-MM-DD")
			}
		}

		var until *time.Time
		if body.EffectiveUntil != nil && *body.EffectiveUntil != "" {
			t, err := time.Parse("2006-01-02", *body.EffectiveUntil)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "effective_until must be YYYY-MM-DD")
			}
			if t.Before(from) {
				return fiber.NewError(fiber.StatusBadRequest, "effective_until cannot precede effective_from")
			}
			until = &t
		}

		rule := models.DeductionRule{
			SaccoID:        saccoID,
			SectionID:      section.ID,
			Amount:         body.Amount,
			AppliesTo:      appliesTo,
			IsActive:       true,
			EffectiveFrom:  from,
			EffectiveUntil: until,
			Description:    body.Description,
		}
		if err := database.DB.Create(&rule).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create rule")
		}

		writeAudit(c, &saccoID, "deduction_rule", rule.ID, models.AuditActionCreate, "created deduction rule for "+section.Name)
		return c.Status(fiber.StatusCreated).JSON(rule)
	}
}

func ListRulesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var rules []models.DeductionRule
		if err := database.DB.Preload("Section").
			Where("sacco_id = ?", saccoID).Order("id ASC").Find(&rules).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load rules")
		}
		return c.JSON(rules)
	}
}

func UpdateRuleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid rule id")
		}

		var rule models.DeductionRule
		if err := database.DB.First(&rule, "id = ? AND sacco_id = ?", id, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "rule not found")
		}

		var body UpdateRuleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Amount != nil {
			if !body.Amount.IsPositive() {
				return fiber.NewError(fiber.StatusBadRequest, "amount must be greater than 0")
			}
			rule.Amount = *body.Amount
		}
		if body.EffectiveUntil != nil {
			if *body.EffectiveUntil == "" {
				rule.EffectiveUntil = nil
			} else {
				t, err := time.Parse("2006-01-02", *body.EffectiveUntil)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "effective_until must be YYYY-MM-DD")
				}
				rule.EffectiveUntil = &t
			}
		}
		if body.IsActive != nil {
			rule.IsActive = *body.IsActive
		}
		if body.Description != nil {
			rule.Description = *body.Description
		}

		if err := database.DB.Save(&rule).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update rule")
		}

		writeAudit(c, &saccoID, "deduction_rule", rule.ID, models.AuditActionUpdate, "updated deduction rule")
		return c.JSON(rule)
	}
}
