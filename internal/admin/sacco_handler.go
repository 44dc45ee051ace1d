package admin

import (
	"strings"

	"sacco-backend/internal/audit"
	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type CreateSaccoRequest struct {
	Name               string           `json:"name"`
	RegistrationNumber string           `json:"registration_number"`
	Description        string           `json:"description"`
	Email              string           `json:"email"`
	Phone              string           `json:"phone"`
	Address            string           `json:"address"`
	CashRoundAmount    *decimal.Decimal `json:"cash_round_amount"`
	MeetingDay         string           `json:"meeting_day"`
}

type UpdateSaccoRequest struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Email           *string          `json:"email"`
	Phone           *string          `json:"phone"`
	Address         *string          `json:"address"`
	CashRoundAmount *decimal.Decimal `json:"cash_round_amount"`
	MeetingDay      *string          `json:"meeting_day"`
	IsActive        *bool            `json:"is_active"`
}

type CreateOfficerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func writeAudit(c *fiber.Ctx, saccoID *uint, entityType string, entityID uint, action models.AuditAction, description string) {
	userID := auth.CurrentUserID(c)
	if userID == nil {
		return
	}

	var user models.User
	if err := database.DB.First(&user, *userID).Error; err != nil {
		return
	}

	// Best effort: a failed audit row never fails the request.
	_ = audit.WriteLog(audit.LogOptions{
		SaccoID:     saccoID,
		UserID:      user.ID,
		UserName:    user.Name,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: description,
	})
}

func CreateSaccoHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaccoRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}

		sacco := models.SaccoOrganization{
			Name:               body.Name,
			RegistrationNumber: strings.TrimSpace(body.RegistrationNumber),
			Description:        body.Description,
			Email:              body.Email,
			Phone:              body.Phone,
			Address:            body.Address,
			MeetingDay:         body.MeetingDay,
			IsActive:           true,
		}
		if body.CashRoundAmount != nil {
			sacco.CashRoundAmount = *body.CashRoundAmount
		}

		if err := database.DB.Create(&sacco).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create sacco")
		}

		writeAudit(c, &sacco.ID, "sacco", sacco.ID, models.AuditActionCreate, "created sacco "+sacco.Name)
		return c.Status(fiber.StatusCreated).JSON(sacco)
	}
}

func ListSaccosHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var saccos []models.SaccoOrganization
		if err := database.DB.Order("name ASC").Find(&saccos).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load saccos")
		}
		return c.JSON(saccos)
	}
}

func UpdateSaccoHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid sacco id")
		}

		var sacco models.SaccoOrganization
		if err := database.DB.First(&sacco, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "sacco not found")
		}

		var body UpdateSaccoRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Name != nil {
			sacco.Name = strings.TrimSpace(*body.Name)
		}
		if body.Description != nil {
			sacco.Description = *body.Description
		}
		if body.Email != nil {
			sacco.Email = *body.Email
		}
		if body.Phone != nil {
			sacco.Phone = *body.Phone
		}
		if body.Address != nil {
			sacco.Address = *body.Address
		}
		if body.CashRoundAmount != nil {
			sacco.CashRoundAmount = *body.CashRoundAmount
		}
		if body.MeetingDay != nil {
			sacco.MeetingDay = *body.MeetingDay
		}
		if body.IsActive != nil {
			sacco.IsActive = *body.IsActive
		}

		if err := database.DB.Save(&sacco).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update sacco")
		}

		writeAudit(c, &sacco.ID, "sacco", sacco.ID, models.AuditActionUpdate, "updated sacco "+sacco.Name)
		return c.JSON(sacco)
	}
}

// CreateOfficerHandler creates an officer account bound to one sacco.
func CreateOfficerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := c.ParamsInt("id")
		if err != nil || saccoID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid sacco id")
		}

		var sacco models.SaccoOrganization
		if err := database.DB.First(&sacco, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "sacco not found")
		}

		var body CreateOfficerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}

		user := models.User{
			SaccoID:      &sacco.ID,
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleOfficer,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusConflict, "could not create officer (email taken?)")
		}

		writeAudit(c, &sacco.ID, "user", user.ID, models.AuditActionCreate, "created officer "+user.Email)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":       user.ID,
			"name":     user.Name,
			"email":    user.Email,
			"role":     user.Role,
			"sacco_id": user.SaccoID,
		})
	}
}
