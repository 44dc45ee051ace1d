package admin

import (
	"strings"
	"time"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateMemberRequest struct {
	MemberNumber   string `json:"member_number"`
	PassbookNumber string `json:"passbook_number"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	NationalID     string `json:"national_id"`
	JoinedOn       string `json:"joined_on"` // defaults to today
}

type UpdateMemberRequest struct {
	PassbookNumber *string `json:"passbook_number"`
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	NationalID     *string `json:"national_id"`
	Status         *string `json:"status"`
}

func CreateMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body CreateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.MemberNumber = strings.TrimSpace(body.MemberNumber)
		if body.Name == "" || body.MemberNumber == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name and member_number are required")
		}

		joined := time.Now()
		if body.JoinedOn != "" {
			if joined, err = time.Parse("2006-01-02", body.JoinedOn); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "joined_on must be YYYY-MM-DD")
			}
		}

		var count int64
		database.DB.Model(&models.SaccoMember{}).
			Where("sacco_id = ? AND member_number = ?", saccoID, body.MemberNumber).
			Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "member number already in use")
		}

		member := models.SaccoMember{
			SaccoID:        saccoID,
			MemberNumber:   body.MemberNumber,
			PassbookNumber: body.PassbookNumber,
			Name:           body.Name,
			Phone:          body.Phone,
			NationalID:     body.NationalID,
			Status:         models.MemberStatusActive,
			JoinedOn:       joined,
		}
		if err := database.DB.Create(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create member")
		}

		writeAudit(c, &saccoID, "member", member.ID, models.AuditActionCreate, "registered member "+member.Name)
		return c.Status(fiber.StatusCreated).JSON(member)
	}
}

func ListMembersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		q := database.DB.Where("sacco_id = ?", saccoID)
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if search := c.Query("search"); search != "" {
			like := "%" + search + "%"
			q = q.Where("name LIKE ? OR member_number LIKE ?", like, like)
		}

		var members []models.SaccoMember
		if err := q.Order("member_number ASC").Find(&members).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load members")
		}
		return c.JSON(members)
	}
}

func UpdateMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid member id")
		}

		var member models.SaccoMember
		if err := database.DB.First(&member, "id = ? AND sacco_id = ?", id, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "member not found")
		}

		var body UpdateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.PassbookNumber != nil {
			member.PassbookNumber = *body.PassbookNumber
		}
		if body.Name != nil {
			member.Name = strings.TrimSpace(*body.Name)
		}
		if body.Phone != nil {
			member.Phone = *body.Phone
		}
		if body.NationalID != nil {
			member.NationalID = *body.NationalID
		}
		if body.Status != nil {
			status := models.MemberStatus(*body.Status)
			switch status {
			case models.MemberStatusActive, models.MemberStatusSuspended, models.MemberStatusInactive, models.MemberStatusResigned:
				member.Status = status
				if status == models.MemberStatusResigned && member.LeftOn == nil {
					now := time.Now()
					member.LeftOn = &now
				}
			default:
				return fiber.NewError(fiber.StatusBadRequest, "unknown member status")
			}
		}

		if err := database.DB.Save(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update member")
		}

		writeAudit(c, &saccoID, "member", member.ID, models.AuditActionUpdate, "updated member "+member.Name)
		return c.JSON(member)
	}
}
