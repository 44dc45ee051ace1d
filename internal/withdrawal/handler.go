package withdrawal

import (
	"errors"
	"time"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RequestWithdrawalRequest struct {
	MemberID    uint              `json:"member_id"`
	Amount      decimal.Decimal   `json:"amount"`
	Reason      string            `json:"reason"`
	Allocations []AllocationInput `json:"allocations"` // optional, else greedy
}

type RejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

func mapWithdrawalError(err error, fallback string) error {
	switch {
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrInvalidAllocation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInsufficientFunds):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, fallback)
}

// AvailableHandler shows what a member could withdraw right now, section by
// section.
func AvailableHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		memberID, err := c.ParamsInt("id")
		if err != nil || memberID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid member id")
		}

		var member models.SaccoMember
		if err := database.DB.First(&member, "id = ? AND sacco_id = ?", memberID, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "member not found")
		}

		availability, err := Available(database.DB, saccoID, member.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute availability")
		}

		total := decimal.Zero
		for _, a := range availability {
			total = total.Add(a.Available)
		}

		return c.JSON(fiber.Map{
			"member_id":       member.ID,
			"sections":        availability,
			"total_available": total,
		})
	}
}

func RequestHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body RequestWithdrawalRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.MemberID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "member_id is required")
		}

		var w *models.Withdrawal
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			w, err = Request(tx, saccoID, body.MemberID, body.Amount, body.Reason, body.Allocations, auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapWithdrawalError(err, "could not create withdrawal request")
		}

		return c.Status(fiber.StatusCreated).JSON(w)
	}
}

func ApproveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid withdrawal id")
		}

		var w *models.Withdrawal
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			w, err = Approve(tx, uint(id), auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapWithdrawalError(err, "could not approve withdrawal")
		}
		return c.JSON(w)
	}
}

func RejectHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid withdrawal id")
		}

		var body RejectWithdrawalRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "reason is required")
		}

		var w *models.Withdrawal
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			w, err = Reject(tx, uint(id), body.Reason, auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapWithdrawalError(err, "could not reject withdrawal")
		}
		return c.JSON(w)
	}
}

func DisburseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid withdrawal id")
		}

		var w *models.Withdrawal
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			w, err = Disburse(tx, uint(id), time.Now(), auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapWithdrawalError(err, "could not disburse withdrawal")
		}
		return c.JSON(w)
	}
}

func ListHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		q := database.DB.Preload("Member").Preload("Allocations").Where("sacco_id = ?", saccoID)
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if memberID := c.QueryInt("member_id"); memberID > 0 {
			q = q.Where("member_id = ?", memberID)
		}

		var withdrawals []models.Withdrawal
		if err := q.Order("created_at DESC").Find(&withdrawals).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load withdrawals")
		}
		return c.JSON(withdrawals)
	}
}
