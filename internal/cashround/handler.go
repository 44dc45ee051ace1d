package cashround

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

type CreateRoundRequest struct {
	Name          string          `json:"name"`
	StartDate     string          `json:"start_date"` // "2026-01-03"
	WeeklyAmount  decimal.Decimal `json:"weekly_amount"`
	MemberIDs     []uint          `json:"member_ids"`
	RotationOrder []uint          `json:"rotation_order"` // optional, defaults to member_ids order
}

type RotationMemberRequest struct {
	MemberID uint `json:"member_id"`
}

func CreateRoundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body CreateRoundRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}

		startDate, err := time.Parse("2006-01-02", body.StartDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
		}

		var round *models.CashRound
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			round, err = CreateRound(tx, saccoID, body.Name, startDate, body.WeeklyAmount, body.MemberIDs, auth.CurrentUserID(c))
			if err != nil {
				return err
			}
			_, err = CreateSchedule(tx, round.ID, body.RotationOrder)
			return err
		})
		if err != nil {
			if errors.Is(err, models.ErrInvalidAmount) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not create round")
		}

		return c.Status(fiber.StatusCreated).JSON(round)
	}
}

func StartRoundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roundID, err := c.ParamsInt("id")
		if err != nil || roundID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid round id")
		}

		var round *models.CashRound
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			round, err = StartRound(tx, uint(roundID))
			return err
		})
		if err != nil {
			switch {
			case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrAlreadyExists):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			case errors.Is(err, models.ErrNoActiveSchedule):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.Is(err, gorm.ErrRecordNotFound):
				return fiber.NewError(fiber.StatusNotFound, "round not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not start round")
		}

		return c.JSON(round)
	}
}

func CompleteRoundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roundID, err := c.ParamsInt("id")
		if err != nil || roundID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid round id")
		}

		var round *models.CashRound
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			round, err = CompleteRound(tx, uint(roundID))
			return err
		})
		if err != nil {
			if errors.Is(err, models.ErrInvalidTransition) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "round not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not complete round")
		}

		return c.JSON(round)
	}
}

func ListRoundsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var rounds []models.CashRound
		if err := database.DB.Where("sacco_id = ?", saccoID).
			Order("round_number DESC").Find(&rounds).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load rounds")
		}

		return c.JSON(rounds)
	}
}

// CurrentRecipientHandler reports whose turn it is this week, with the
// rotation context around them.
func CurrentRecipientHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		recipientID, schedule, err := CurrentRecipient(database.DB, saccoID)
		if err != nil {
			if errors.Is(err, models.ErrNoActiveSchedule) {
				return fiber.NewError(fiber.StatusNotFound, "no active cash round")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not determine recipient")
		}

		var member models.SaccoMember
		if err := database.DB.First(&member, recipientID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "recipient member not found")
		}

		return c.JSON(fiber.Map{
			"cash_round_id":    schedule.CashRoundID,
			"week_number":      schedule.CurrentPosition + 1,
			"total_weeks":      len(schedule.RotationOrder),
			"recipient_id":     member.ID,
			"recipient_name":   member.Name,
			"recipient_number": member.MemberNumber,
		})
	}
}

func AddRotationMemberHandler() fiber.Handler {
	return rotationMutationHandler(AddMember)
}

func RemoveRotationMemberHandler() fiber.Handler {
	return rotationMutationHandler(RemoveMember)
}

func rotationMutationHandler(mutate func(tx *gorm.DB, schedule *models.CashRoundSchedule, memberID uint) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body RotationMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.MemberID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "member_id is required")
		}

		var schedule *models.CashRoundSchedule
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			schedule, err = ActiveSchedule(tx, saccoID)
			if err != nil {
				return err
			}
			return mutate(tx, schedule, body.MemberID)
		})
		if err != nil {
			switch {
			case errors.Is(err, models.ErrNoActiveSchedule):
				return fiber.NewError(fiber.StatusNotFound, "no active cash round")
			case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrAlreadyExists), errors.Is(err, models.ErrInvalidAmount):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(schedule)
	}
}
