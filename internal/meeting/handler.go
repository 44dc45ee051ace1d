package meeting

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

type CreateMeetingRequest struct {
	MeetingDate string `json:"meeting_date"` // "2026-01-03", defaults to today
}

type ContributionRequest struct {
	MemberID          uint            `json:"member_id"`
	AmountContributed decimal.Decimal `json:"amount_contributed"`
	OptionalSavings   decimal.Decimal `json:"optional_savings"`
	Present           *bool           `json:"present"` // defaults to true
	Notes             string          `json:"notes"`
}

type DefaulterRequest struct {
	MemberID uint             `json:"member_id"`
	Amount   *decimal.Decimal `json:"amount"` // defaults to the weekly amount
	Notes    string           `json:"notes"`
}

func mapMeetingError(err error, fallback string) error {
	switch {
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrAmountRequired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrAlreadyExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNoActiveSchedule):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, fallback)
}

func CreateMeetingHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body CreateMeetingRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		date := time.Now().Truncate(24 * time.Hour)
		if body.MeetingDate != "" {
			if date, err = time.Parse("2006-01-02", body.MeetingDate); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "meeting_date must be YYYY-MM-DD")
			}
		}

		var m *models.WeeklyMeeting
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			m, err = CreateMeeting(tx, saccoID, date, auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapMeetingError(err, "could not create meeting")
		}

		return c.Status(fiber.StatusCreated).JSON(m)
	}
}

func RecordContributionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meetingID, err := c.ParamsInt("id")
		if err != nil || meetingID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid meeting id")
		}

		var body ContributionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.MemberID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "member_id is required")
		}

		present := true
		if body.Present != nil {
			present = *body.Present
		}

		var contrib *models.WeeklyContribution
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			contrib, err = RecordContribution(tx, uint(meetingID), body.MemberID, body.AmountContributed, body.OptionalSavings, present, body.Notes)
			return err
		})
		if err != nil {
			return mapMeetingError(err, "could not record contribution")
		}

		return c.Status(fiber.StatusCreated).JSON(contrib)
	}
}

func RecordDefaulterHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meetingID, err := c.ParamsInt("id")
		if err != nil || meetingID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid meeting id")
		}

		var body DefaulterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.MemberID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "member_id is required")
		}

		var contrib *models.WeeklyContribution
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			contrib, err = RecordDefaulter(tx, uint(meetingID), body.MemberID, body.Amount, body.Notes, auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapMeetingError(err, "could not record defaulter")
		}

		return c.Status(fiber.StatusCreated).JSON(contrib)
	}
}

func ProcessDeductionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meetingID, err := c.ParamsInt("id")
		if err != nil || meetingID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid meeting id")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return ProcessDeductions(tx, uint(meetingID), auth.CurrentUserID(c))
		})
		if err != nil {
			return mapMeetingError(err, "could not process deductions")
		}

		summary, err := Summarize(database.DB, uint(meetingID))
		if err != nil {
			return mapMeetingError(err, "could not load meeting")
		}
		return c.JSON(summary)
	}
}

func CompleteHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meetingID, err := c.ParamsInt("id")
		if err != nil || meetingID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid meeting id")
		}

		var m *models.WeeklyMeeting
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			m, err = Complete(tx, uint(meetingID), auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapMeetingError(err, "could not complete meeting")
		}
		return c.JSON(m)
	}
}

func ResetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meetingID, err := c.ParamsInt("id")
		if err != nil || meetingID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid meeting id")
		}

		var m *models.WeeklyMeeting
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			m, err = Reset(tx, uint(meetingID), auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapMeetingError(err, "could not reset meeting")
		}
		return c.JSON(m)
	}
}

func ListMeetingsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		q := database.DB.Preload("Recipient").Where("sacco_id = ?", saccoID)
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if year := c.QueryInt("year"); year > 0 {
			q = q.Where("year = ?", year)
		}

		var meetings []models.WeeklyMeeting
		if err := q.Order("meeting_date DESC").Find(&meetings).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load meetings")
		}
		return c.JSON(meetings)
	}
}

func MeetingSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		meetingID, err := c.ParamsInt("id")
		if err != nil || meetingID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid meeting id")
		}

		summary, err := Summarize(database.DB, uint(meetingID))
		if err != nil {
			return mapMeetingError(err, "could not load meeting")
		}
		return c.JSON(summary)
	}
}
