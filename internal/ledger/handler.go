package ledger

import (
	"errors"
	"fmt"
	"time"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AppendEntryRequest struct {
	MemberID    uint            `json:"member_id"`
	SectionID   uint            `json:"section_id"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction"` // "credit" | "debit"
	Date        string          `json:"date"`      // "2026-08-29", defaults to today
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

type ReverseEntryRequest struct {
	Reason string `json:"reason"`
}

// AppendEntryHandler records a manual passbook entry outside meeting
// settlement (corrections, opening balances, off-cycle deposits).
func AppendEntryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body AppendEntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.MemberID == 0 || body.SectionID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "member_id and section_id are required")
		}

		date := time.Now()
		if body.Date != "" {
			date, err = time.Parse("2006-01-02", body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
		}

		var member models.SaccoMember
		if err := database.DB.First(&member, "id = ? AND sacco_id = ?", body.MemberID, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "member not found")
		}
		var section models.PassbookSection
		if err := database.DB.First(&section, "id = ? AND sacco_id = ?", body.SectionID, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "section not found")
		}

		var entry *models.PassbookEntry
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			entry, err = AppendEntry(tx, member.ID, section.ID, body.Amount, models.EntryDirection(body.Direction), date, AppendOptions{
				Description:     body.Description,
				ReferenceNumber: body.Reference,
				RecordedBy:      auth.CurrentUserID(c),
			})
			return err
		})
		if err != nil {
			if errors.Is(err, models.ErrInvalidAmount) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not record entry")
		}

		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}

// ReverseEntryHandler appends the correcting opposite entry for a mistake.
func ReverseEntryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		entryID, err := c.ParamsInt("id")
		if err != nil || entryID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid entry id")
		}

		var body ReverseEntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "reason is required")
		}

		var reversal *models.PassbookEntry
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			reversal, err = Reverse(tx, uint(entryID), auth.CurrentUserID(c), body.Reason)
			return err
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "entry not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not reverse entry")
		}

		return c.Status(fiber.StatusCreated).JSON(reversal)
	}
}

// MemberBalancesHandler returns a member's balance in every active section.
func MemberBalancesHandler() fiber.Handler {
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

		balances, err := AllBalances(database.DB, saccoID, member.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load balances")
		}

		total := decimal.Zero
		for _, b := range balances {
			total = total.Add(b.Balance)
		}

		return c.JSON(fiber.Map{
			"member_id":     member.ID,
			"member_name":   member.Name,
			"sections":      balances,
			"total_balance": total,
		})
	}
}

// StatementHandler prints a member's passbook over a date range.
// Query params: from, to (YYYY-MM-DD, default last 90 days), section_id.
func StatementHandler() fiber.Handler {
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

		to := time.Now()
		from := to.AddDate(0, 0, -90)
		if s := c.Query("from"); s != "" {
			if from, err = time.Parse("2006-01-02", s); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
			}
		}
		if s := c.Query("to"); s != "" {
			if to, err = time.Parse("2006-01-02", s); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to must be YYYY-MM-DD")
			}
			to = to.Add(24*time.Hour - time.Second)
		}

		var sectionID *uint
		if n := c.QueryInt("section_id"); n > 0 {
			id := uint(n)
			sectionID = &id
		}

		lines, err := Statement(database.DB, member.ID, from, to, sectionID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load statement")
		}

		return c.JSON(fiber.Map{
			"member_id":   member.ID,
			"member_name": member.Name,
			"from":        from.Format("2006-01-02"),
			"to":          to.Format("2006-01-02"),
			"lines":       lines,
		})
	}
}

// RecalculateHandler replays one member's section balances and reports how
// many entries were repaired.
func RecalculateHandler() fiber.Handler {
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

		var sections []models.PassbookSection
		if err := database.DB.Where("sacco_id = ?", saccoID).Find(&sections).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sections")
		}

		results := fiber.Map{}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			for _, s := range sections {
				r, err := Recalculate(tx, member.ID, s.ID)
				if err != nil {
					return err
				}
				if r.Checked > 0 {
					results[fmt.Sprintf("%d", s.ID)] = r
				}
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not recalculate balances")
		}

		return c.JSON(fiber.Map{
			"member_id": member.ID,
			"sections":  results,
		})
	}
}
