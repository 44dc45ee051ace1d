package accounting

import (
	"time"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AccountSummaryHandler returns the operating account with totals over a
// range. Query params: from, to (YYYY-MM-DD, default current month).
func AccountSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		now := time.Now()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to := from.AddDate(0, 1, 0).Add(-time.Second)

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

		summary, err := Summarize(database.DB, saccoID, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not summarize account")
		}

		return c.JSON(fiber.Map{
			"from":    from.Format("2006-01-02"),
			"to":      to.Format("2006-01-02"),
			"summary": summary,
		})
	}
}

// TransactionsHandler lists account transactions, newest first.
// Query params: category, limit (default 100).
func TransactionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		account, err := GetOrCreateAccount(database.DB, saccoID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load account")
		}

		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		q := database.DB.Where("account_id = ?", account.ID)
		if cat := c.Query("category"); cat != "" {
			q = q.Where("category = ?", cat)
		}

		var rows []models.AccountTransaction
		if err := q.Order("date DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load transactions")
		}

		return c.JSON(fiber.Map{
			"account_id":   account.ID,
			"balance":      account.Balance,
			"transactions": rows,
		})
	}
}
