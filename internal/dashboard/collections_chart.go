package dashboard

import (
	"time"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"

	"github.com/gofiber/fiber/v2"
)

type CollectionsPoint struct {
	Label       string  `json:"label"`
	Collected   float64 `json:"collected"`
	Deductions  float64 `json:"deductions"`
	ToRecipient float64 `json:"to_recipient"`
	ToBank      float64 `json:"to_bank"`
}

type CollectionsTotals struct {
	Collected   float64 `json:"collected"`
	Deductions  float64 `json:"deductions"`
	ToRecipient float64 `json:"to_recipient"`
	ToBank      float64 `json:"to_bank"`
}

type CollectionsChartResponse struct {
	SaccoID     uint               `json:"sacco_id"`
	Period      string             `json:"period"` // weekly | monthly
	From        string             `json:"from"`
	To          string             `json:"to"`
	Points      []CollectionsPoint `json:"points"`
	GrandTotals CollectionsTotals  `json:"grand_totals"`
}

// GET /api/dashboard/collections-chart?period=weekly&count=12&sacco_id=1
//
// Buckets completed meetings by week or month and sums the settlement
// totals, for the frontend contribution chart.
func CollectionsChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		period := c.Query("period", "weekly")
		if period != "weekly" && period != "monthly" {
			return fiber.NewError(fiber.StatusBadRequest, "period must be weekly or monthly")
		}

		count := c.QueryInt("count", 0)
		if count <= 0 {
			count = 12
		}
		if count > 60 {
			count = 60
		}

		now := time.Now()
		loc := now.Location()
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

		var start time.Time
		var trunc string
		switch period {
		case "monthly":
			trunc = "month"
			end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0).AddDate(0, 0, -1)
			start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -(count - 1), 0)
		default:
			trunc = "week"
			start = end.AddDate(0, 0, -7*(count-1))
		}

		type row struct {
			Bucket      time.Time `gorm:"column:bucket"`
			Collected   float64   `gorm:"column:collected"`
			Deductions  float64   `gorm:"column:deductions"`
			ToRecipient float64   `gorm:"column:to_recipient"`
			ToBank      float64   `gorm:"column:to_bank"`
		}
		var rows []row

		sql := `
			SELECT date_trunc('` + trunc + `', meeting_date)::date AS bucket,
				   SUM(total_collected)     AS collected,
				   SUM(total_deductions)    AS deductions,
				   SUM(amount_to_recipient) AS to_recipient,
				   SUM(amount_to_bank)      AS to_bank
			FROM weekly_meetings
			WHERE sacco_id = ? AND status = 'completed'
			  AND meeting_date >= ? AND meeting_date <= ?
			GROUP BY bucket
			ORDER BY bucket ASC;
		`
		if err := database.DB.Raw(sql, saccoID, start, end).Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not aggregate meetings")
		}

		points := make([]CollectionsPoint, 0, len(rows))
		grand := CollectionsTotals{}
		for _, r := range rows {
			points = append(points, CollectionsPoint{
				Label:       r.Bucket.Format("2006-01-02"),
				Collected:   r.Collected,
				Deductions:  r.Deductions,
				ToRecipient: r.ToRecipient,
				ToBank:      r.ToBank,
			})
			grand.Collected += r.Collected
			grand.Deductions += r.Deductions
			grand.ToRecipient += r.ToRecipient
			grand.ToBank += r.ToBank
		}

		return c.JSON(CollectionsChartResponse{
			SaccoID:     saccoID,
			Period:      period,
			From:        start.Format("2006-01-02"),
			To:          end.Format("2006-01-02"),
			Points:      points,
			GrandTotals: grand,
		})
	}
}
