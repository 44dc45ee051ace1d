package dashboard

import (
	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type SectionTotal struct {
	SectionID   uint            `json:"section_id"`
	SectionName string          `json:"section_name"`
	Total       decimal.Decimal `json:"total"`
}

type RecipientInfo struct {
	MemberID     uint   `json:"member_id"`
	MemberName   string `json:"member_name"`
	MemberNumber string `json:"member_number"`
	WeekNumber   uint   `json:"week_number"`
	RoundName    string `json:"round_name"`
}

type MeetingBrief struct {
	ID                uint            `json:"id"`
	MeetingDate       string          `json:"meeting_date"`
	WeekNumber        uint            `json:"week_number"`
	Status            string          `json:"status"`
	TotalCollected    decimal.Decimal `json:"total_collected"`
	AmountToRecipient decimal.Decimal `json:"amount_to_recipient"`
}

type OverviewResponse struct {
	SaccoID           uint            `json:"sacco_id"`
	ActiveMembers     int64           `json:"active_members"`
	TotalMembers      int64           `json:"total_members"`
	SavingsBySection  []SectionTotal  `json:"savings_by_section"`
	TotalSavings      decimal.Decimal `json:"total_savings"`
	OutstandingLoans  int64           `json:"outstanding_loans"`
	LoanBalance       decimal.Decimal `json:"loan_balance"`
	PendingLoans      int64           `json:"pending_loans"`
	AccountBalance    decimal.Decimal `json:"account_balance"`
	CurrentRecipient  *RecipientInfo  `json:"current_recipient"`
	MeetingsCompleted int64           `json:"meetings_completed"`
	RecentMeetings    []MeetingBrief  `json:"recent_meetings"`
}

// GET /api/dashboard/overview?sacco_id=1
func OverviewHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		resp := OverviewResponse{SaccoID: saccoID}
		db := database.DB

		db.Model(&models.SaccoMember{}).Where("sacco_id = ?", saccoID).Count(&resp.TotalMembers)
		db.Model(&models.SaccoMember{}).
			Where("sacco_id = ? AND status = ?", saccoID, models.MemberStatusActive).
			Count(&resp.ActiveMembers)

		// Per-section savings: latest entry per (member, section) carries the
		// running balance, so sum one row per pair.
		type sectionRow struct {
			SectionID   uint            `gorm:"column:section_id"`
			SectionName string          `gorm:"column:section_name"`
			Total       decimal.Decimal `gorm:"column:total"`
		}
		var sectionRows []sectionRow
		sql := `
			SELECT s.id AS section_id, s.name AS section_name, SUM(latest.balance_after) AS total
			FROM (
				SELECT DISTINCT ON (e.member_id, e.section_id)
					   e.section_id, e.balance_after
				FROM passbook_entries e
				ORDER BY e.member_id, e.section_id, e.transaction_date DESC, e.id DESC
			) latest
			JOIN passbook_sections s ON s.id = latest.section_id
			WHERE s.sacco_id = ?
			GROUP BY s.id, s.name
			ORDER BY s.display_order ASC, s.id ASC;
		`
		if err := db.Raw(sql, saccoID).Scan(&sectionRows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not aggregate balances")
		}
		for _, r := range sectionRows {
			resp.SavingsBySection = append(resp.SavingsBySection, SectionTotal{
				SectionID:   r.SectionID,
				SectionName: r.SectionName,
				Total:       r.Total,
			})
			resp.TotalSavings = resp.TotalSavings.Add(r.Total)
		}

		outstanding := []models.LoanStatus{models.LoanDisbursed, models.LoanActive, models.LoanDefaulted}
		db.Model(&models.Loan{}).
			Where("sacco_id = ? AND status IN ?", saccoID, outstanding).
			Count(&resp.OutstandingLoans)
		db.Model(&models.Loan{}).
			Where("sacco_id = ? AND status = ?", saccoID, models.LoanPending).
			Count(&resp.PendingLoans)

		type balanceRow struct {
			Total decimal.Decimal `gorm:"column:total"`
		}
		var lb balanceRow
		db.Model(&models.Loan{}).
			Select("COALESCE(SUM(balance_principal + balance_interest), 0) AS total").
			Where("sacco_id = ? AND status IN ?", saccoID, outstanding).
			Scan(&lb)
		resp.LoanBalance = lb.Total

		var account models.SaccoAccount
		if err := db.First(&account, "sacco_id = ?", saccoID).Error; err == nil {
			resp.AccountBalance = account.Balance
		}

		resp.CurrentRecipient = currentRecipient(saccoID)

		db.Model(&models.WeeklyMeeting{}).
			Where("sacco_id = ? AND status = ?", saccoID, models.MeetingCompleted).
			Count(&resp.MeetingsCompleted)

		var meetings []models.WeeklyMeeting
		db.Where("sacco_id = ?", saccoID).
			Order("meeting_date DESC, id DESC").Limit(5).Find(&meetings)
		for _, m := range meetings {
			resp.RecentMeetings = append(resp.RecentMeetings, MeetingBrief{
				ID:                m.ID,
				MeetingDate:       m.MeetingDate.Format("2006-01-02"),
				WeekNumber:        m.WeekNumber,
				Status:            string(m.Status),
				TotalCollected:    m.TotalCollected,
				AmountToRecipient: m.AmountToRecipient,
			})
		}

		return c.JSON(resp)
	}
}

func currentRecipient(saccoID uint) *RecipientInfo {
	var schedule models.CashRoundSchedule
	err := database.DB.Preload("CashRound").
		First(&schedule, "sacco_id = ? AND is_active = ?", saccoID, true).Error
	if err != nil || len(schedule.RotationOrder) == 0 {
		return nil
	}

	pos := schedule.CurrentPosition % uint(len(schedule.RotationOrder))
	var member models.SaccoMember
	if err := database.DB.First(&member, schedule.RotationOrder[pos]).Error; err != nil {
		return nil
	}

	return &RecipientInfo{
		MemberID:     member.ID,
		MemberName:   member.Name,
		MemberNumber: member.MemberNumber,
		WeekNumber:   pos + 1,
		RoundName:    schedule.CashRound.Name,
	}
}
