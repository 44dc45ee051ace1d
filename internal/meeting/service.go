// Package meeting implements weekly settlement: contributions in, compulsory
// deductions against the recipient, arrears loans for defaulters, and the
// completed/reset state machine whose side effects span the passbook, the
// loan book, the rotation pointer and the cooperative's account.
package meeting

import (
	"fmt"
	"log"
	"time"

	"sacco-backend/internal/accounting"
	"sacco-backend/internal/cashround"
	"sacco-backend/internal/deduction"
	"sacco-backend/internal/ledger"
	"sacco-backend/internal/loan"
	"sacco-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateMeeting opens a planned meeting for the cooperative's active cash
// round, pinning this week's recipient from the rotation pointer.
func CreateMeeting(tx *gorm.DB, saccoID uint, date time.Time, recordedBy *uint) (*models.WeeklyMeeting, error) {
	recipientID, schedule, err := cashround.CurrentRecipient(tx, saccoID)
	if err != nil {
		return nil, err
	}

	var existing models.WeeklyMeeting
	err = tx.Where("sacco_id = ? AND meeting_date = ? AND status <> ?", saccoID, date, models.MeetingCompleted).
		First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: an open meeting already exists for %s", models.ErrAlreadyExists, date.Format("2006-01-02"))
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	m := models.WeeklyMeeting{
		SaccoID:     saccoID,
		CashRoundID: &schedule.CashRoundID,
		MeetingDate: date,
		WeekNumber:  schedule.CurrentPosition + 1,
		Year:        uint(date.Year()),
		RecipientID: &recipientID,
		Status:      models.MeetingPlanned,
		RecordedBy:  recordedBy,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordContribution upserts one member's row for the meeting. The first
// recorded row moves the meeting from planned to in_progress. The cash
// itself goes into the pot, not the member's passbook; only optional
// savings later become ledger entries via ProcessDeductions.
func RecordContribution(tx *gorm.DB, meetingID, memberID uint, amountContributed, optionalSavings decimal.Decimal, present bool, notes string) (*models.WeeklyContribution, error) {
	m, err := openMeeting(tx, meetingID)
	if err != nil {
		return nil, err
	}
	if amountContributed.IsNegative() || optionalSavings.IsNegative() {
		return nil, fmt.Errorf("%w: contribution amounts cannot be negative", models.ErrInvalidAmount)
	}

	var member models.SaccoMember
	if err := tx.First(&member, "id = ? AND sacco_id = ?", memberID, m.SaccoID).Error; err != nil {
		return nil, fmt.Errorf("member %d not found in sacco %d: %w", memberID, m.SaccoID, err)
	}

	isRecipient := m.RecipientID != nil && *m.RecipientID == memberID

	contrib, err := upsertContribution(tx, m.ID, memberID, func(c *models.WeeklyContribution) {
		c.WasPresent = present
		c.AmountContributed = amountContributed
		c.OptionalSavings = optionalSavings
		c.IsRecipient = isRecipient
		c.FundingSource = models.FundingMember
		c.Notes = notes
	})
	if err != nil {
		return nil, err
	}

	if err := markInProgress(tx, m); err != nil {
		return nil, err
	}
	if err := recomputeTotals(tx, m); err != nil {
		return nil, err
	}
	return contrib, nil
}

// RecordDefaulter covers a member who failed to contribute: the
// cooperative fronts the amount so the pot stays whole, an interest-free
// missed_contribution loan records the debt, and the outflow mirrors into
// the cooperative's account. The amount defaults to the cash round's
// weekly amount, then the cooperative's standard amount.
func RecordDefaulter(tx *gorm.DB, meetingID, memberID uint, amount *decimal.Decimal, notes string, recordedBy *uint) (*models.WeeklyContribution, error) {
	m, err := openMeeting(tx, meetingID)
	if err != nil {
		return nil, err
	}

	var member models.SaccoMember
	if err := tx.First(&member, "id = ? AND sacco_id = ?", memberID, m.SaccoID).Error; err != nil {
		return nil, fmt.Errorf("member %d not found in sacco %d: %w", memberID, m.SaccoID, err)
	}

	covered, err := defaultedAmount(tx, m, amount)
	if err != nil {
		return nil, err
	}

	contrib, err := upsertContribution(tx, m.ID, memberID, func(c *models.WeeklyContribution) {
		c.WasPresent = false
		c.AmountContributed = covered
		c.IsRecipient = m.RecipientID != nil && *m.RecipientID == memberID
		c.FundingSource = models.FundingSacco
		c.Notes = notes
	})
	if err != nil {
		return nil, err
	}

	if _, err := loan.CreateArrearsLoan(tx, m.SaccoID, memberID, covered, m.ID, m.MeetingDate); err != nil {
		return nil, err
	}

	// The meeting's own ledger state stays consistent even if the mirror
	// fails, so a sink error is logged rather than blocking the defaulter
	// record.
	_, err = accounting.RecordTransaction(tx, m.SaccoID, models.TransactionExpense, covered, models.CategoryDefaulterCover, accounting.RecordOptions{
		Description: fmt.Sprintf("Covered missed contribution for %s", member.Name),
		Date:        m.MeetingDate,
		MeetingID:   &m.ID,
		RecordedBy:  recordedBy,
	})
	if err != nil {
		log.Printf("meeting %d: could not mirror defaulter cover for member %d: %v", m.ID, memberID, err)
	}

	if err := markInProgress(tx, m); err != nil {
		return nil, err
	}
	if err := recomputeTotals(tx, m); err != nil {
		return nil, err
	}
	return contrib, nil
}

// ProcessDeductions posts the meeting's passbook entries. Compulsory
// deduction rules charge only this meeting's recipient; optional savings
// credit every member who brought them. Runs once per meeting.
func ProcessDeductions(tx *gorm.DB, meetingID uint, recordedBy *uint) error {
	m, err := openMeeting(tx, meetingID)
	if err != nil {
		return err
	}
	if m.RecipientID == nil {
		return fmt.Errorf("%w: meeting %d has no recipient", models.ErrNoActiveSchedule, m.ID)
	}

	var posted int64
	if err := tx.Model(&models.PassbookEntry{}).Where("meeting_id = ?", m.ID).Count(&posted).Error; err != nil {
		return err
	}
	if posted > 0 {
		return fmt.Errorf("%w: deductions already processed for meeting %d", models.ErrAlreadyExists, m.ID)
	}

	week := m.WeekNumber
	opts := ledger.AppendOptions{
		MeetingID:  &m.ID,
		WeekNumber: &week,
		RecordedBy: recordedBy,
	}

	rules, err := deduction.RecipientRules(tx, m.SaccoID, m.MeetingDate)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		o := opts
		o.Description = fmt.Sprintf("Week %d deduction: %s", week, rule.Section.Name)
		if _, err := ledger.AppendEntry(tx, *m.RecipientID, rule.SectionID, rule.Amount, models.EntryCredit, m.MeetingDate, o); err != nil {
			return err
		}
	}

	var contributions []models.WeeklyContribution
	if err := tx.Where("meeting_id = ?", m.ID).Order("id ASC").Find(&contributions).Error; err != nil {
		return err
	}

	var optSection *models.PassbookSection
	for _, c := range contributions {
		if !c.OptionalSavings.IsPositive() {
			continue
		}
		if optSection == nil {
			optSection, err = optionalSavingsSection(tx, m.SaccoID)
			if err != nil {
				return err
			}
		}
		o := opts
		o.Description = fmt.Sprintf("Week %d optional savings", week)
		if _, err := ledger.AppendEntry(tx, c.MemberID, optSection.ID, c.OptionalSavings, models.EntryCredit, m.MeetingDate, o); err != nil {
			return err
		}
	}

	// Breakdown by section type on the recipient's row.
	breakdown := map[string]interface{}{
		"compulsory_savings_deduction": decimal.Zero,
		"welfare_deduction":            decimal.Zero,
		"development_deduction":        decimal.Zero,
		"other_deductions":             decimal.Zero,
		"total_deductions":             deduction.Total(rules),
	}
	other := decimal.Zero
	for _, rule := range rules {
		switch rule.Section.SectionType {
		case models.SectionTypeSavings:
			breakdown["compulsory_savings_deduction"] = rule.Amount
		case models.SectionTypeWelfare:
			breakdown["welfare_deduction"] = rule.Amount
		case models.SectionTypeDevelopment:
			breakdown["development_deduction"] = rule.Amount
		default:
			other = other.Add(rule.Amount)
			breakdown["other_deductions"] = other
		}
	}
	if err := tx.Model(&models.WeeklyContribution{}).
		Where("meeting_id = ? AND member_id = ?", m.ID, *m.RecipientID).
		Updates(breakdown).Error; err != nil {
		return err
	}

	if err := markInProgress(tx, m); err != nil {
		return err
	}
	return recomputeTotals(tx, m)
}

// Complete finalizes the meeting: totals recompute from the ledger entries
// tagged to it (the source of truth, so late manual entries count), the
// collected pot mirrors into the cooperative's account as one income
// transaction, and the rotation pointer advances exactly once.
func Complete(tx *gorm.DB, meetingID uint, completedBy *uint) (*models.WeeklyMeeting, error) {
	var m models.WeeklyMeeting
	if err := tx.First(&m, meetingID).Error; err != nil {
		return nil, fmt.Errorf("meeting %d not found: %w", meetingID, err)
	}
	if m.Status != models.MeetingInProgress {
		return nil, fmt.Errorf("%w: meeting is %s, only in_progress meetings can complete", models.ErrInvalidTransition, m.Status)
	}

	if err := recomputeTotals(tx, &m); err != nil {
		return nil, err
	}

	if m.AmountToBank.IsPositive() {
		_, err := accounting.RecordTransaction(tx, m.SaccoID, models.TransactionIncome, m.AmountToBank, models.CategorySavings, accounting.RecordOptions{
			Description: fmt.Sprintf("Week %d meeting collections", m.WeekNumber),
			Date:        m.MeetingDate,
			MeetingID:   &m.ID,
			RecordedBy:  completedBy,
		})
		if err != nil {
			log.Printf("meeting %d: could not mirror collections: %v", m.ID, err)
		}
	}

	schedule, err := cashround.ActiveSchedule(tx, m.SaccoID)
	if err != nil {
		return nil, err
	}
	if err := cashround.Advance(tx, schedule); err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.MeetingCompleted,
		"completed_at": &now,
		"recorded_by":  completedBy,
	}
	if err := tx.Model(&m).Updates(updates).Error; err != nil {
		return nil, err
	}

	if err := tx.First(&m, meetingID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Reset unwinds a completed meeting back to in_progress, compensating in
// reverse creation order: mirrored account transactions, arrears loans,
// passbook entries (with balance replay per touched pair), contribution
// rows, and finally the rotation pointer.
func Reset(tx *gorm.DB, meetingID uint, resetBy *uint) (*models.WeeklyMeeting, error) {
	var m models.WeeklyMeeting
	if err := tx.First(&m, meetingID).Error; err != nil {
		return nil, fmt.Errorf("meeting %d not found: %w", meetingID, err)
	}
	if m.Status != models.MeetingCompleted {
		return nil, fmt.Errorf("%w: meeting is %s, only completed meetings can reset", models.ErrInvalidTransition, m.Status)
	}

	if _, err := accounting.DeleteMeetingTransactions(tx, m.SaccoID, m.ID); err != nil {
		return nil, err
	}

	if _, err := loan.DeleteMeetingLoans(tx, m.ID); err != nil {
		return nil, err
	}

	pairs, err := ledger.DeleteMeetingEntries(tx, m.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if _, err := ledger.Recalculate(tx, p[0], p[1]); err != nil {
			return nil, err
		}
	}

	if err := tx.Where("meeting_id = ?", m.ID).Delete(&models.WeeklyContribution{}).Error; err != nil {
		return nil, err
	}

	schedule, err := cashround.ActiveSchedule(tx, m.SaccoID)
	if err != nil {
		return nil, err
	}
	if err := cashround.Retreat(tx, schedule); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":              models.MeetingInProgress,
		"completed_at":        nil,
		"recorded_by":         resetBy,
		"total_collected":     decimal.Zero,
		"total_deductions":    decimal.Zero,
		"amount_to_recipient": decimal.Zero,
		"amount_to_bank":      decimal.Zero,
		"members_present":     0,
		"members_absent":      0,
	}
	if err := tx.Model(&m).Updates(updates).Error; err != nil {
		return nil, err
	}

	if err := tx.First(&m, meetingID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Summary is the reporting view of one meeting.
type Summary struct {
	Meeting       models.WeeklyMeeting        `json:"meeting"`
	Contributions []models.WeeklyContribution `json:"contributions"`
	Entries       []models.PassbookEntry      `json:"entries"`
}

func Summarize(tx *gorm.DB, meetingID uint) (*Summary, error) {
	var m models.WeeklyMeeting
	if err := tx.Preload("Recipient").First(&m, meetingID).Error; err != nil {
		return nil, fmt.Errorf("meeting %d not found: %w", meetingID, err)
	}

	s := &Summary{Meeting: m}
	if err := tx.Preload("Member").Where("meeting_id = ?", m.ID).Order("id ASC").Find(&s.Contributions).Error; err != nil {
		return nil, err
	}
	if err := tx.Preload("Section").Where("meeting_id = ?", m.ID).Order("id ASC").Find(&s.Entries).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// openMeeting loads a meeting that can still accept records.
func openMeeting(tx *gorm.DB, meetingID uint) (*models.WeeklyMeeting, error) {
	var m models.WeeklyMeeting
	if err := tx.First(&m, meetingID).Error; err != nil {
		return nil, fmt.Errorf("meeting %d not found: %w", meetingID, err)
	}
	if m.Status == models.MeetingCompleted {
		return nil, fmt.Errorf("%w: meeting %d is completed", models.ErrInvalidTransition, m.ID)
	}
	return &m, nil
}

func markInProgress(tx *gorm.DB, m *models.WeeklyMeeting) error {
	if m.Status != models.MeetingPlanned {
		return nil
	}
	if err := tx.Model(m).Update("status", models.MeetingInProgress).Error; err != nil {
		return err
	}
	m.Status = models.MeetingInProgress
	return nil
}

func upsertContribution(tx *gorm.DB, meetingID, memberID uint, apply func(*models.WeeklyContribution)) (*models.WeeklyContribution, error) {
	var c models.WeeklyContribution
	err := tx.Where("meeting_id = ? AND member_id = ?", meetingID, memberID).First(&c).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	c.MeetingID = meetingID
	c.MemberID = memberID
	apply(&c)

	if err := tx.Save(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func defaultedAmount(tx *gorm.DB, m *models.WeeklyMeeting, amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount != nil {
		if !amount.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: covered amount must be greater than 0", models.ErrInvalidAmount)
		}
		return *amount, nil
	}

	if m.CashRoundID != nil {
		var round models.CashRound
		if err := tx.First(&round, *m.CashRoundID).Error; err == nil && round.WeeklyAmount.IsPositive() {
			return round.WeeklyAmount, nil
		}
	}

	var sacco models.SaccoOrganization
	if err := tx.First(&sacco, m.SaccoID).Error; err != nil {
		return decimal.Zero, err
	}
	if sacco.CashRoundAmount.IsPositive() {
		return sacco.CashRoundAmount, nil
	}

	return decimal.Zero, fmt.Errorf("%w: no amount given and no weekly amount configured", models.ErrAmountRequired)
}

// optionalSavingsSection finds where optional savings post: the section
// named "Optional Savings" if present, else the first non-compulsory
// savings-type section.
func optionalSavingsSection(tx *gorm.DB, saccoID uint) (*models.PassbookSection, error) {
	var section models.PassbookSection
	err := tx.Where("sacco_id = ? AND name = ? AND is_active = ?", saccoID, "Optional Savings", true).
		First(&section).Error
	if err == nil {
		return &section, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	err = tx.Where("sacco_id = ? AND section_type = ? AND is_compulsory = ? AND is_active = ?",
		saccoID, models.SectionTypeSavings, false, true).
		Order("display_order ASC, id ASC").
		First(&section).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("sacco %d has no section for optional savings", saccoID)
	}
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// recomputeTotals rebuilds the meeting's cached columns from the
// contribution rows and the ledger entries tagged to it.
func recomputeTotals(tx *gorm.DB, m *models.WeeklyMeeting) error {
	var contributions []models.WeeklyContribution
	if err := tx.Where("meeting_id = ?", m.ID).Find(&contributions).Error; err != nil {
		return err
	}

	totalCollected := decimal.Zero
	totalDeductions := decimal.Zero
	var present, absent uint
	for _, c := range contributions {
		totalCollected = totalCollected.Add(c.AmountContributed)
		totalDeductions = totalDeductions.Add(c.TotalDeductions)
		if c.WasPresent {
			present++
		} else {
			absent++
		}
	}

	var entries []models.PassbookEntry
	if err := tx.Where("meeting_id = ?", m.ID).Find(&entries).Error; err != nil {
		return err
	}
	amountToBank := decimal.Zero
	for _, e := range entries {
		if e.Direction == models.EntryCredit {
			amountToBank = amountToBank.Add(e.Amount)
		}
	}

	updates := map[string]interface{}{
		"total_collected":     totalCollected,
		"total_deductions":    totalDeductions,
		"amount_to_recipient": totalCollected.Sub(totalDeductions),
		"amount_to_bank":      amountToBank,
		"members_present":     present,
		"members_absent":      absent,
	}
	if err := tx.Model(&models.WeeklyMeeting{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
		return err
	}

	m.TotalCollected = totalCollected
	m.TotalDeductions = totalDeductions
	m.AmountToRecipient = totalCollected.Sub(totalDeductions)
	m.AmountToBank = amountToBank
	m.MembersPresent = present
	m.MembersAbsent = absent
	return nil
}
