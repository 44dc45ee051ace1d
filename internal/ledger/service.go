package ledger

import (
	"fmt"
	"time"

	"sacco-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AppendOptions carries the optional metadata of a passbook entry.
type AppendOptions struct {
	Description     string
	ReferenceNumber string
	RecordedBy      *uint
	MeetingID       *uint
	WeekNumber      *uint
	IsReversal      bool
	ReversesEntryID *uint
}

// AppendEntry writes one ledger entry for (member, section), computing the
// running balance from the latest prior entry ordered by (transaction_date,
// id). Callers must run it inside the transaction that owns the business
// mutation the entry represents; per-member write serialization is the
// transaction layer's job.
//
// Backdated entries leave later BalanceAfter values stale until Recalculate
// replays the pair.
func AppendEntry(tx *gorm.DB, memberID, sectionID uint, amount decimal.Decimal, direction models.EntryDirection, date time.Time, opts AppendOptions) (*models.PassbookEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0, got %s", models.ErrInvalidAmount, amount)
	}
	if direction != models.EntryCredit && direction != models.EntryDebit {
		return nil, fmt.Errorf("%w: unknown direction %q", models.ErrInvalidAmount, direction)
	}

	prev, err := latestEntry(tx, memberID, sectionID)
	if err != nil {
		return nil, err
	}

	balance := decimal.Zero
	if prev != nil {
		balance = prev.BalanceAfter
	}
	if direction == models.EntryCredit {
		balance = balance.Add(amount)
	} else {
		balance = balance.Sub(amount)
	}

	entry := models.PassbookEntry{
		MemberID:        memberID,
		SectionID:       sectionID,
		TransactionDate: date,
		Direction:       direction,
		Amount:          amount,
		BalanceAfter:    balance,
		Description:     opts.Description,
		ReferenceNumber: opts.ReferenceNumber,
		RecordedBy:      opts.RecordedBy,
		MeetingID:       opts.MeetingID,
		WeekNumber:      opts.WeekNumber,
		IsReversal:      opts.IsReversal,
		ReversesEntryID: opts.ReversesEntryID,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("could not append ledger entry: %w", err)
	}

	return &entry, nil
}

// Balance returns the latest running balance for (member, section), or zero
// when no entry exists.
func Balance(tx *gorm.DB, memberID, sectionID uint) (decimal.Decimal, error) {
	entry, err := latestEntry(tx, memberID, sectionID)
	if err != nil {
		return decimal.Zero, err
	}
	if entry == nil {
		return decimal.Zero, nil
	}
	return entry.BalanceAfter, nil
}

// BalanceAsOf returns the running balance at end of the given date.
func BalanceAsOf(tx *gorm.DB, memberID, sectionID uint, asOf time.Time) (decimal.Decimal, error) {
	var entry models.PassbookEntry
	err := tx.
		Where("member_id = ? AND section_id = ? AND transaction_date <= ?", memberID, sectionID, asOf).
		Order("transaction_date DESC, id DESC").
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return entry.BalanceAfter, nil
}

// Reverse appends an opposite-direction entry of identical amount marked as
// a reversal of the original. The original is never touched; the net effect
// on the balance is zero.
func Reverse(tx *gorm.DB, entryID uint, recordedBy *uint, reason string) (*models.PassbookEntry, error) {
	var original models.PassbookEntry
	if err := tx.First(&original, entryID).Error; err != nil {
		return nil, fmt.Errorf("entry %d not found: %w", entryID, err)
	}

	direction := models.EntryCredit
	if original.Direction == models.EntryCredit {
		direction = models.EntryDebit
	}

	return AppendEntry(tx, original.MemberID, original.SectionID, original.Amount, direction, time.Now(), AppendOptions{
		Description:     fmt.Sprintf("REVERSAL: %s (original: %s)", reason, original.Description),
		RecordedBy:      recordedBy,
		IsReversal:      true,
		ReversesEntryID: &original.ID,
	})
}

// RecalcResult reports a replay recomputation.
type RecalcResult struct {
	Checked int `json:"checked"`
	Changed int `json:"changed"`
}

// Recalculate replays every entry for (member, section) in chronological
// order from zero and rewrites any stale BalanceAfter. Idempotent: a second
// run on an untouched pair reports Changed == 0. Used for audit/repair,
// after backdated appends and after meeting-reset deletions.
func Recalculate(tx *gorm.DB, memberID, sectionID uint) (RecalcResult, error) {
	var entries []models.PassbookEntry
	if err := tx.
		Where("member_id = ? AND section_id = ?", memberID, sectionID).
		Order("transaction_date ASC, id ASC").
		Find(&entries).Error; err != nil {
		return RecalcResult{}, err
	}

	result := RecalcResult{}
	running := decimal.Zero

	for i := range entries {
		e := &entries[i]
		if e.Direction == models.EntryCredit {
			running = running.Add(e.Amount)
		} else {
			running = running.Sub(e.Amount)
		}

		result.Checked++
		if !e.BalanceAfter.Equal(running) {
			if err := tx.Model(e).Update("balance_after", running).Error; err != nil {
				return result, err
			}
			result.Changed++
		}
	}

	return result, nil
}

// DeleteMeetingEntries removes every entry tagged to a meeting and returns
// the touched (member, section) pairs. Only meeting reset may call it, and
// the caller must Recalculate each returned pair in the same transaction.
func DeleteMeetingEntries(tx *gorm.DB, meetingID uint) ([][2]uint, error) {
	var entries []models.PassbookEntry
	if err := tx.Where("meeting_id = ?", meetingID).Find(&entries).Error; err != nil {
		return nil, err
	}

	seen := make(map[[2]uint]bool)
	pairs := make([][2]uint, 0, len(entries))
	for _, e := range entries {
		pair := [2]uint{e.MemberID, e.SectionID}
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}

	if err := tx.Where("meeting_id = ?", meetingID).Delete(&models.PassbookEntry{}).Error; err != nil {
		return nil, err
	}

	return pairs, nil
}

// SectionBalance pairs a section with a member's current balance in it.
type SectionBalance struct {
	SectionID   uint               `json:"section_id"`
	SectionName string             `json:"section_name"`
	SectionType models.SectionType `json:"section_type"`
	Balance     decimal.Decimal    `json:"balance"`
}

// AllBalances returns the member's balance in every active section of the
// cooperative.
func AllBalances(tx *gorm.DB, saccoID, memberID uint) ([]SectionBalance, error) {
	var sections []models.PassbookSection
	if err := tx.
		Where("sacco_id = ? AND is_active = ?", saccoID, true).
		Order("display_order ASC, id ASC").
		Find(&sections).Error; err != nil {
		return nil, err
	}

	balances := make([]SectionBalance, 0, len(sections))
	for _, s := range sections {
		b, err := Balance(tx, memberID, s.ID)
		if err != nil {
			return nil, err
		}
		balances = append(balances, SectionBalance{
			SectionID:   s.ID,
			SectionName: s.Name,
			SectionType: s.SectionType,
			Balance:     b,
		})
	}

	return balances, nil
}

// StatementLine is one printed row of a passbook statement.
type StatementLine struct {
	EntryID      uint                  `json:"entry_id"`
	Date         time.Time             `json:"date"`
	SectionID    uint                  `json:"section_id"`
	SectionName  string                `json:"section_name"`
	Direction    models.EntryDirection `json:"direction"`
	Amount       decimal.Decimal       `json:"amount"`
	BalanceAfter decimal.Decimal       `json:"balance_after"`
	Description  string                `json:"description"`
	IsReversal   bool                  `json:"is_reversal"`
}

// Statement lists a member's entries within [from, to], newest first,
// optionally limited to one section.
func Statement(tx *gorm.DB, memberID uint, from, to time.Time, sectionID *uint) ([]StatementLine, error) {
	q := tx.Model(&models.PassbookEntry{}).
		Where("member_id = ? AND transaction_date >= ? AND transaction_date <= ?", memberID, from, to)
	if sectionID != nil {
		q = q.Where("section_id = ?", *sectionID)
	}

	var entries []models.PassbookEntry
	if err := q.Preload("Section").Order("transaction_date DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, err
	}

	lines := make([]StatementLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, StatementLine{
			EntryID:      e.ID,
			Date:         e.TransactionDate,
			SectionID:    e.SectionID,
			SectionName:  e.Section.Name,
			Direction:    e.Direction,
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Description:  e.Description,
			IsReversal:   e.IsReversal,
		})
	}
	return lines, nil
}

func latestEntry(tx *gorm.DB, memberID, sectionID uint) (*models.PassbookEntry, error) {
	var entry models.PassbookEntry
	err := tx.
		Where("member_id = ? AND section_id = ?", memberID, sectionID).
		Order("transaction_date DESC, id DESC").
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
