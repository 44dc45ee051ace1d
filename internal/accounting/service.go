// Package accounting mirrors the cash effect of every settlement path into
// the cooperative's own operating account.
package accounting

import (
	"fmt"
	"time"

	"sacco-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecordOptions links an account transaction back to the business event
// that produced it. MeetingID in particular is what lets a meeting reset
// find and remove its mirrored transactions.
type RecordOptions struct {
	Description  string
	Date         time.Time
	MeetingID    *uint
	LoanID       *uint
	WithdrawalID *uint
	RecordedBy   *uint
}

// GetOrCreateAccount returns the cooperative's single operating account,
// creating it with a zero balance on first use.
func GetOrCreateAccount(tx *gorm.DB, saccoID uint) (*models.SaccoAccount, error) {
	var account models.SaccoAccount
	err := tx.Where("sacco_id = ?", saccoID).First(&account).Error
	if err == nil {
		return &account, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var sacco models.SaccoOrganization
	if err := tx.First(&sacco, saccoID).Error; err != nil {
		return nil, fmt.Errorf("sacco %d not found: %w", saccoID, err)
	}

	account = models.SaccoAccount{
		SaccoID:  saccoID,
		Name:     sacco.Name + " Account",
		Balance:  decimal.Zero,
		IsActive: true,
	}
	if err := tx.Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// RecordTransaction appends one income or expense row and moves the account
// balance accordingly. The uuid reference makes each row individually
// addressable for bank reconciliation.
func RecordTransaction(tx *gorm.DB, saccoID uint, kind models.TransactionKind, amount decimal.Decimal, category string, opts RecordOptions) (*models.AccountTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: transaction amount must be greater than 0, got %s", models.ErrInvalidAmount, amount)
	}
	if kind != models.TransactionIncome && kind != models.TransactionExpense {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", models.ErrInvalidAmount, kind)
	}

	account, err := GetOrCreateAccount(tx, saccoID)
	if err != nil {
		return nil, err
	}

	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	row := models.AccountTransaction{
		AccountID:    account.ID,
		Kind:         kind,
		Amount:       amount,
		Category:     category,
		Description:  opts.Description,
		Date:         date,
		Reference:    uuid.NewString(),
		MeetingID:    opts.MeetingID,
		LoanID:       opts.LoanID,
		WithdrawalID: opts.WithdrawalID,
		RecordedBy:   opts.RecordedBy,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}

	delta := amount
	if kind == models.TransactionExpense {
		delta = amount.Neg()
	}
	newBalance := account.Balance.Add(delta)
	if err := tx.Model(account).Update("balance", newBalance).Error; err != nil {
		return nil, err
	}

	return &row, nil
}

// DeleteMeetingTransactions removes every transaction mirrored from a
// meeting and rolls their net effect out of the account balance. Only
// meeting reset may call it.
func DeleteMeetingTransactions(tx *gorm.DB, saccoID, meetingID uint) (int, error) {
	account, err := GetOrCreateAccount(tx, saccoID)
	if err != nil {
		return 0, err
	}

	var rows []models.AccountTransaction
	if err := tx.Where("account_id = ? AND meeting_id = ?", account.ID, meetingID).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	net := decimal.Zero
	for _, r := range rows {
		if r.Kind == models.TransactionIncome {
			net = net.Add(r.Amount)
		} else {
			net = net.Sub(r.Amount)
		}
	}

	if err := tx.Where("account_id = ? AND meeting_id = ?", account.ID, meetingID).
		Delete(&models.AccountTransaction{}).Error; err != nil {
		return 0, err
	}

	if err := tx.Model(account).Update("balance", account.Balance.Sub(net)).Error; err != nil {
		return 0, err
	}

	return len(rows), nil
}

// Summary aggregates the account over a date range.
type Summary struct {
	Balance      decimal.Decimal            `json:"balance"`
	TotalIncome  decimal.Decimal            `json:"total_income"`
	TotalExpense decimal.Decimal            `json:"total_expense"`
	ByCategory   map[string]decimal.Decimal `json:"by_category"`
}

// Summarize totals the account's transactions within [from, to].
func Summarize(tx *gorm.DB, saccoID uint, from, to time.Time) (*Summary, error) {
	account, err := GetOrCreateAccount(tx, saccoID)
	if err != nil {
		return nil, err
	}

	var rows []models.AccountTransaction
	if err := tx.Where("account_id = ? AND date >= ? AND date <= ?", account.ID, from, to).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	s := &Summary{
		Balance:      account.Balance,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		ByCategory:   map[string]decimal.Decimal{},
	}
	for _, r := range rows {
		signed := r.Amount
		if r.Kind == models.TransactionExpense {
			s.TotalExpense = s.TotalExpense.Add(r.Amount)
			signed = r.Amount.Neg()
		} else {
			s.TotalIncome = s.TotalIncome.Add(r.Amount)
		}
		s.ByCategory[r.Category] = s.ByCategory[r.Category].Add(signed)
	}

	return s, nil
}
