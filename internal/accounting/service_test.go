package accounting

import (
	"errors"
	"testing"
	"time"

	"sacco-backend/internal/models"
	"sacco-backend/internal/testutil"

	"github.com/shopspring/decimal"
)

func TestGetOrCreateAccountIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)

	a1, err := GetOrCreateAccount(db, f.Sacco.ID)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	a2, err := GetOrCreateAccount(db, f.Sacco.ID)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if a1.ID != a2.ID {
		t.Errorf("created two accounts: %d and %d", a1.ID, a2.ID)
	}
	if !a1.Balance.IsZero() {
		t.Errorf("new account balance = %s, want 0", a1.Balance)
	}
}

func TestRecordTransactionMovesBalance(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)

	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionIncome, decimal.NewFromInt(5000), models.CategorySavings, RecordOptions{Description: "week 1 bank amount"}); err != nil {
		t.Fatalf("income failed: %v", err)
	}
	row, err := RecordTransaction(db, f.Sacco.ID, models.TransactionExpense, decimal.NewFromInt(2000), models.CategoryLoanDisbursement, RecordOptions{})
	if err != nil {
		t.Fatalf("expense failed: %v", err)
	}
	if row.Reference == "" {
		t.Error("transaction has no reference")
	}

	account, _ := GetOrCreateAccount(db, f.Sacco.ID)
	if !account.Balance.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("balance = %s, want 3000", account.Balance)
	}
}

func TestRecordTransactionRejectsBadInput(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)

	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionIncome, decimal.Zero, models.CategorySavings, RecordOptions{}); !errors.Is(err, models.ErrInvalidAmount) {
		t.Errorf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := RecordTransaction(db, f.Sacco.ID, "transfer", decimal.NewFromInt(10), models.CategorySavings, RecordOptions{}); !errors.Is(err, models.ErrInvalidAmount) {
		t.Errorf("bad kind: got %v, want ErrInvalidAmount", err)
	}
}

func TestDeleteMeetingTransactionsRollsBackNet(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)
	meetingID := uint(7)

	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionIncome, decimal.NewFromInt(4000), models.CategorySavings, RecordOptions{MeetingID: &meetingID}); err != nil {
		t.Fatal(err)
	}
	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionExpense, decimal.NewFromInt(1000), models.CategoryDefaulterCover, RecordOptions{MeetingID: &meetingID}); err != nil {
		t.Fatal(err)
	}
	// Unrelated transaction must survive.
	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionIncome, decimal.NewFromInt(250), models.CategoryLoanRepayment, RecordOptions{}); err != nil {
		t.Fatal(err)
	}

	deleted, err := DeleteMeetingTransactions(db, f.Sacco.ID, meetingID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	account, _ := GetOrCreateAccount(db, f.Sacco.ID)
	if !account.Balance.Equal(decimal.NewFromInt(250)) {
		t.Errorf("balance after rollback = %s, want 250", account.Balance)
	}

	var count int64
	db.Model(&models.AccountTransaction{}).Count(&count)
	if count != 1 {
		t.Errorf("remaining transactions = %d, want 1", count)
	}
}

func TestSummarize(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)

	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionIncome, decimal.NewFromInt(3000), models.CategorySavings, RecordOptions{Date: day}); err != nil {
		t.Fatal(err)
	}
	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionExpense, decimal.NewFromInt(1200), models.CategoryWithdrawal, RecordOptions{Date: day}); err != nil {
		t.Fatal(err)
	}
	// Outside the range.
	if _, err := RecordTransaction(db, f.Sacco.ID, models.TransactionIncome, decimal.NewFromInt(999), models.CategorySavings, RecordOptions{Date: day.AddDate(0, 2, 0)}); err != nil {
		t.Fatal(err)
	}

	s, err := Summarize(db, f.Sacco.ID, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if !s.TotalIncome.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("income = %s, want 3000", s.TotalIncome)
	}
	if !s.TotalExpense.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("expense = %s, want 1200", s.TotalExpense)
	}
	if !s.ByCategory[models.CategoryWithdrawal].Equal(decimal.NewFromInt(-1200)) {
		t.Errorf("withdrawal category = %s, want -1200", s.ByCategory[models.CategoryWithdrawal])
	}
	// Balance reflects all three transactions regardless of range.
	if !s.Balance.Equal(decimal.NewFromInt(2799)) {
		t.Errorf("balance = %s, want 2799", s.Balance)
	}
}
