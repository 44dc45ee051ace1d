package ledger

import (
	"errors"
	"testing"
	"time"

	"sacco-backend/internal/models"
	"sacco-backend/internal/testutil"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestAppendEntryRunningBalance(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)
	member, section := f.MemberIDs[0], f.Section.ID

	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	e1, err := AppendEntry(db, member, section, d("2000"), models.EntryCredit, day, AppendOptions{Description: "week 1"})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if !e1.BalanceAfter.Equal(d("2000")) {
		t.Errorf("balance after first credit = %s, want 2000", e1.BalanceAfter)
	}

	e2, err := AppendEntry(db, member, section, d("500"), models.EntryDebit, day.AddDate(0, 0, 7), AppendOptions{})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if !e2.BalanceAfter.Equal(d("1500")) {
		t.Errorf("balance after debit = %s, want 1500", e2.BalanceAfter)
	}

	bal, err := Balance(db, member, section)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !bal.Equal(d("1500")) {
		t.Errorf("Balance = %s, want 1500", bal)
	}
}

func TestAppendEntryRejectsNonPositiveAmount(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)

	for _, amount := range []string{"0", "-100"} {
		_, err := AppendEntry(db, f.MemberIDs[0], f.Section.ID, d(amount), models.EntryCredit, time.Now(), AppendOptions{})
		if !errors.Is(err, models.ErrInvalidAmount) {
			t.Errorf("amount %s: got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestBalanceIsZeroWithoutEntries(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)

	bal, err := Balance(db, f.MemberIDs[0], f.Section.ID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !bal.IsZero() {
		t.Errorf("balance = %s, want 0", bal)
	}
}

func TestDebitMayOverdrawSection(t *testing.T) {
	// The ledger itself does not police negative balances; availability
	// checks live in the withdrawal engine.
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)

	e, err := AppendEntry(db, f.MemberIDs[0], f.Section.ID, d("300"), models.EntryDebit, time.Now(), AppendOptions{})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if !e.BalanceAfter.Equal(d("-300")) {
		t.Errorf("balance = %s, want -300", e.BalanceAfter)
	}
}

func TestReverseNetsToZero(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)
	member, section := f.MemberIDs[0], f.Section.ID

	orig, err := AppendEntry(db, member, section, d("2000"), models.EntryCredit, time.Now(), AppendOptions{Description: "mistake"})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	rev, err := Reverse(db, orig.ID, nil, "recorded against wrong member")
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}

	if rev.Direction != models.EntryDebit {
		t.Errorf("reversal direction = %s, want debit", rev.Direction)
	}
	if !rev.Amount.Equal(orig.Amount) {
		t.Errorf("reversal amount = %s, want %s", rev.Amount, orig.Amount)
	}
	if !rev.IsReversal || rev.ReversesEntryID == nil || *rev.ReversesEntryID != orig.ID {
		t.Error("reversal not linked to original entry")
	}

	bal, _ := Balance(db, member, section)
	if !bal.IsZero() {
		t.Errorf("balance after reversal = %s, want 0", bal)
	}

	// The original must be untouched.
	var reloaded models.PassbookEntry
	if err := db.First(&reloaded, orig.ID).Error; err != nil {
		t.Fatalf("original entry disappeared: %v", err)
	}
	if !reloaded.Amount.Equal(orig.Amount) || reloaded.Direction != orig.Direction {
		t.Error("original entry was mutated by reversal")
	}
}

func TestRecalculateRepairsBackdatedEntry(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)
	member, section := f.MemberIDs[0], f.Section.ID

	week1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	week3 := week1.AddDate(0, 0, 14)

	if _, err := AppendEntry(db, member, section, d("2000"), models.EntryCredit, week1, AppendOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := AppendEntry(db, member, section, d("2000"), models.EntryCredit, week3, AppendOptions{}); err != nil {
		t.Fatal(err)
	}

	// Backdated into week 2: the week-3 entry's stored balance is now stale.
	if _, err := AppendEntry(db, member, section, d("2000"), models.EntryCredit, week1.AddDate(0, 0, 7), AppendOptions{}); err != nil {
		t.Fatal(err)
	}

	res, err := Recalculate(db, member, section)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if res.Checked != 3 {
		t.Errorf("checked = %d, want 3", res.Checked)
	}
	if res.Changed == 0 {
		t.Error("expected at least one repaired balance")
	}

	// Replay invariant: balances now follow (transaction_date, id) order.
	var entries []models.PassbookEntry
	db.Where("member_id = ? AND section_id = ?", member, section).
		Order("transaction_date ASC, id ASC").Find(&entries)
	running := decimal.Zero
	for _, e := range entries {
		if e.Direction == models.EntryCredit {
			running = running.Add(e.Amount)
		} else {
			running = running.Sub(e.Amount)
		}
		if !e.BalanceAfter.Equal(running) {
			t.Errorf("entry %d: balance_after = %s, want %s", e.ID, e.BalanceAfter, running)
		}
	}

	// Second run is a no-op.
	res2, err := Recalculate(db, member, section)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Changed != 0 {
		t.Errorf("second recalculate changed %d entries, want 0", res2.Changed)
	}
}

func TestRecalculateEmptyPair(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)

	res, err := Recalculate(db, f.MemberIDs[0], f.Section.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if res.Checked != 0 || res.Changed != 0 {
		t.Errorf("got %+v, want zero result", res)
	}
}

func TestDeleteMeetingEntriesReturnsTouchedPairs(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 2)
	meetingID := uint(42)

	for _, m := range f.MemberIDs {
		if _, err := AppendEntry(db, m, f.Section.ID, d("2000"), models.EntryCredit, time.Now(), AppendOptions{MeetingID: &meetingID}); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated entry must survive.
	keep, err := AppendEntry(db, f.MemberIDs[0], f.Section.ID, d("100"), models.EntryCredit, time.Now(), AppendOptions{})
	if err != nil {
		t.Fatal(err)
	}

	pairs, err := DeleteMeetingEntries(db, meetingID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("touched pairs = %d, want 2", len(pairs))
	}

	var count int64
	db.Model(&models.PassbookEntry{}).Count(&count)
	if count != 1 {
		t.Errorf("remaining entries = %d, want 1", count)
	}

	for _, p := range pairs {
		if _, err := Recalculate(db, p[0], p[1]); err != nil {
			t.Fatalf("recalculate after delete failed: %v", err)
		}
	}
	bal, _ := Balance(db, f.MemberIDs[0], f.Section.ID)
	if !bal.Equal(keep.Amount) {
		t.Errorf("balance after delete+recalc = %s, want %s", bal, keep.Amount)
	}
}

func TestStatementFiltersAndOrders(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)
	member := f.MemberIDs[0]

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := AppendEntry(db, member, f.Section.ID, d("1000"), models.EntryCredit, base.AddDate(0, 0, 7*i), AppendOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	lines, err := Statement(db, member, base.AddDate(0, 0, 7), base.AddDate(0, 0, 14), nil)
	if err != nil {
		t.Fatalf("statement failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !lines[0].Date.After(lines[1].Date) {
		t.Error("statement not ordered newest first")
	}
	if lines[0].SectionName != f.Section.Name {
		t.Errorf("section name = %q, want %q", lines[0].SectionName, f.Section.Name)
	}
}
