package meeting

import (
	"errors"
	"testing"
	"time"

	"sacco-backend/internal/accounting"
	"sacco-backend/internal/cashround"
	"sacco-backend/internal/ledger"
	"sacco-backend/internal/models"
	"sacco-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

type settlementFixture struct {
	*testutil.Fixture
	Schedule *models.CashRoundSchedule
	Meeting  *models.WeeklyMeeting
}

// newSettlement builds a 3-member cooperative with an active 2000/week cash
// round, a recipient-only savings deduction rule of 2000, and one planned
// meeting for the first week.
func newSettlement(t *testing.T, db *gorm.DB) *settlementFixture {
	t.Helper()
	f := testutil.NewFixture(t, db, 3)

	db.Model(&models.PassbookSection{}).Where("id = ?", f.Section.ID).
		Update("weekly_amount", d("2000"))

	rule := models.DeductionRule{
		SaccoID:       f.Sacco.ID,
		SectionID:     f.Section.ID,
		Amount:        d("2000"),
		AppliesTo:     models.DeductionAppliesRecipient,
		IsActive:      true,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(&rule).Error; err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	round, err := cashround.CreateRound(db, f.Sacco.ID, "Round 1", start, d("2000"), f.MemberIDs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cashround.CreateSchedule(db, round.ID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := cashround.StartRound(db, round.ID); err != nil {
		t.Fatal(err)
	}
	schedule, err := cashround.ActiveSchedule(db, f.Sacco.ID)
	if err != nil {
		t.Fatal(err)
	}

	m, err := CreateMeeting(db, f.Sacco.ID, start, nil)
	if err != nil {
		t.Fatalf("could not create meeting: %v", err)
	}

	return &settlementFixture{Fixture: f, Schedule: schedule, Meeting: m}
}

func TestCreateMeetingPinsRecipient(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	if sf.Meeting.RecipientID == nil || *sf.Meeting.RecipientID != sf.MemberIDs[0] {
		t.Errorf("recipient = %v, want first member %d", sf.Meeting.RecipientID, sf.MemberIDs[0])
	}
	if sf.Meeting.WeekNumber != 1 {
		t.Errorf("week = %d, want 1", sf.Meeting.WeekNumber)
	}
	if sf.Meeting.Status != models.MeetingPlanned {
		t.Errorf("status = %s, want planned", sf.Meeting.Status)
	}

	// A second open meeting on the same date is refused.
	if _, err := CreateMeeting(db, sf.Sacco.ID, sf.Meeting.MeetingDate, nil); !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("duplicate meeting: got %v, want ErrAlreadyExists", err)
	}
}

func TestCreateMeetingNeedsActiveRound(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 1)

	if _, err := CreateMeeting(db, f.Sacco.ID, time.Now(), nil); !errors.Is(err, models.ErrNoActiveSchedule) {
		t.Errorf("got %v, want ErrNoActiveSchedule", err)
	}
}

func TestRecordContributionUpsertsAndMovesToInProgress(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	c, err := RecordContribution(db, sf.Meeting.ID, sf.MemberIDs[0], d("2000"), d("500"), true, "")
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !c.IsRecipient {
		t.Error("first member should be flagged as recipient")
	}
	if c.FundingSource != models.FundingMember {
		t.Errorf("funding = %s, want member", c.FundingSource)
	}

	var m models.WeeklyMeeting
	db.First(&m, sf.Meeting.ID)
	if m.Status != models.MeetingInProgress {
		t.Errorf("status = %s, want in_progress after first record", m.Status)
	}

	// Re-recording the same member updates in place.
	if _, err := RecordContribution(db, sf.Meeting.ID, sf.MemberIDs[0], d("2000"), d("0"), true, "corrected"); err != nil {
		t.Fatal(err)
	}
	var count int64
	db.Model(&models.WeeklyContribution{}).Where("meeting_id = ?", sf.Meeting.ID).Count(&count)
	if count != 1 {
		t.Errorf("contribution rows = %d, want 1 after upsert", count)
	}

	db.First(&m, sf.Meeting.ID)
	if !m.TotalCollected.Equal(d("2000")) {
		t.Errorf("total_collected = %s, want 2000", m.TotalCollected)
	}
}

func TestRecordDefaulterRaisesArrearsLoan(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	amount := d("2000")
	c, err := RecordDefaulter(db, sf.Meeting.ID, sf.MemberIDs[1], &amount, "travelled", nil)
	if err != nil {
		t.Fatalf("record defaulter failed: %v", err)
	}

	if c.FundingSource != models.FundingSacco {
		t.Errorf("funding = %s, want sacco", c.FundingSource)
	}
	if !c.AmountContributed.Equal(d("2000")) {
		t.Errorf("amount = %s, want 2000 (pot stays whole)", c.AmountContributed)
	}

	var loans []models.Loan
	db.Where("meeting_id = ?", sf.Meeting.ID).Find(&loans)
	if len(loans) != 1 {
		t.Fatalf("arrears loans = %d, want exactly 1", len(loans))
	}
	l := loans[0]
	if l.LoanType != models.LoanTypeMissedContribution {
		t.Errorf("loan type = %s, want missed_contribution", l.LoanType)
	}
	if !l.PrincipalAmount.Equal(d("2000")) || !l.InterestAmount.IsZero() {
		t.Errorf("loan principal/interest = %s/%s, want 2000/0", l.PrincipalAmount, l.InterestAmount)
	}
	if l.Status != models.LoanDisbursed {
		t.Errorf("loan status = %s, want disbursed", l.Status)
	}

	// The cooperative's outflow is mirrored as a defaulter-cover expense.
	var txn models.AccountTransaction
	if err := db.Where("meeting_id = ? AND category = ?", sf.Meeting.ID, models.CategoryDefaulterCover).First(&txn).Error; err != nil {
		t.Errorf("no defaulter-cover transaction: %v", err)
	}
}

func TestRecordDefaulterAmountFallback(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	// No explicit amount: falls back to the round's weekly amount.
	c, err := RecordDefaulter(db, sf.Meeting.ID, sf.MemberIDs[1], nil, "", nil)
	if err != nil {
		t.Fatalf("record defaulter failed: %v", err)
	}
	if !c.AmountContributed.Equal(d("2000")) {
		t.Errorf("amount = %s, want round weekly amount 2000", c.AmountContributed)
	}
}

func TestRecordDefaulterAmountRequired(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 2)

	// A meeting with no cash round and no configured standard amount.
	m := models.WeeklyMeeting{SaccoID: f.Sacco.ID, MeetingDate: time.Now(), WeekNumber: 1, Year: 2026, Status: models.MeetingPlanned}
	if err := db.Create(&m).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := RecordDefaulter(db, m.ID, f.MemberIDs[0], nil, "", nil); !errors.Is(err, models.ErrAmountRequired) {
		t.Errorf("got %v, want ErrAmountRequired", err)
	}
}

func TestProcessDeductionsChargesOnlyRecipient(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	for _, memberID := range sf.MemberIDs {
		if _, err := RecordContribution(db, sf.Meeting.ID, memberID, d("2000"), d("0"), true, ""); err != nil {
			t.Fatal(err)
		}
	}

	if err := ProcessDeductions(db, sf.Meeting.ID, nil); err != nil {
		t.Fatalf("process deductions failed: %v", err)
	}

	// Exactly one 2000 credit to the recipient's savings, none to others.
	recipientBal, _ := ledger.Balance(db, sf.MemberIDs[0], sf.Section.ID)
	if !recipientBal.Equal(d("2000")) {
		t.Errorf("recipient savings = %s, want 2000", recipientBal)
	}
	for _, other := range sf.MemberIDs[1:] {
		bal, _ := ledger.Balance(db, other, sf.Section.ID)
		if !bal.IsZero() {
			t.Errorf("member %d savings = %s, want 0 (rule is recipient-only)", other, bal)
		}
	}

	var m models.WeeklyMeeting
	db.First(&m, sf.Meeting.ID)
	if !m.TotalDeductions.Equal(d("2000")) {
		t.Errorf("total_deductions = %s, want 2000", m.TotalDeductions)
	}
	if !m.AmountToRecipient.Equal(d("4000")) {
		t.Errorf("amount_to_recipient = %s, want 6000 collected - 2000 deducted = 4000", m.AmountToRecipient)
	}

	// Running it twice would double-post; it must refuse.
	if err := ProcessDeductions(db, sf.Meeting.ID, nil); !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("second run: got %v, want ErrAlreadyExists", err)
	}
}

func TestProcessDeductionsRecordsBreakdownBySectionType(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	welfare := models.PassbookSection{SaccoID: sf.Sacco.ID, Name: "Welfare", SectionType: models.SectionTypeWelfare, IsActive: true}
	emergency := models.PassbookSection{SaccoID: sf.Sacco.ID, Name: "Emergency", SectionType: models.SectionTypeEmergency, IsActive: true}
	for _, s := range []*models.PassbookSection{&welfare, &emergency} {
		if err := db.Create(s).Error; err != nil {
			t.Fatal(err)
		}
	}

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	extraRules := []models.DeductionRule{
		{SaccoID: sf.Sacco.ID, SectionID: welfare.ID, Amount: d("500"), AppliesTo: models.DeductionAppliesRecipient, IsActive: true, EffectiveFrom: from},
		{SaccoID: sf.Sacco.ID, SectionID: emergency.ID, Amount: d("150"), AppliesTo: models.DeductionAppliesRecipient, IsActive: true, EffectiveFrom: from},
	}
	for i := range extraRules {
		if err := db.Create(&extraRules[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	for _, memberID := range sf.MemberIDs {
		if _, err := RecordContribution(db, sf.Meeting.ID, memberID, d("2000"), d("0"), true, ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := ProcessDeductions(db, sf.Meeting.ID, nil); err != nil {
		t.Fatal(err)
	}

	var c models.WeeklyContribution
	if err := db.Where("meeting_id = ? AND member_id = ?", sf.Meeting.ID, sf.MemberIDs[0]).First(&c).Error; err != nil {
		t.Fatal(err)
	}
	if !c.CompulsorySavingsDeduction.Equal(d("2000")) {
		t.Errorf("compulsory_savings_deduction = %s, want 2000", c.CompulsorySavingsDeduction)
	}
	if !c.WelfareDeduction.Equal(d("500")) {
		t.Errorf("welfare_deduction = %s, want 500", c.WelfareDeduction)
	}
	if !c.DevelopmentDeduction.IsZero() {
		t.Errorf("development_deduction = %s, want 0", c.DevelopmentDeduction)
	}
	// Emergency has no dedicated column and lands in other_deductions.
	if !c.OtherDeductions.Equal(d("150")) {
		t.Errorf("other_deductions = %s, want 150", c.OtherDeductions)
	}
	if !c.TotalDeductions.Equal(d("2650")) {
		t.Errorf("total_deductions = %s, want 2650", c.TotalDeductions)
	}
}

func TestProcessDeductionsPostsOptionalSavingsForAll(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	opt := models.PassbookSection{SaccoID: sf.Sacco.ID, Name: "Optional Savings", SectionType: models.SectionTypeSavings, IsActive: true}
	if err := db.Create(&opt).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := RecordContribution(db, sf.Meeting.ID, sf.MemberIDs[0], d("2000"), d("0"), true, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := RecordContribution(db, sf.Meeting.ID, sf.MemberIDs[1], d("2000"), d("700"), true, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := RecordContribution(db, sf.Meeting.ID, sf.MemberIDs[2], d("2000"), d("300"), true, ""); err != nil {
		t.Fatal(err)
	}

	if err := ProcessDeductions(db, sf.Meeting.ID, nil); err != nil {
		t.Fatal(err)
	}

	// Optional savings credit every member who brought them, recipient or
	// not, unlike the compulsory rule.
	b1, _ := ledger.Balance(db, sf.MemberIDs[1], opt.ID)
	b2, _ := ledger.Balance(db, sf.MemberIDs[2], opt.ID)
	b0, _ := ledger.Balance(db, sf.MemberIDs[0], opt.ID)
	if !b1.Equal(d("700")) || !b2.Equal(d("300")) || !b0.IsZero() {
		t.Errorf("optional savings = %s/%s/%s, want 0/700/300", b0, b1, b2)
	}
}

func completeFullMeeting(t *testing.T, db *gorm.DB, sf *settlementFixture) *models.WeeklyMeeting {
	t.Helper()
	for _, memberID := range sf.MemberIDs[:2] {
		if _, err := RecordContribution(db, sf.Meeting.ID, memberID, d("2000"), d("0"), true, ""); err != nil {
			t.Fatal(err)
		}
	}
	amount := d("2000")
	if _, err := RecordDefaulter(db, sf.Meeting.ID, sf.MemberIDs[2], &amount, "", nil); err != nil {
		t.Fatal(err)
	}
	if err := ProcessDeductions(db, sf.Meeting.ID, nil); err != nil {
		t.Fatal(err)
	}
	m, err := Complete(db, sf.Meeting.ID, nil)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	return m
}

func TestCompleteComputesTotalsAndAdvancesRotation(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	m := completeFullMeeting(t, db, sf)

	if m.Status != models.MeetingCompleted {
		t.Errorf("status = %s, want completed", m.Status)
	}
	if !m.TotalCollected.Equal(d("6000")) {
		t.Errorf("total_collected = %s, want 6000", m.TotalCollected)
	}
	if !m.TotalDeductions.Equal(d("2000")) {
		t.Errorf("total_deductions = %s, want 2000", m.TotalDeductions)
	}
	if !m.AmountToRecipient.Equal(d("4000")) {
		t.Errorf("amount_to_recipient = %s, want 4000", m.AmountToRecipient)
	}
	// The only tagged credit entry is the 2000 deduction.
	if !m.AmountToBank.Equal(d("2000")) {
		t.Errorf("amount_to_bank = %s, want 2000", m.AmountToBank)
	}

	// Rotation advanced to the second member.
	recipient, _, err := cashround.CurrentRecipient(db, sf.Sacco.ID)
	if err != nil {
		t.Fatal(err)
	}
	if recipient != sf.MemberIDs[1] {
		t.Errorf("next recipient = %d, want %d", recipient, sf.MemberIDs[1])
	}

	// One income transaction for the banked amount.
	var txns []models.AccountTransaction
	db.Where("meeting_id = ? AND kind = ?", m.ID, models.TransactionIncome).Find(&txns)
	if len(txns) != 1 {
		t.Fatalf("income transactions = %d, want 1", len(txns))
	}
	if !txns[0].Amount.Equal(d("2000")) {
		t.Errorf("income amount = %s, want 2000", txns[0].Amount)
	}

	// Completing again is refused.
	if _, err := Complete(db, sf.Meeting.ID, nil); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("double complete: got %v, want ErrInvalidTransition", err)
	}
}

func TestCompleteIncludesLateManualEntries(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	if _, err := RecordContribution(db, sf.Meeting.ID, sf.MemberIDs[0], d("2000"), d("0"), true, ""); err != nil {
		t.Fatal(err)
	}
	if err := ProcessDeductions(db, sf.Meeting.ID, nil); err != nil {
		t.Fatal(err)
	}

	// A manual entry tagged to the meeting after deductions ran.
	meetingID := sf.Meeting.ID
	if _, err := ledger.AppendEntry(db, sf.MemberIDs[1], sf.Section.ID, d("150"), models.EntryCredit, sf.Meeting.MeetingDate, ledger.AppendOptions{
		MeetingID: &meetingID, Description: "late top-up",
	}); err != nil {
		t.Fatal(err)
	}

	m, err := Complete(db, sf.Meeting.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !m.AmountToBank.Equal(d("2150")) {
		t.Errorf("amount_to_bank = %s, want 2150 (deduction 2000 + late 150)", m.AmountToBank)
	}
}

func TestResetUnwindsEverything(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)
	completeFullMeeting(t, db, sf)

	m, err := Reset(db, sf.Meeting.ID, nil)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	if m.Status != models.MeetingInProgress {
		t.Errorf("status = %s, want in_progress", m.Status)
	}
	if !m.TotalCollected.IsZero() || !m.AmountToBank.IsZero() {
		t.Errorf("totals not zeroed: collected=%s bank=%s", m.TotalCollected, m.AmountToBank)
	}

	var contribCount, entryCount, loanCount, txnCount int64
	db.Model(&models.WeeklyContribution{}).Where("meeting_id = ?", m.ID).Count(&contribCount)
	db.Model(&models.PassbookEntry{}).Where("meeting_id = ?", m.ID).Count(&entryCount)
	db.Model(&models.Loan{}).Where("meeting_id = ?", m.ID).Count(&loanCount)
	db.Model(&models.AccountTransaction{}).Where("meeting_id = ?", m.ID).Count(&txnCount)
	if contribCount+entryCount+loanCount+txnCount != 0 {
		t.Errorf("leftovers after reset: contributions=%d entries=%d loans=%d transactions=%d",
			contribCount, entryCount, loanCount, txnCount)
	}

	// Recipient's savings balance is back to zero.
	bal, _ := ledger.Balance(db, sf.MemberIDs[0], sf.Section.ID)
	if !bal.IsZero() {
		t.Errorf("recipient savings after reset = %s, want 0", bal)
	}

	// Rotation pointer rolled back to the first member.
	recipient, _, err := cashround.CurrentRecipient(db, sf.Sacco.ID)
	if err != nil {
		t.Fatal(err)
	}
	if recipient != sf.MemberIDs[0] {
		t.Errorf("recipient after reset = %d, want %d", recipient, sf.MemberIDs[0])
	}

	// The cooperative's account is back where it started: the 2000
	// defaulter-cover expense and the 2000 income both rolled out.
	account, _ := accounting.GetOrCreateAccount(db, sf.Sacco.ID)
	if !account.Balance.IsZero() {
		t.Errorf("account balance after reset = %s, want 0", account.Balance)
	}

	// Resetting a non-completed meeting is refused.
	if _, err := Reset(db, sf.Meeting.ID, nil); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("double reset: got %v, want ErrInvalidTransition", err)
	}
}

func TestCompleteResetCompleteIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)

	first := completeFullMeeting(t, db, sf)

	if _, err := Reset(db, sf.Meeting.ID, nil); err != nil {
		t.Fatal(err)
	}

	// Re-record identical input data and complete again.
	second := completeFullMeeting(t, db, sf)

	if !first.TotalCollected.Equal(second.TotalCollected) ||
		!first.TotalDeductions.Equal(second.TotalDeductions) ||
		!first.AmountToRecipient.Equal(second.AmountToRecipient) ||
		!first.AmountToBank.Equal(second.AmountToBank) {
		t.Errorf("totals differ after reset+recomplete: first=%+v second=%+v", first, second)
	}

	// External transaction amounts match the first run.
	var txn models.AccountTransaction
	if err := db.Where("meeting_id = ? AND kind = ?", sf.Meeting.ID, models.TransactionIncome).First(&txn).Error; err != nil {
		t.Fatal(err)
	}
	if !txn.Amount.Equal(first.AmountToBank) {
		t.Errorf("income amount = %s, want %s", txn.Amount, first.AmountToBank)
	}
}

func TestNoRecordsOnCompletedMeeting(t *testing.T) {
	db := testutil.OpenDB(t)
	sf := newSettlement(t, db)
	completeFullMeeting(t, db, sf)

	if _, err := RecordContribution(db, sf.Meeting.ID, sf.MemberIDs[0], d("2000"), d("0"), true, ""); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("contribution on completed meeting: got %v, want ErrInvalidTransition", err)
	}
	amount := d("2000")
	if _, err := RecordDefaulter(db, sf.Meeting.ID, sf.MemberIDs[1], &amount, "", nil); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("defaulter on completed meeting: got %v, want ErrInvalidTransition", err)
	}
}
