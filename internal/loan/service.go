// Package loan implements the loan book: normal loans with simple interest
// and the zero-interest arrears loans raised when the cooperative fronts a
// defaulter's weekly contribution.
package loan

import (
	"fmt"
	"time"

	"sacco-backend/internal/accounting"
	"sacco-backend/internal/ledger"
	"sacco-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)
var twelve = decimal.NewFromInt(12)

// InterestFor computes simple interest: principal * rate/100 * months/12,
// rounded to 2 decimal places. 10000 at 10% over one month is 83.33.
func InterestFor(principal, annualRate decimal.Decimal, durationMonths uint) decimal.Decimal {
	return principal.
		Mul(annualRate).Div(hundred).
		Mul(decimal.NewFromInt(int64(durationMonths))).Div(twelve).
		Round(2)
}

// Apply creates a pending loan application with interest fixed up front.
// Guarantors, when given, share the total (principal + interest) equally.
func Apply(tx *gorm.DB, saccoID, memberID uint, principal, annualRate decimal.Decimal, durationMonths uint, purpose string, guarantorIDs []uint) (*models.Loan, error) {
	if !principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be greater than 0", models.ErrInvalidAmount)
	}
	if annualRate.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate cannot be negative", models.ErrInvalidAmount)
	}
	if durationMonths == 0 {
		return nil, fmt.Errorf("%w: duration must be at least 1 month", models.ErrInvalidAmount)
	}

	var member models.SaccoMember
	if err := tx.First(&member, "id = ? AND sacco_id = ?", memberID, saccoID).Error; err != nil {
		return nil, fmt.Errorf("member %d not found in sacco %d: %w", memberID, saccoID, err)
	}
	if member.Status != models.MemberStatusActive {
		return nil, fmt.Errorf("%w: member %d is not active", models.ErrInvalidTransition, memberID)
	}

	interest := InterestFor(principal, annualRate, durationMonths)

	l := models.Loan{
		SaccoID:         saccoID,
		MemberID:        memberID,
		LoanNumber:      nextLoanNumber(tx, saccoID, "LN"),
		PrincipalAmount: principal,
		InterestRate:    annualRate,
		InterestAmount:  interest,
		TotalAmount:     principal.Add(interest),
		ApplicationDate: time.Now(),
		DurationMonths:  durationMonths,
		Status:          models.LoanPending,
		LoanType:        models.LoanTypeNormal,
		Purpose:         purpose,
	}
	if err := tx.Create(&l).Error; err != nil {
		return nil, err
	}

	if len(guarantorIDs) > 0 {
		seen := make(map[uint]bool, len(guarantorIDs))
		share := l.TotalAmount.Div(decimal.NewFromInt(int64(len(guarantorIDs)))).Round(2)
		for _, gid := range guarantorIDs {
			if gid == memberID {
				return nil, fmt.Errorf("%w: a member cannot guarantee their own loan", models.ErrInvalidTransition)
			}
			if seen[gid] {
				return nil, fmt.Errorf("%w: guarantor %d listed twice", models.ErrAlreadyExists, gid)
			}
			seen[gid] = true

			var g models.SaccoMember
			if err := tx.First(&g, "id = ? AND sacco_id = ?", gid, saccoID).Error; err != nil {
				return nil, fmt.Errorf("guarantor %d not found in sacco %d: %w", gid, saccoID, err)
			}
			if g.Status != models.MemberStatusActive {
				return nil, fmt.Errorf("%w: guarantor %d is not active", models.ErrInvalidTransition, gid)
			}

			row := models.LoanGuarantor{
				LoanID:          l.ID,
				GuarantorID:     gid,
				GuaranteeAmount: share,
				IsActive:        true,
			}
			if err := tx.Create(&row).Error; err != nil {
				return nil, err
			}
		}
	}

	return &l, nil
}

// Approve moves a pending loan to approved.
func Approve(tx *gorm.DB, loanID uint, approvedBy *uint) (*models.Loan, error) {
	var l models.Loan
	if err := tx.First(&l, loanID).Error; err != nil {
		return nil, fmt.Errorf("loan %d not found: %w", loanID, err)
	}
	if l.Status != models.LoanPending {
		return nil, fmt.Errorf("%w: loan is %s, only pending loans can be approved", models.ErrInvalidTransition, l.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        models.LoanApproved,
		"approval_date": &now,
		"approved_by":   approvedBy,
	}
	if err := tx.Model(&l).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// Reject moves a pending loan to rejected with a reason.
func Reject(tx *gorm.DB, loanID uint, reason string, rejectedBy *uint) (*models.Loan, error) {
	var l models.Loan
	if err := tx.First(&l, loanID).Error; err != nil {
		return nil, fmt.Errorf("loan %d not found: %w", loanID, err)
	}
	if l.Status != models.LoanPending {
		return nil, fmt.Errorf("%w: loan is %s, only pending loans can be rejected", models.ErrInvalidTransition, l.Status)
	}

	updates := map[string]interface{}{
		"status":           models.LoanRejected,
		"rejection_reason": reason,
		"approved_by":      rejectedBy,
	}
	if err := tx.Model(&l).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// Disburse pays out an approved loan: opens the repayment balances, sets
// the due date, debits the member's loan section (the money leaves savings
// custody into the member's hand) and mirrors the outflow into the
// cooperative's account. An accounting failure fails the disbursement.
func Disburse(tx *gorm.DB, loanID uint, date time.Time, disbursedBy *uint, loanSectionID *uint) (*models.Loan, error) {
	var l models.Loan
	if err := tx.First(&l, loanID).Error; err != nil {
		return nil, fmt.Errorf("loan %d not found: %w", loanID, err)
	}
	if l.Status != models.LoanApproved {
		return nil, fmt.Errorf("%w: loan is %s, only approved loans can be disbursed", models.ErrInvalidTransition, l.Status)
	}

	due := date.AddDate(0, int(l.DurationMonths), 0)
	updates := map[string]interface{}{
		"status":            models.LoanDisbursed,
		"disbursement_date": &date,
		"due_date":          &due,
		"balance_principal": l.PrincipalAmount,
		"balance_interest":  l.InterestAmount,
	}
	if err := tx.Model(&l).Updates(updates).Error; err != nil {
		return nil, err
	}

	if loanSectionID != nil {
		_, err := ledger.AppendEntry(tx, l.MemberID, *loanSectionID, l.PrincipalAmount, models.EntryDebit, date, ledger.AppendOptions{
			Description:     fmt.Sprintf("Loan %s disbursed", l.LoanNumber),
			ReferenceNumber: l.LoanNumber,
			RecordedBy:      disbursedBy,
		})
		if err != nil {
			return nil, err
		}
	}

	_, err := accounting.RecordTransaction(tx, l.SaccoID, models.TransactionExpense, l.PrincipalAmount, models.CategoryLoanDisbursement, accounting.RecordOptions{
		Description: fmt.Sprintf("Loan %s disbursed", l.LoanNumber),
		Date:        date,
		LoanID:      &l.ID,
		RecordedBy:  disbursedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("could not mirror disbursement: %w", err)
	}

	if err := tx.First(&l, loanID).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateArrearsLoan raises the zero-interest missed_contribution loan for a
// defaulter covered by the cooperative. The loan is born disbursed, tagged
// with the meeting that raised it, and due on the meeting date itself.
func CreateArrearsLoan(tx *gorm.DB, saccoID, memberID uint, amount decimal.Decimal, meetingID uint, date time.Time) (*models.Loan, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: arrears amount must be greater than 0", models.ErrInvalidAmount)
	}

	due := date
	l := models.Loan{
		SaccoID:          saccoID,
		MemberID:         memberID,
		LoanNumber:       nextLoanNumber(tx, saccoID, "ML"),
		PrincipalAmount:  amount,
		InterestRate:     decimal.Zero,
		InterestAmount:   decimal.Zero,
		TotalAmount:      amount,
		ApplicationDate:  date,
		DisbursementDate: &date,
		DueDate:          &due,
		DurationMonths:   1,
		BalancePrincipal: amount,
		BalanceInterest:  decimal.Zero,
		Status:           models.LoanDisbursed,
		LoanType:         models.LoanTypeMissedContribution,
		MeetingID:        &meetingID,
		Purpose:          "Missed weekly contribution",
	}
	if err := tx.Create(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// PaymentOptions carries the optional metadata of a loan payment.
type PaymentOptions struct {
	PaymentMethod   string
	ReferenceNumber string
	Notes           string
	RecordedBy      *uint
	// Sections to post the portions into: principal credits the loan
	// section, interest credits the interest section. Either is skipped
	// when nil.
	LoanSectionID     *uint
	InterestSectionID *uint
}

// RecordPayment applies a repayment interest-first: the outstanding
// interest is cleared before any shilling reduces the principal. Paying
// more than the total balance is rejected. Clearing both balances marks the
// loan paid. The inflow mirrors into the cooperative's account, the
// principal portion credits the loan section and the interest portion the
// interest section when those are given.
func RecordPayment(tx *gorm.DB, loanID uint, amount decimal.Decimal, date time.Time, opts PaymentOptions) (*models.LoanPayment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment must be greater than 0", models.ErrInvalidAmount)
	}

	var l models.Loan
	if err := tx.First(&l, loanID).Error; err != nil {
		return nil, fmt.Errorf("loan %d not found: %w", loanID, err)
	}
	if l.Status != models.LoanDisbursed && l.Status != models.LoanActive && l.Status != models.LoanDefaulted {
		return nil, fmt.Errorf("%w: loan is %s, payments need a disbursed loan", models.ErrInvalidTransition, l.Status)
	}

	outstanding := l.TotalBalance()
	if amount.GreaterThan(outstanding) {
		return nil, fmt.Errorf("%w: payment %s exceeds outstanding balance %s", models.ErrInvalidAmount, amount, outstanding)
	}

	interestPortion := decimal.Min(amount, l.BalanceInterest)
	principalPortion := amount.Sub(interestPortion)

	l.AmountPaidInterest = l.AmountPaidInterest.Add(interestPortion)
	l.BalanceInterest = l.BalanceInterest.Sub(interestPortion)
	l.AmountPaidPrincipal = l.AmountPaidPrincipal.Add(principalPortion)
	l.BalancePrincipal = l.BalancePrincipal.Sub(principalPortion)

	status := models.LoanActive
	if l.TotalBalance().IsZero() {
		status = models.LoanPaid
	}

	updates := map[string]interface{}{
		"amount_paid_interest":  l.AmountPaidInterest,
		"balance_interest":      l.BalanceInterest,
		"amount_paid_principal": l.AmountPaidPrincipal,
		"balance_principal":     l.BalancePrincipal,
		"status":                status,
	}
	if err := tx.Model(&models.Loan{}).Where("id = ?", l.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	payment := models.LoanPayment{
		LoanID:          l.ID,
		PaymentDate:     date,
		TotalAmount:     amount,
		PrincipalAmount: principalPortion,
		InterestAmount:  interestPortion,
		PaymentMethod:   opts.PaymentMethod,
		ReferenceNumber: opts.ReferenceNumber,
		Notes:           opts.Notes,
		RecordedBy:      opts.RecordedBy,
	}

	if opts.LoanSectionID != nil && principalPortion.IsPositive() {
		entry, err := ledger.AppendEntry(tx, l.MemberID, *opts.LoanSectionID, principalPortion, models.EntryCredit, date, ledger.AppendOptions{
			Description: fmt.Sprintf("Loan %s repayment (principal)", l.LoanNumber),
			RecordedBy:  opts.RecordedBy,
		})
		if err != nil {
			return nil, err
		}
		payment.EntryID = &entry.ID
	}
	if opts.InterestSectionID != nil && interestPortion.IsPositive() {
		_, err := ledger.AppendEntry(tx, l.MemberID, *opts.InterestSectionID, interestPortion, models.EntryCredit, date, ledger.AppendOptions{
			Description: fmt.Sprintf("Loan %s repayment (interest)", l.LoanNumber),
			RecordedBy:  opts.RecordedBy,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Create(&payment).Error; err != nil {
		return nil, err
	}

	_, err := accounting.RecordTransaction(tx, l.SaccoID, models.TransactionIncome, amount, models.CategoryLoanRepayment, accounting.RecordOptions{
		Description: fmt.Sprintf("Loan %s repayment", l.LoanNumber),
		Date:        date,
		LoanID:      &l.ID,
		RecordedBy:  opts.RecordedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("could not mirror repayment: %w", err)
	}

	return &payment, nil
}

// DeleteMeetingLoans removes the arrears loans a meeting raised, for
// meeting reset. A loan that already received a payment blocks the reset.
func DeleteMeetingLoans(tx *gorm.DB, meetingID uint) (int, error) {
	var loans []models.Loan
	if err := tx.Where("meeting_id = ? AND loan_type = ?", meetingID, models.LoanTypeMissedContribution).
		Find(&loans).Error; err != nil {
		return 0, err
	}

	for _, l := range loans {
		var payments int64
		if err := tx.Model(&models.LoanPayment{}).Where("loan_id = ?", l.ID).Count(&payments).Error; err != nil {
			return 0, err
		}
		if payments > 0 {
			return 0, fmt.Errorf("%w: loan %s already has payments", models.ErrInvalidTransition, l.LoanNumber)
		}
	}

	for _, l := range loans {
		if err := tx.Delete(&models.Loan{}, l.ID).Error; err != nil {
			return 0, err
		}
	}
	return len(loans), nil
}

// MarkOverdueDefaulted flags disbursed/active loans past their due date.
func MarkOverdueDefaulted(tx *gorm.DB, saccoID uint, now time.Time) (int64, error) {
	res := tx.Model(&models.Loan{}).
		Where("sacco_id = ? AND status IN ? AND due_date IS NOT NULL AND due_date < ?",
			saccoID, []models.LoanStatus{models.LoanDisbursed, models.LoanActive}, now).
		Update("status", models.LoanDefaulted)
	return res.RowsAffected, res.Error
}

func nextLoanNumber(tx *gorm.DB, saccoID uint, prefix string) string {
	var count int64
	tx.Model(&models.Loan{}).Where("sacco_id = ?", saccoID).Count(&count)
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().Year(), count+1)
}
