// Package withdrawal lets members draw down their withdrawable sections.
// Pending and approved withdrawals reserve funds: availability is the
// ledger balance minus those reservations, so two requests cannot promise
// the same shilling.
package withdrawal

import (
	"fmt"
	"time"

	"sacco-backend/internal/accounting"
	"sacco-backend/internal/ledger"
	"sacco-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SectionAvailability is one withdrawable section seen through the
// reservation lens.
type SectionAvailability struct {
	SectionID   uint            `json:"section_id"`
	SectionName string          `json:"section_name"`
	Balance     decimal.Decimal `json:"balance"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
}

// Available lists the member's withdrawable sections with balance, amount
// reserved by pending/approved withdrawals, and what remains drawable.
// Ordered by display order, which is also the greedy allocation order.
func Available(tx *gorm.DB, saccoID, memberID uint) ([]SectionAvailability, error) {
	var sections []models.PassbookSection
	if err := tx.
		Where("sacco_id = ? AND withdrawable = ? AND is_active = ?", saccoID, true, true).
		Order("display_order ASC, id ASC").
		Find(&sections).Error; err != nil {
		return nil, err
	}

	out := make([]SectionAvailability, 0, len(sections))
	for _, s := range sections {
		balance, err := ledger.Balance(tx, memberID, s.ID)
		if err != nil {
			return nil, err
		}

		reserved, err := reservedAmount(tx, memberID, s.ID)
		if err != nil {
			return nil, err
		}

		available := balance.Sub(reserved)
		if available.IsNegative() {
			available = decimal.Zero
		}
		out = append(out, SectionAvailability{
			SectionID:   s.ID,
			SectionName: s.Name,
			Balance:     balance,
			Reserved:    reserved,
			Available:   available,
		})
	}
	return out, nil
}

// AllocationInput is one explicit section draw in a request.
type AllocationInput struct {
	SectionID uint            `json:"section_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Request opens a pending withdrawal. With explicit allocations they must
// target withdrawable sections, sum to exactly the requested amount, and
// fit each section's availability. With none, the amount is split greedily
// across sections in display order. Either way the resulting allocations
// reserve the funds until the request is disbursed or rejected.
func Request(tx *gorm.DB, saccoID, memberID uint, amount decimal.Decimal, reason string, allocations []AllocationInput, requestedBy *uint) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdrawal amount must be greater than 0", models.ErrInvalidAmount)
	}

	var member models.SaccoMember
	if err := tx.First(&member, "id = ? AND sacco_id = ?", memberID, saccoID).Error; err != nil {
		return nil, fmt.Errorf("member %d not found in sacco %d: %w", memberID, saccoID, err)
	}

	availability, err := Available(tx, saccoID, memberID)
	if err != nil {
		return nil, err
	}
	availByID := make(map[uint]SectionAvailability, len(availability))
	for _, a := range availability {
		availByID[a.SectionID] = a
	}

	var final []models.WithdrawalAllocation

	if len(allocations) > 0 {
		sum := decimal.Zero
		seen := make(map[uint]bool, len(allocations))
		for _, a := range allocations {
			if !a.Amount.IsPositive() {
				return nil, fmt.Errorf("%w: allocation for section %d must be greater than 0", models.ErrInvalidAllocation, a.SectionID)
			}
			if seen[a.SectionID] {
				return nil, fmt.Errorf("%w: section %d allocated twice", models.ErrInvalidAllocation, a.SectionID)
			}
			seen[a.SectionID] = true

			avail, ok := availByID[a.SectionID]
			if !ok {
				return nil, fmt.Errorf("%w: section %d is not withdrawable", models.ErrInvalidAllocation, a.SectionID)
			}
			if a.Amount.GreaterThan(avail.Available) {
				return nil, fmt.Errorf("%w: section %s has %s available, %s requested",
					models.ErrInsufficientFunds, avail.SectionName, avail.Available, a.Amount)
			}

			sum = sum.Add(a.Amount)
			final = append(final, models.WithdrawalAllocation{SectionID: a.SectionID, Amount: a.Amount})
		}
		if !sum.Equal(amount) {
			return nil, fmt.Errorf("%w: allocations sum to %s, withdrawal amount is %s", models.ErrInvalidAllocation, sum, amount)
		}
	} else {
		remaining := amount
		for _, a := range availability {
			if remaining.IsZero() {
				break
			}
			if !a.Available.IsPositive() {
				continue
			}
			take := decimal.Min(remaining, a.Available)
			final = append(final, models.WithdrawalAllocation{SectionID: a.SectionID, Amount: take})
			remaining = remaining.Sub(take)
		}
		if remaining.IsPositive() {
			return nil, fmt.Errorf("%w: requested %s but only %s is available across withdrawable sections",
				models.ErrInsufficientFunds, amount, amount.Sub(remaining))
		}
	}

	w := models.Withdrawal{
		SaccoID:          saccoID,
		MemberID:         memberID,
		WithdrawalNumber: nextWithdrawalNumber(tx, saccoID),
		RequestDate:      time.Now(),
		Amount:           amount,
		Reason:           reason,
		Status:           models.WithdrawalPending,
		RequestedBy:      requestedBy,
		Allocations:      final,
	}
	if err := tx.Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Approve moves a pending withdrawal to approved. The reservation made at
// request time carries over unchanged.
func Approve(tx *gorm.DB, withdrawalID uint, approvedBy *uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := tx.First(&w, withdrawalID).Error; err != nil {
		return nil, fmt.Errorf("withdrawal %d not found: %w", withdrawalID, err)
	}
	if w.Status != models.WithdrawalPending {
		return nil, fmt.Errorf("%w: withdrawal is %s, only pending withdrawals can be approved", models.ErrInvalidTransition, w.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        models.WithdrawalApproved,
		"approved_by":   approvedBy,
		"approval_date": &now,
	}
	if err := tx.Model(&w).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Reject declines a pending or approved withdrawal, releasing its
// reservation (rejected allocations no longer count against availability).
func Reject(tx *gorm.DB, withdrawalID uint, reason string, rejectedBy *uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := tx.First(&w, withdrawalID).Error; err != nil {
		return nil, fmt.Errorf("withdrawal %d not found: %w", withdrawalID, err)
	}
	if w.Status != models.WithdrawalPending && w.Status != models.WithdrawalApproved {
		return nil, fmt.Errorf("%w: withdrawal is %s, cannot reject", models.ErrInvalidTransition, w.Status)
	}

	updates := map[string]interface{}{
		"status":           models.WithdrawalRejected,
		"rejection_reason": reason,
		"approved_by":      rejectedBy,
	}
	if err := tx.Model(&w).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Disburse pays out an approved withdrawal: each allocation becomes a
// passbook debit, and the total mirrors into the cooperative's account as
// an expense. An accounting failure fails the disbursement.
func Disburse(tx *gorm.DB, withdrawalID uint, date time.Time, disbursedBy *uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := tx.Preload("Allocations").First(&w, withdrawalID).Error; err != nil {
		return nil, fmt.Errorf("withdrawal %d not found: %w", withdrawalID, err)
	}
	if w.Status != models.WithdrawalApproved {
		return nil, fmt.Errorf("%w: withdrawal is %s, only approved withdrawals can be disbursed", models.ErrInvalidTransition, w.Status)
	}

	for i := range w.Allocations {
		a := &w.Allocations[i]

		// The reservation should guarantee cover, but the balance may have
		// moved since; never let a section go negative here.
		balance, err := ledger.Balance(tx, w.MemberID, a.SectionID)
		if err != nil {
			return nil, err
		}
		if a.Amount.GreaterThan(balance) {
			return nil, fmt.Errorf("%w: section %d holds %s, allocation needs %s",
				models.ErrInsufficientFunds, a.SectionID, balance, a.Amount)
		}

		entry, err := ledger.AppendEntry(tx, w.MemberID, a.SectionID, a.Amount, models.EntryDebit, date, ledger.AppendOptions{
			Description:     fmt.Sprintf("Withdrawal %s", w.WithdrawalNumber),
			ReferenceNumber: w.WithdrawalNumber,
			RecordedBy:      disbursedBy,
		})
		if err != nil {
			return nil, err
		}
		if err := tx.Model(a).Update("entry_id", entry.ID).Error; err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"status":            models.WithdrawalDisbursed,
		"disbursement_date": &date,
	}
	if err := tx.Model(&w).Updates(updates).Error; err != nil {
		return nil, err
	}

	_, err := accounting.RecordTransaction(tx, w.SaccoID, models.TransactionExpense, w.Amount, models.CategoryWithdrawal, accounting.RecordOptions{
		Description:  fmt.Sprintf("Withdrawal %s disbursed", w.WithdrawalNumber),
		Date:         date,
		WithdrawalID: &w.ID,
		RecordedBy:   disbursedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("could not mirror withdrawal: %w", err)
	}

	return &w, nil
}

func reservedAmount(tx *gorm.DB, memberID, sectionID uint) (decimal.Decimal, error) {
	var allocations []models.WithdrawalAllocation
	err := tx.
		Joins("JOIN withdrawals ON withdrawals.id = withdrawal_allocations.withdrawal_id").
		Where("withdrawals.member_id = ? AND withdrawal_allocations.section_id = ?", memberID, sectionID).
		Where("withdrawals.status IN ?", []models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalApproved}).
		Find(&allocations).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total, nil
}

func nextWithdrawalNumber(tx *gorm.DB, saccoID uint) string {
	var count int64
	tx.Model(&models.Withdrawal{}).Where("sacco_id = ?", saccoID).Count(&count)
	return fmt.Sprintf("WD-%d-%04d", time.Now().Year(), count+1)
}
