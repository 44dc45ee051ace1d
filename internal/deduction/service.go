// Package deduction selects which compulsory deduction rules apply to a
// given meeting date. Meeting settlement turns the selected rules into
// passbook credits against the recipient.
package deduction

import (
	"time"

	"sacco-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EffectiveRules returns the cooperative's rules in force on the given
// date: active, effective_from <= date, and effective_until unset or >=
// date. Ordered by id so deduction entries post deterministically.
func EffectiveRules(tx *gorm.DB, saccoID uint, date time.Time) ([]models.DeductionRule, error) {
	var rules []models.DeductionRule
	err := tx.
		Preload("Section").
		Where("sacco_id = ? AND is_active = ?", saccoID, true).
		Where("effective_from <= ?", date).
		Where("effective_until IS NULL OR effective_until >= ?", date).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// RecipientRules narrows EffectiveRules to the ones charged to the cash
// round recipient.
func RecipientRules(tx *gorm.DB, saccoID uint, date time.Time) ([]models.DeductionRule, error) {
	rules, err := EffectiveRules(tx, saccoID, date)
	if err != nil {
		return nil, err
	}

	out := rules[:0]
	for _, r := range rules {
		if r.AppliesTo == models.DeductionAppliesRecipient {
			out = append(out, r)
		}
	}
	return out, nil
}

// Total sums the amounts of a rule set.
func Total(rules []models.DeductionRule) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rules {
		total = total.Add(r.Amount)
	}
	return total
}
