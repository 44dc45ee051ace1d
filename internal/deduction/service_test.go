package deduction

import (
	"testing"
	"time"

	"sacco-backend/internal/models"
	"sacco-backend/internal/testutil"

	"github.com/shopspring/decimal"
)

func TestEffectiveRulesWindow(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	rules := []models.DeductionRule{
		{SaccoID: f.Sacco.ID, SectionID: f.Section.ID, Amount: decimal.NewFromInt(1000), AppliesTo: models.DeductionAppliesRecipient, IsActive: true, EffectiveFrom: jan, Description: "open-ended"},
		{SaccoID: f.Sacco.ID, SectionID: f.Section.ID, Amount: decimal.NewFromInt(500), AppliesTo: models.DeductionAppliesRecipient, IsActive: true, EffectiveFrom: jan, EffectiveUntil: &jun, Description: "first half only"},
		{SaccoID: f.Sacco.ID, SectionID: f.Section.ID, Amount: decimal.NewFromInt(200), AppliesTo: models.DeductionAppliesRecipient, IsActive: false, EffectiveFrom: jan, Description: "deactivated"},
		{SaccoID: f.Sacco.ID, SectionID: f.Section.ID, Amount: decimal.NewFromInt(300), AppliesTo: models.DeductionAppliesRecipient, IsActive: true, EffectiveFrom: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Description: "not yet in force"},
	}
	for i := range rules {
		if err := db.Create(&rules[i]).Error; err != nil {
			t.Fatalf("could not create rule: %v", err)
		}
	}

	got, err := EffectiveRules(db, f.Sacco.ID, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("EffectiveRules failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rules in March = %d, want 2", len(got))
	}
	if !Total(got).Equal(decimal.NewFromInt(1500)) {
		t.Errorf("total = %s, want 1500", Total(got))
	}

	// After the bounded rule expires only the open-ended one remains.
	got, err = EffectiveRules(db, f.Sacco.ID, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("rules in August = %v, want just the open-ended 1000 rule", got)
	}
}

func TestDeactivatedRulePersistsInactive(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)

	rule := models.DeductionRule{
		SaccoID:       f.Sacco.ID,
		SectionID:     f.Section.ID,
		Amount:        decimal.NewFromInt(200),
		AppliesTo:     models.DeductionAppliesRecipient,
		IsActive:      false,
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(&rule).Error; err != nil {
		t.Fatal(err)
	}

	var stored models.DeductionRule
	if err := db.First(&stored, rule.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.IsActive {
		t.Error("rule created inactive came back active")
	}
}

func TestRecipientRulesExcludesAllMembers(t *testing.T) {
	db := testutil.OpenDB(t)
	f := testutil.NewFixture(t, db, 0)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rules := []models.DeductionRule{
		{SaccoID: f.Sacco.ID, SectionID: f.Section.ID, Amount: decimal.NewFromInt(2000), AppliesTo: models.DeductionAppliesRecipient, IsActive: true, EffectiveFrom: jan},
		{SaccoID: f.Sacco.ID, SectionID: f.Section.ID, Amount: decimal.NewFromInt(100), AppliesTo: models.DeductionAppliesAll, IsActive: true, EffectiveFrom: jan},
	}
	for i := range rules {
		if err := db.Create(&rules[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	got, err := RecipientRules(db, f.Sacco.ID, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].AppliesTo != models.DeductionAppliesRecipient {
		t.Errorf("got %v, want only the recipient rule", got)
	}
}

func TestIsEffectiveOnBoundaries(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	rule := models.DeductionRule{IsActive: true, EffectiveFrom: from, EffectiveUntil: &until}

	if !rule.IsEffectiveOn(from) {
		t.Error("rule should be effective on its first day")
	}
	if !rule.IsEffectiveOn(until) {
		t.Error("rule should be effective on its last day")
	}
	if rule.IsEffectiveOn(until.AddDate(0, 0, 1)) {
		t.Error("rule should not be effective after effective_until")
	}
	if rule.IsEffectiveOn(from.AddDate(0, 0, -1)) {
		t.Error("rule should not be effective before effective_from")
	}
}
