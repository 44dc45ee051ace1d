// Package testutil opens throwaway sqlite databases for service tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"sacco-backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter int64

// OpenDB returns a fresh in-memory database with the full schema migrated.
// Each call gets its own database, so tests stay independent.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("could not open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("could not get sql.DB: %v", err)
	}
	// A single connection keeps the shared-cache memory database alive for
	// the whole test.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.SaccoOrganization{},
		&models.SaccoMember{},
		&models.PassbookSection{},
		&models.PassbookEntry{},
		&models.DeductionRule{},
		&models.CashRound{},
		&models.CashRoundMember{},
		&models.CashRoundSchedule{},
		&models.WeeklyMeeting{},
		&models.WeeklyContribution{},
		&models.Loan{},
		&models.LoanPayment{},
		&models.LoanGuarantor{},
		&models.Withdrawal{},
		&models.WithdrawalAllocation{},
		&models.SaccoAccount{},
		&models.AccountTransaction{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("could not migrate test schema: %v", err)
	}

	return db
}

// Fixture creates a sacco, a section and a handful of active members, and
// returns their ids. Most service tests start from this shape.
type Fixture struct {
	Sacco     models.SaccoOrganization
	Section   models.PassbookSection
	MemberIDs []uint
}

func NewFixture(t *testing.T, db *gorm.DB, memberCount int) *Fixture {
	t.Helper()

	f := &Fixture{}

	f.Sacco = models.SaccoOrganization{
		Name:               "Umoja SACCO",
		RegistrationNumber: fmt.Sprintf("REG-%d", atomic.AddInt64(&dbCounter, 1)),
		IsActive:           true,
	}
	if err := db.Create(&f.Sacco).Error; err != nil {
		t.Fatalf("could not create sacco: %v", err)
	}

	f.Section = models.PassbookSection{
		SaccoID:      f.Sacco.ID,
		Name:         "Compulsory Savings",
		SectionType:  models.SectionTypeSavings,
		IsCompulsory: true,
		Withdrawable: true,
		IsActive:     true,
	}
	if err := db.Create(&f.Section).Error; err != nil {
		t.Fatalf("could not create section: %v", err)
	}

	for i := 0; i < memberCount; i++ {
		m := models.SaccoMember{
			SaccoID:      f.Sacco.ID,
			MemberNumber: fmt.Sprintf("M%03d", i+1),
			Name:         fmt.Sprintf("Member %d", i+1),
			Status:       models.MemberStatusActive,
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("could not create member: %v", err)
		}
		f.MemberIDs = append(f.MemberIDs, m.ID)
	}

	return f
}
