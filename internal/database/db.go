package database

import (
	"log"

	"sacco-backend/internal/config"
	"sacco-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}

	// Sections created before the withdrawal engine existed have no
	// withdrawable flag; backfill savings-type sections before AutoMigrate
	// adds the NOT NULL default.
	if DB.Migrator().HasTable(&models.PassbookSection{}) {
		if !DB.Migrator().HasColumn(&models.PassbookSection{}, "withdrawable") {
			log.Println("adding passbook_sections.withdrawable column...")
			if err := DB.Exec("ALTER TABLE passbook_sections ADD COLUMN withdrawable BOOLEAN DEFAULT FALSE").Error; err != nil {
				log.Printf("could not add withdrawable column (may already exist): %v", err)
			} else {
				DB.Exec("UPDATE passbook_sections SET withdrawable = TRUE WHERE section_type IN ('savings', 'emergency')")
				log.Println("withdrawable backfilled for savings and emergency sections")
			}
		}
	}

	err = DB.AutoMigrate(
		&models.SaccoOrganization{},
		&models.User{},
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
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	log.Println("database connected, migration complete")
}
