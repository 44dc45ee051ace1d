package loan

import (
	"errors"
	"time"

	"sacco-backend/internal/auth"
	"sacco-backend/internal/database"
	"sacco-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ApplyRequest struct {
	MemberID       uint            `json:"member_id"`
	Principal      decimal.Decimal `json:"principal"`
	InterestRate   decimal.Decimal `json:"interest_rate"` // annual, percent
	DurationMonths uint            `json:"duration_months"`
	Purpose        string          `json:"purpose"`
	GuarantorIDs   []uint          `json:"guarantor_ids"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"` // defaults to today
	PaymentMethod string          `json:"payment_method"`
	Reference     string          `json:"reference"`
	Notes         string          `json:"notes"`
}

func mapLoanError(err error, fallback string) error {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrAlreadyExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, fallback)
}

func ApplyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		var body ApplyRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.MemberID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "member_id is required")
		}

		var l *models.Loan
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			l, err = Apply(tx, saccoID, body.MemberID, body.Principal, body.InterestRate, body.DurationMonths, body.Purpose, body.GuarantorIDs)
			return err
		})
		if err != nil {
			return mapLoanError(err, "could not create loan application")
		}

		return c.Status(fiber.StatusCreated).JSON(l)
	}
}

func ApproveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		loanID, err := c.ParamsInt("id")
		if err != nil || loanID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid loan id")
		}

		var l *models.Loan
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			l, err = Approve(tx, uint(loanID), auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapLoanError(err, "could not approve loan")
		}
		return c.JSON(l)
	}
}

func RejectHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		loanID, err := c.ParamsInt("id")
		if err != nil || loanID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid loan id")
		}

		var body RejectRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "reason is required")
		}

		var l *models.Loan
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			l, err = Reject(tx, uint(loanID), body.Reason, auth.CurrentUserID(c))
			return err
		})
		if err != nil {
			return mapLoanError(err, "could not reject loan")
		}
		return c.JSON(l)
	}
}

func DisburseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		loanID, err := c.ParamsInt("id")
		if err != nil || loanID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid loan id")
		}

		loanSectionID := sectionOfType(saccoID, models.SectionTypeLoan)

		var l *models.Loan
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			l, err = Disburse(tx, uint(loanID), time.Now(), auth.CurrentUserID(c), loanSectionID)
			return err
		})
		if err != nil {
			return mapLoanError(err, "could not disburse loan")
		}
		return c.JSON(l)
	}
}

func sectionOfType(saccoID uint, sectionType models.SectionType) *uint {
	var section models.PassbookSection
	err := database.DB.Where("sacco_id = ? AND section_type = ? AND is_active = ?",
		saccoID, sectionType, true).First(&section).Error
	if err != nil {
		return nil
	}
	return &section.ID
}

func RecordPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		loanID, err := c.ParamsInt("id")
		if err != nil || loanID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid loan id")
		}

		var body PaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		date := time.Now()
		if body.Date != "" {
			if date, err = time.Parse("2006-01-02", body.Date); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
		}

		var payment *models.LoanPayment
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			payment, err = RecordPayment(tx, uint(loanID), body.Amount, date, PaymentOptions{
				PaymentMethod:     body.PaymentMethod,
				ReferenceNumber:   body.Reference,
				Notes:             body.Notes,
				RecordedBy:        auth.CurrentUserID(c),
				LoanSectionID:     sectionOfType(saccoID, models.SectionTypeLoan),
				InterestSectionID: sectionOfType(saccoID, models.SectionTypeInterest),
			})
			return err
		})
		if err != nil {
			return mapLoanError(err, "could not record payment")
		}

		return c.Status(fiber.StatusCreated).JSON(payment)
	}
}

func ListLoansHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		q := database.DB.Preload("Member").Where("sacco_id = ?", saccoID)
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if memberID := c.QueryInt("member_id"); memberID > 0 {
			q = q.Where("member_id = ?", memberID)
		}
		if loanType := c.Query("type"); loanType != "" {
			q = q.Where("loan_type = ?", loanType)
		}

		var loans []models.Loan
		if err := q.Order("created_at DESC").Find(&loans).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load loans")
		}
		return c.JSON(loans)
	}
}

func LoanDetailHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		saccoID, err := auth.ResolveSaccoID(c)
		if err != nil {
			return err
		}

		loanID, err := c.ParamsInt("id")
		if err != nil || loanID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid loan id")
		}

		var l models.Loan
		if err := database.DB.Preload("Member").
			First(&l, "id = ? AND sacco_id = ?", loanID, saccoID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "loan not found")
		}

		var payments []models.LoanPayment
		if err := database.DB.Where("loan_id = ?", l.ID).
			Order("payment_date ASC, id ASC").Find(&payments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load payments")
		}

		return c.JSON(fiber.Map{
			"loan":          l,
			"payments":      payments,
			"total_balance": l.TotalBalance(),
			"is_overdue":    l.IsOverdue(time.Now()),
		})
	}
}
