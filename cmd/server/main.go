package main

import (
	"log"
	"strings"

	"sacco-backend/internal/accounting"
	"sacco-backend/internal/admin"
	"sacco-backend/internal/audit"
	"sacco-backend/internal/auth"
	"sacco-backend/internal/cashround"
	"sacco-backend/internal/config"
	"sacco-backend/internal/dashboard"
	"sacco-backend/internal/database"
	"sacco-backend/internal/ledger"
	"sacco-backend/internal/loan"
	"sacco-backend/internal/meeting"
	"sacco-backend/internal/models"
	"sacco-backend/internal/withdrawal"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "unexpected server error",
			})
		},
	})

	app.Use(logger.New())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	adminRoutes.Post("/saccos", admin.CreateSaccoHandler())
	adminRoutes.Get("/saccos", admin.ListSaccosHandler())
	adminRoutes.Put("/saccos/:id", admin.UpdateSaccoHandler())
	adminRoutes.Post("/saccos/:id/officer", admin.CreateOfficerHandler())

	// Member registry
	protected.Post("/members", admin.CreateMemberHandler())
	protected.Get("/members", admin.ListMembersHandler())
	protected.Put("/members/:id", admin.UpdateMemberHandler())

	// Passbook sections
	protected.Post("/sections", admin.CreateSectionHandler())
	protected.Get("/sections", admin.ListSectionsHandler())
	protected.Put("/sections/:id", admin.UpdateSectionHandler())

	// Deduction rules
	protected.Post("/rules", admin.CreateRuleHandler())
	protected.Get("/rules", admin.ListRulesHandler())
	protected.Put("/rules/:id", admin.UpdateRuleHandler())

	// Passbook ledger
	protected.Post("/ledger/entries", ledger.AppendEntryHandler())
	protected.Post("/ledger/entries/:id/reverse", ledger.ReverseEntryHandler())
	protected.Get("/ledger/members/:id/balances", ledger.MemberBalancesHandler())
	protected.Get("/ledger/members/:id/statement", ledger.StatementHandler())
	protected.Post("/ledger/members/:id/recalculate", ledger.RecalculateHandler())

	// Cash round rotation
	protected.Post("/cash-rounds", cashround.CreateRoundHandler())
	protected.Get("/cash-rounds", cashround.ListRoundsHandler())
	protected.Post("/cash-rounds/:id/start", cashround.StartRoundHandler())
	protected.Post("/cash-rounds/:id/complete", cashround.CompleteRoundHandler())
	protected.Get("/cash-rounds/current-recipient", cashround.CurrentRecipientHandler())
	protected.Post("/cash-rounds/rotation/add-member", cashround.AddRotationMemberHandler())
	protected.Post("/cash-rounds/rotation/remove-member", cashround.RemoveRotationMemberHandler())

	// Weekly meeting settlement
	protected.Post("/meetings", meeting.CreateMeetingHandler())
	protected.Get("/meetings", meeting.ListMeetingsHandler())
	protected.Post("/meetings/:id/contributions", meeting.RecordContributionHandler())
	protected.Post("/meetings/:id/defaulters", meeting.RecordDefaulterHandler())
	protected.Post("/meetings/:id/process-deductions", meeting.ProcessDeductionsHandler())
	protected.Post("/meetings/:id/complete", meeting.CompleteHandler())
	protected.Post("/meetings/:id/reset", meeting.ResetHandler())
	protected.Get("/meetings/:id/summary", meeting.MeetingSummaryHandler())

	// Loans
	protected.Post("/loans", loan.ApplyHandler())
	protected.Get("/loans", loan.ListLoansHandler())
	protected.Get("/loans/:id", loan.LoanDetailHandler())
	protected.Post("/loans/:id/approve", loan.ApproveHandler())
	protected.Post("/loans/:id/reject", loan.RejectHandler())
	protected.Post("/loans/:id/disburse", loan.DisburseHandler())
	protected.Post("/loans/:id/payments", loan.RecordPaymentHandler())

	// Withdrawals
	protected.Get("/withdrawals/members/:id/available", withdrawal.AvailableHandler())
	protected.Post("/withdrawals", withdrawal.RequestHandler())
	protected.Get("/withdrawals", withdrawal.ListHandler())
	protected.Post("/withdrawals/:id/approve", withdrawal.ApproveHandler())
	protected.Post("/withdrawals/:id/reject", withdrawal.RejectHandler())
	protected.Post("/withdrawals/:id/disburse", withdrawal.DisburseHandler())

	// Cooperative account
	protected.Get("/account/summary", accounting.AccountSummaryHandler())
	protected.Get("/account/transactions", accounting.TransactionsHandler())

	// Dashboard
	protected.Get("/dashboard/overview", dashboard.OverviewHandler())
	protected.Get("/dashboard/collections-chart", dashboard.CollectionsChartHandler())

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	log.Println("server listening on port", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
