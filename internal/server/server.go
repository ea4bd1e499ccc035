// Package server Fiber uygulamasını kurar ve tüm route'ları kaydeder.
package server

import (
	"strings"
	"time"

	"rental-backend/internal/audit"
	"rental-backend/internal/auth"
	"rental-backend/internal/dashboard"
	"rental-backend/internal/expense"
	"rental-backend/internal/httperr"
	"rental-backend/internal/lease"
	"rental-backend/internal/logging"
	"rental-backend/internal/middleware"
	"rental-backend/internal/notification"
	"rental-backend/internal/payment"
	"rental-backend/internal/property"
	"rental-backend/internal/report"
	"rental-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Deps struct {
	JWTSecret      string
	CORSOrigins    string
	Logger         *logging.Logger
	Redis          *redis.Client // nil ise Idempotency-Key kontrolü kapalı
	IdempotencyTTL time.Duration
}

func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: httperr.Handler(d.Logger),
	})

	app.Use(recover.New())
	app.Use(logging.RequestLogger(d.Logger, auth.CtxUserIDKey))

	// CORS origins'i virgülle ayrılmış string'den temizle
	origins := strings.Split(d.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderIdempotencyKey,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(d.JWTSecret))
	api.Post("/auth/login", auth.LoginHandler(d.JWTSecret))

	// Protected
	protected := api.Group("", auth.JWTMiddleware(d.JWTSecret))
	Register(protected, middleware.Idempotency(d.Redis, d.IdempotencyTTL, d.Logger))

	return app
}

// Register korumalı route'ları kaydeder. /export, /recurring gibi sabit yollar /:id'den önce gelir.
// idem aksiyon uçlarına takılır.
func Register(r fiber.Router, idem fiber.Handler) {
	r.Get("/auth/me", auth.MeHandler())

	// Dashboard
	r.Get("/dashboard", dashboard.SummaryHandler())
	r.Get("/dashboard/series", dashboard.SeriesHandler())
	r.Get("/dashboard/cash-chart", dashboard.CashChartHandler())

	// Mülkler
	r.Get("/properties", property.ListPropertiesHandler())
	r.Post("/properties", property.CreatePropertyHandler())
	r.Get("/properties/:id", property.GetPropertyHandler())
	r.Put("/properties/:id", property.UpdatePropertyHandler())
	r.Delete("/properties/:id", property.DeletePropertyHandler())

	// Kiracılar
	r.Get("/tenants", tenant.ListTenantsHandler())
	r.Get("/tenants/export", tenant.ExportTenantsHandler())
	r.Post("/tenants", tenant.CreateTenantHandler())
	r.Get("/tenants/:id", tenant.GetTenantHandler())
	r.Put("/tenants/:id", tenant.UpdateTenantHandler())
	r.Delete("/tenants/:id", tenant.DeleteTenantHandler())

	// Sözleşmeler
	r.Get("/leases", lease.ListLeasesHandler())
	r.Get("/leases/export", lease.ExportLeasesHandler())
	r.Post("/leases", lease.CreateLeaseHandler())
	r.Get("/leases/:id", lease.GetLeaseHandler())
	r.Put("/leases/:id", lease.UpdateLeaseHandler())
	r.Delete("/leases/:id", lease.DeleteLeaseHandler())
	r.Post("/leases/:id/renew", idem, lease.RenewLeaseHandler())
	r.Post("/leases/:id/terminate", idem, lease.TerminateLeaseHandler())

	// Ödemeler
	r.Get("/payment-categories", payment.ListCategoriesHandler())
	r.Post("/payment-categories", payment.CreateCategoryHandler())
	r.Get("/payments", payment.ListPaymentsHandler())
	r.Get("/payments/export", payment.ExportPaymentsHandler())
	r.Post("/payments/recurring", idem, payment.CreateRecurringHandler())
	r.Post("/payments", payment.CreatePaymentHandler())
	r.Get("/payments/:id", payment.GetPaymentHandler())
	r.Put("/payments/:id", payment.UpdatePaymentHandler())
	r.Delete("/payments/:id", payment.DeletePaymentHandler())
	r.Post("/payments/:id/mark-paid", idem, payment.MarkPaidHandler())
	r.Post("/payments/:id/late-fees", idem, payment.AddLateFeeHandler())
	r.Post("/late-fees/:id/waive", idem, payment.WaiveLateFeeHandler())

	// Giderler
	r.Get("/expense-categories", expense.ListExpenseCategoriesHandler())
	r.Post("/expense-categories", expense.CreateExpenseCategoryHandler())
	r.Put("/expense-categories/:id", expense.UpdateExpenseCategoryHandler())
	r.Delete("/expense-categories/:id", expense.DeleteExpenseCategoryHandler())
	r.Get("/vendors", expense.ListVendorsHandler())
	r.Post("/vendors", expense.CreateVendorHandler())
	r.Get("/vendors/:id", expense.GetVendorHandler())
	r.Put("/vendors/:id", expense.UpdateVendorHandler())
	r.Delete("/vendors/:id", expense.DeleteVendorHandler())
	r.Get("/expenses", expense.ListExpensesHandler())
	r.Get("/expenses/export", expense.ExportExpensesHandler())
	r.Get("/expenses/summary/monthly", expense.MonthlyExpenseSummaryHandler())
	r.Post("/expenses", expense.CreateExpenseHandler())
	r.Get("/expenses/:id", expense.GetExpenseHandler())
	r.Put("/expenses/:id", expense.UpdateExpenseHandler())
	r.Delete("/expenses/:id", expense.DeleteExpenseHandler())

	// Raporlar
	r.Get("/reports/income", report.IncomeReportHandler())
	r.Get("/reports/income/export", report.ExportIncomeReportHandler())
	r.Get("/reports/expenses", report.ExpenseReportHandler())
	r.Get("/reports/expenses/export", report.ExportExpenseReportHandler())
	r.Get("/reports/profit-loss", report.ProfitLossReportHandler())
	r.Get("/reports/profit-loss/export", report.ExportProfitLossReportHandler())
	r.Get("/reports/tenants", report.TenantReportHandler())
	r.Get("/reports/tenants/export", report.ExportTenantReportHandler())

	// Bildirimler
	r.Get("/notifications", notification.ListNotificationsHandler())
	r.Get("/notifications/unread-count", notification.UnreadCountHandler())
	r.Post("/notifications/read-all", notification.MarkAllReadHandler())
	r.Post("/notifications/:id/read", notification.MarkReadHandler())
	r.Delete("/notifications/:id", notification.DeleteNotificationHandler())

	// Audit
	r.Get("/audit-logs", audit.ListAuditLogsHandler())
}
