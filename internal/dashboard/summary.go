// Package dashboard serves the owner's overview figures and charts.
package dashboard

import (
	"context"
	"time"

	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/httperr"
	"rental-backend/internal/lease"
	"rental-backend/internal/models"
	"rental-backend/internal/notification"
	"rental-backend/internal/payment"
	"rental-backend/internal/scope"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UpcomingPayment struct {
	ID           uint    `json:"id"`
	PropertyName string  `json:"property_name"`
	TenantName   string  `json:"tenant_name"`
	Amount       float64 `json:"amount"`
	DueDate      string  `json:"due_date"`
}

type ExpiringLease struct {
	ID            uint   `json:"id"`
	PropertyName  string `json:"property_name"`
	TenantName    string `json:"tenant_name"`
	EndDate       string `json:"end_date"`
	DaysRemaining int    `json:"days_remaining"`
}

type Summary struct {
	PropertyCount       int64             `json:"property_count"`
	TenantCount         int64             `json:"tenant_count"`
	ActiveLeaseCount    int64             `json:"active_lease_count"`
	MonthIncome         float64           `json:"month_income"`
	MonthExpenses       float64           `json:"month_expenses"`
	MonthNet            float64           `json:"month_net"`
	YearIncome          float64           `json:"year_income"`
	YearExpenses        float64           `json:"year_expenses"`
	YearNet             float64           `json:"year_net"`
	OverdueCount        int64             `json:"overdue_count"`
	OverdueAmount       float64           `json:"overdue_amount"`
	UpcomingPayments    []UpcomingPayment `json:"upcoming_payments"`
	ExpiringLeases      []ExpiringLease   `json:"expiring_leases"`
	UnreadNotifications int64             `json:"unread_notifications"`
}

func sumPaid(ctx context.Context, db *gorm.DB, ownerID uint, from, to time.Time) (float64, float64, error) {
	var income, spent float64
	if err := db.WithContext(ctx).Model(&models.Payment{}).
		Scopes(scope.ThroughProperty("payments", ownerID)).
		Where("status = ? AND payment_date >= ? AND payment_date < ?", models.PaymentStatusPaid, from, to).
		Select("COALESCE(SUM(amount), 0)").Scan(&income).Error; err != nil {
		return 0, 0, err
	}
	if err := db.WithContext(ctx).Model(&models.Expense{}).
		Scopes(scope.ThroughProperty("expenses", ownerID)).
		Where("status = ? AND date >= ? AND date < ?", models.ExpenseStatusPaid, from, to).
		Select("COALESCE(SUM(amount), 0)").Scan(&spent).Error; err != nil {
		return 0, 0, err
	}
	return income, spent, nil
}

// Build sahibin özet ekranı
func Build(ctx context.Context, db *gorm.DB, ownerID uint, today time.Time) (*Summary, error) {
	today = models.DateOnly(today)
	s := &Summary{UpcomingPayments: []UpcomingPayment{}, ExpiringLeases: []ExpiringLease{}}

	if err := db.WithContext(ctx).Model(&models.Property{}).Scopes(scope.OwnedProperties(ownerID)).
		Count(&s.PropertyCount).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.Tenant{}).Scopes(scope.VisibleTenants(ownerID)).
		Count(&s.TenantCount).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.Lease{}).Scopes(scope.ThroughProperty("leases", ownerID)).
		Where("status = ?", models.LeaseStatusActive).Count(&s.ActiveLeaseCount).Error; err != nil {
		return nil, err
	}

	var err error
	monthStart, monthEnd := models.MonthBounds(today)
	if s.MonthIncome, s.MonthExpenses, err = sumPaid(ctx, db, ownerID, monthStart, monthEnd); err != nil {
		return nil, err
	}
	yearStart, yearEnd := models.YearBounds(today)
	if s.YearIncome, s.YearExpenses, err = sumPaid(ctx, db, ownerID, yearStart, yearEnd); err != nil {
		return nil, err
	}
	s.MonthNet = s.MonthIncome - s.MonthExpenses
	s.YearNet = s.YearIncome - s.YearExpenses

	stats, err := payment.ComputeStats(ctx, db, ownerID, today)
	if err != nil {
		return nil, err
	}
	s.OverdueCount, s.OverdueAmount = stats.OverdueCount, stats.OverdueAmount

	upcoming, err := payment.Upcoming(ctx, db, ownerID, today, 5)
	if err != nil {
		return nil, err
	}
	for _, p := range upcoming {
		s.UpcomingPayments = append(s.UpcomingPayments, UpcomingPayment{
			ID:           p.ID,
			PropertyName: p.Property.Name,
			TenantName:   p.Tenant.FullName(),
			Amount:       p.Amount,
			DueDate:      models.FormatDate(p.DueDate),
		})
	}

	expiring, err := lease.Expiring(ctx, db, ownerID, today, lease.ExpiryWindow)
	if err != nil {
		return nil, err
	}
	for _, l := range expiring {
		s.ExpiringLeases = append(s.ExpiringLeases, ExpiringLease{
			ID:            l.ID,
			PropertyName:  l.Property.Name,
			TenantName:    l.Tenant.FullName(),
			EndDate:       models.FormatDate(l.EndDate),
			DaysRemaining: l.DaysUntilExpiration(today),
		})
	}

	if s.UnreadNotifications, err = notification.UnreadCount(ctx, db, ownerID); err != nil {
		return nil, err
	}
	return s, nil
}

// GET /api/dashboard
func SummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		s, err := Build(c.UserContext(), database.DB, userID, models.Today())
		if err != nil {
			return httperr.Internal("Özet hesaplanamadı", err)
		}
		return c.JSON(s)
	}
}

type SeriesResponse struct {
	Months []MonthPoint `json:"months"`
}

type MonthPoint struct {
	Month    string  `json:"month"` // "2024-03"
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// Series bu ay dahil son 12 ayın ödenmiş gelir/gideri
func Series(ctx context.Context, db *gorm.DB, ownerID uint, today time.Time) (*SeriesResponse, error) {
	chart, err := CashChart(ctx, db, ownerID, "monthly", 12, today)
	if err != nil {
		return nil, err
	}
	out := &SeriesResponse{Months: make([]MonthPoint, 0, len(chart.Points))}
	for _, p := range chart.Points {
		out.Months = append(out.Months, MonthPoint{
			Month:    p.Label[:7],
			Income:   p.Income,
			Expenses: p.Expenses,
			Net:      p.Net,
		})
	}
	return out, nil
}

// GET /api/dashboard/series
func SeriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		s, err := Series(c.UserContext(), database.DB, userID, models.Today())
		if err != nil {
			return httperr.Internal("Seri hesaplanamadı", err)
		}
		return c.JSON(s)
	}
}
