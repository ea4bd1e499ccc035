package payment

import (
	"context"
	"time"

	"rental-backend/internal/models"
	"rental-backend/internal/scope"

	"gorm.io/gorm"
)

type Stats struct {
	TotalCollected  float64 `json:"total_collected"`
	PendingAmount   float64 `json:"pending_amount"`
	OverdueCount    int64   `json:"overdue_count"`
	OverdueAmount   float64 `json:"overdue_amount"`
	ThisMonthIncome float64 `json:"this_month_income"`
}

func ComputeStats(ctx context.Context, db *gorm.DB, ownerID uint, today time.Time) (*Stats, error) {
	today = models.DateOnly(today)
	monthStart, monthEnd := models.MonthBounds(today)
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&models.Payment{}).Scopes(scope.ThroughProperty("payments", ownerID))
	}
	sum := "COALESCE(SUM(amount), 0)"

	var s Stats
	if err := base().Where("status = ?", models.PaymentStatusPaid).
		Select(sum).Scan(&s.TotalCollected).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.PaymentStatusPending).
		Select(sum).Scan(&s.PendingAmount).Error; err != nil {
		return nil, err
	}

	var overdue struct {
		Count  int64
		Amount float64
	}
	if err := base().Where("status = ? AND due_date < ?", models.PaymentStatusPending, today).
		Select("COUNT(*) as count, " + sum + " as amount").Scan(&overdue).Error; err != nil {
		return nil, err
	}
	s.OverdueCount, s.OverdueAmount = overdue.Count, overdue.Amount

	if err := base().Where("status = ? AND payment_date >= ? AND payment_date < ?", models.PaymentStatusPaid, monthStart, monthEnd).
		Select(sum).Scan(&s.ThisMonthIncome).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// BecameOverdue vadesi dün dolan, hâlâ bekleyen ödemeler; yani bugün gecikmeye düşenler.
// Tüm sahipler için çalışır, Property preload edilir.
func BecameOverdue(ctx context.Context, db *gorm.DB, today time.Time) ([]models.Payment, error) {
	today = models.DateOnly(today)
	var out []models.Payment
	err := db.WithContext(ctx).Preload("Property").Preload("Tenant").
		Where("status = ? AND due_date >= ? AND due_date < ?", models.PaymentStatusPending, today.AddDate(0, 0, -1), today).
		Order("id").
		Find(&out).Error
	return out, err
}

// Upcoming sahibin en yakın vadeli bekleyen ödemeleri
func Upcoming(ctx context.Context, db *gorm.DB, ownerID uint, today time.Time, limit int) ([]models.Payment, error) {
	var out []models.Payment
	err := db.WithContext(ctx).Preload("Property").Preload("Tenant").
		Scopes(scope.ThroughProperty("payments", ownerID)).
		Where("payments.status = ? AND payments.due_date >= ?", models.PaymentStatusPending, models.DateOnly(today)).
		Order("payments.due_date").Order("payments.id").
		Limit(limit).
		Find(&out).Error
	return out, err
}
