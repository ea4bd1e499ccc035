package dashboard

import (
	"context"
	"sort"
	"time"

	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/filter"
	"rental-backend/internal/httperr"
	"rental-backend/internal/models"
	"rental-backend/internal/scope"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CashChartPoint struct {
	Label    string  `json:"label"` // tarih / hafta başlangıcı / ay başlangıcı
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

type CashChartGrandTotals struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

type CashChartResponse struct {
	Period      string               `json:"period"` // daily | weekly | monthly
	From        string               `json:"from"`
	To          string               `json:"to"`
	Points      []CashChartPoint     `json:"points"`
	GrandTotals CashChartGrandTotals `json:"grand_totals"`
}

// bucketStart günü periyodun başlangıcına indirir; hafta pazartesi başlar
func bucketStart(period string, d time.Time) time.Time {
	d = models.DateOnly(d)
	switch period {
	case "weekly":
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case "monthly":
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// chartRange periyoda göre [start, end] aralığı; end dahil
func chartRange(period string, count int, today time.Time) (time.Time, time.Time) {
	end := models.DateOnly(today)
	switch period {
	case "weekly":
		start := bucketStart(period, end).AddDate(0, 0, -7*(count-1))
		return start, end
	case "monthly":
		first := bucketStart(period, end)
		start := first.AddDate(0, -(count - 1), 0)
		return start, first.AddDate(0, 1, -1)
	}
	return end.AddDate(0, 0, -(count - 1)), end
}

func nextBucket(period string, d time.Time) time.Time {
	switch period {
	case "weekly":
		return d.AddDate(0, 0, 7)
	case "monthly":
		return d.AddDate(0, 1, 0)
	}
	return d.AddDate(0, 0, 1)
}

type dated struct {
	Day    time.Time
	Amount float64
}

func paidIncome(ctx context.Context, db *gorm.DB, ownerID uint, start, end time.Time) ([]dated, error) {
	var rows []models.Payment
	err := db.WithContext(ctx).Select("payments.payment_date", "payments.amount").
		Scopes(scope.ThroughProperty("payments", ownerID)).
		Where("payments.status = ? AND payments.payment_date >= ? AND payments.payment_date <= ?", models.PaymentStatusPaid, start, end).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]dated, 0, len(rows))
	for _, r := range rows {
		if r.PaymentDate != nil {
			out = append(out, dated{Day: *r.PaymentDate, Amount: r.Amount})
		}
	}
	return out, nil
}

func paidExpenses(ctx context.Context, db *gorm.DB, ownerID uint, start, end time.Time) ([]dated, error) {
	var rows []models.Expense
	err := db.WithContext(ctx).Select("expenses.date", "expenses.amount").
		Scopes(scope.ThroughProperty("expenses", ownerID)).
		Where("expenses.status = ? AND expenses.date >= ? AND expenses.date <= ?", models.ExpenseStatusPaid, start, end).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]dated, 0, len(rows))
	for _, r := range rows {
		out = append(out, dated{Day: r.Date, Amount: r.Amount})
	}
	return out, nil
}

// CashChart ödenmiş gelir ve giderleri periyot kovalarına dağıtır.
// Aralıktaki her kova boş olsa da döner.
func CashChart(ctx context.Context, db *gorm.DB, ownerID uint, period string, count int, today time.Time) (*CashChartResponse, error) {
	start, end := chartRange(period, count, today)

	income, err := paidIncome(ctx, db, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	spent, err := paidExpenses(ctx, db, ownerID, start, end)
	if err != nil {
		return nil, err
	}

	// bucket bazlı toplama
	buckets := make(map[time.Time]*CashChartPoint)
	for b := bucketStart(period, start); !b.After(end); b = nextBucket(period, b) {
		buckets[b] = &CashChartPoint{Label: b.Format("2006-01-02")}
	}
	for _, r := range income {
		if p, ok := buckets[bucketStart(period, r.Day)]; ok {
			p.Income += r.Amount
		}
	}
	for _, r := range spent {
		if p, ok := buckets[bucketStart(period, r.Day)]; ok {
			p.Expenses += r.Amount
		}
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	resp := &CashChartResponse{
		Period: period,
		From:   models.FormatDate(start),
		To:     models.FormatDate(end),
		Points: make([]CashChartPoint, 0, len(keys)),
	}
	for _, k := range keys {
		p := buckets[k]
		p.Net = p.Income - p.Expenses
		resp.Points = append(resp.Points, *p)
		resp.GrandTotals.Income += p.Income
		resp.GrandTotals.Expenses += p.Expenses
	}
	resp.GrandTotals.Net = resp.GrandTotals.Income - resp.GrandTotals.Expenses
	return resp, nil
}

// GET /api/dashboard/cash-chart?period=daily&count=7
func CashChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		period := c.Query("period", "daily") // daily | weekly | monthly
		q := filter.New(c)
		countPtr := q.Int("count")
		if err := q.Err(); err != nil {
			return err
		}

		count := 7
		switch period {
		case "weekly":
			count = 8
		case "monthly":
			count = 12
		case "daily":
		default:
			return validation.Field("period", "period daily, weekly veya monthly olmalı")
		}
		if countPtr != nil {
			if *countPtr <= 0 || *countPtr > 366 {
				return validation.Field("count", "count 1-366 arasında olmalı")
			}
			count = *countPtr
		}

		resp, err := CashChart(c.UserContext(), database.DB, userID, period, count, models.Today())
		if err != nil {
			return httperr.Internal("Veri toplanırken hata oluştu", err)
		}
		return c.JSON(resp)
	}
}
