package property

import (
	"context"
	"errors"
	"time"

	"rental-backend/internal/models"
	"rental-backend/internal/scope"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("mülk bulunamadı")

type Stats struct {
	Total         int64   `json:"total"`
	Rented        int64   `json:"rented"`
	Available     int64   `json:"available"`
	MonthlyIncome float64 `json:"monthly_income"` // kiradaki mülklerin aylık kirası
}

func ComputeStats(ctx context.Context, db *gorm.DB, ownerID uint) (*Stats, error) {
	var rows []struct {
		Status models.PropertyStatus
		Count  int64
		Rent   float64
	}
	if err := db.WithContext(ctx).Model(&models.Property{}).
		Scopes(scope.OwnedProperties(ownerID)).
		Select("status, COUNT(*) as count, COALESCE(SUM(monthly_rent), 0) as rent").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	var s Stats
	for _, r := range rows {
		s.Total += r.Count
		switch r.Status {
		case models.PropertyStatusRented:
			s.Rented = r.Count
			s.MonthlyIncome = r.Rent
		case models.PropertyStatusAvailable:
			s.Available = r.Count
		}
	}
	return &s, nil
}

func Get(ctx context.Context, db *gorm.DB, ownerID, id uint) (*models.Property, error) {
	var p models.Property
	err := db.WithContext(ctx).Scopes(scope.OwnedProperties(ownerID)).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &p, err
}

type Detail struct {
	Property       models.Property
	CurrentLease   *models.Lease
	YearlyIncome   float64
	YearlyExpenses float64
	RecentPayments []models.Payment
	RecentExpenses []models.Expense
}

// LoadDetail mülk kartı: güncel sözleşme, bu yılın geliri/gideri ve son hareketler
func LoadDetail(ctx context.Context, db *gorm.DB, ownerID, id uint, today time.Time) (*Detail, error) {
	p, err := Get(ctx, db, ownerID, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Property: *p}
	today = models.DateOnly(today)
	yearStart, yearEnd := models.YearBounds(today)
	q := db.WithContext(ctx)

	var current models.Lease
	if err := q.Preload("Tenant").
		Where("property_id = ? AND status = ? AND start_date <= ? AND end_date >= ?", p.ID, models.LeaseStatusActive, today, today).
		Order("start_date desc").Limit(1).Find(&current).Error; err != nil {
		return nil, err
	}
	if current.ID != 0 {
		d.CurrentLease = &current
	}

	if err := q.Model(&models.Payment{}).
		Where("property_id = ? AND status = ? AND payment_date >= ? AND payment_date < ?", p.ID, models.PaymentStatusPaid, yearStart, yearEnd).
		Select("COALESCE(SUM(amount), 0)").Scan(&d.YearlyIncome).Error; err != nil {
		return nil, err
	}
	if err := q.Model(&models.Expense{}).
		Where("property_id = ? AND status = ? AND date >= ? AND date < ?", p.ID, models.ExpenseStatusPaid, yearStart, yearEnd).
		Select("COALESCE(SUM(amount), 0)").Scan(&d.YearlyExpenses).Error; err != nil {
		return nil, err
	}

	if err := q.Preload("Tenant").Where("property_id = ?", p.ID).
		Order("due_date desc").Limit(5).Find(&d.RecentPayments).Error; err != nil {
		return nil, err
	}
	if err := q.Where("property_id = ?", p.ID).
		Order("date desc").Limit(5).Find(&d.RecentExpenses).Error; err != nil {
		return nil, err
	}
	return d, nil
}
