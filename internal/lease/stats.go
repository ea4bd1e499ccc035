package lease

import (
	"context"
	"strconv"
	"time"

	"rental-backend/internal/models"
	"rental-backend/internal/scope"

	"gorm.io/gorm"
)

// ExpiryWindow yakında bitecek sayılan gün aralığı
const ExpiryWindow = 30

func ComputeStats(ctx context.Context, db *gorm.DB, ownerID uint, today time.Time) (*Stats, error) {
	today = models.DateOnly(today)
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&models.Lease{}).Scopes(scope.ThroughProperty("leases", ownerID))
	}

	var s Stats
	if err := base().Where("status = ?", models.LeaseStatusActive).Count(&s.Active).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("status = ? AND end_date >= ? AND end_date <= ?", models.LeaseStatusActive, today, today.AddDate(0, 0, ExpiryWindow)).
		Count(&s.ExpiringSoon).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("start_date >= ? AND start_date <= ?", today.AddDate(0, 0, -ExpiryWindow), today).
		Count(&s.RecentlyStarted).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("status = ?", models.LeaseStatusActive).
		Select("COALESCE(SUM(rent_amount), 0)").
		Scan(&s.TotalMonthlyRent).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Expiring bugünden itibaren days gün içinde biten aktif sözleşmeler.
// ownerID 0 ise tüm sahipler (zamanlanmış hatırlatmalar için).
func Expiring(ctx context.Context, db *gorm.DB, ownerID uint, today time.Time, days int) ([]models.Lease, error) {
	today = models.DateOnly(today)
	q := db.WithContext(ctx).Preload("Property").Preload("Tenant").
		Where("leases.status = ? AND leases.end_date >= ? AND leases.end_date <= ?",
			models.LeaseStatusActive, today, today.AddDate(0, 0, days))
	if ownerID != 0 {
		q = q.Scopes(scope.ThroughProperty("leases", ownerID))
	}
	var out []models.Lease
	err := q.Order("leases.end_date").Find(&out).Error
	return out, err
}

// Current kiracının bugün geçerli aktif sözleşmesi (yoksa nil)
func Current(ctx context.Context, db *gorm.DB, tenantID uint, today time.Time) (*models.Lease, error) {
	today = models.DateOnly(today)
	var l models.Lease
	err := db.WithContext(ctx).Preload("Property").
		Where("tenant_id = ? AND status = ? AND start_date <= ? AND end_date >= ?", tenantID, models.LeaseStatusActive, today, today).
		Order("start_date desc").
		Limit(1).Find(&l).Error
	if err != nil || l.ID == 0 {
		return nil, err
	}
	return &l, nil
}

func itoa(v int) string { return strconv.Itoa(v) }
