package tenant

import (
	"context"
	"errors"
	"time"

	"rental-backend/internal/models"
	"rental-backend/internal/scope"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("kiracı bulunamadı")

func Get(ctx context.Context, db *gorm.DB, ownerID, id uint) (*models.Tenant, error) {
	var t models.Tenant
	err := db.WithContext(ctx).Scopes(scope.VisibleTenants(ownerID)).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &t, err
}

// currentLeaseSQL bugün geçerli aktif sözleşmesi olan kiracılar
const currentLeaseSQL = "SELECT tenant_id FROM leases WHERE status = ? AND start_date <= ? AND end_date >= ?"

func WithActiveLease(today time.Time, has bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if has {
			return db.Where("tenants.id IN ("+currentLeaseSQL+")", models.LeaseStatusActive, today, today)
		}
		return db.Where("tenants.id NOT IN ("+currentLeaseSQL+")", models.LeaseStatusActive, today, today)
	}
}

type Detail struct {
	Tenant       models.Tenant
	CurrentLease *models.Lease
	Leases       []models.Lease
	Payments     []models.Payment
	TotalPaid    float64
	TotalPending float64
	LatePayments int
}

// LoadDetail kiracı kartı. Sözleşme ve ödemeler yalnızca isteyen sahibin mülkleriyle sınırlıdır.
func LoadDetail(ctx context.Context, db *gorm.DB, ownerID, id uint, today time.Time) (*Detail, error) {
	t, err := Get(ctx, db, ownerID, id)
	if err != nil {
		return nil, err
	}
	today = models.DateOnly(today)
	d := &Detail{Tenant: *t}
	q := db.WithContext(ctx)

	if err := q.Preload("Property").
		Scopes(scope.ThroughProperty("leases", ownerID)).
		Where("leases.tenant_id = ?", t.ID).
		Order("leases.start_date desc").
		Find(&d.Leases).Error; err != nil {
		return nil, err
	}
	for i := range d.Leases {
		if d.Leases[i].IsActiveOn(today) {
			d.CurrentLease = &d.Leases[i]
			break
		}
	}

	if err := q.Preload("Property").
		Scopes(scope.ThroughProperty("payments", ownerID)).
		Where("payments.tenant_id = ?", t.ID).
		Order("payments.due_date desc").
		Find(&d.Payments).Error; err != nil {
		return nil, err
	}
	for _, p := range d.Payments {
		switch p.Status {
		case models.PaymentStatusPaid:
			d.TotalPaid += p.Amount
			if p.IsLate() {
				d.LatePayments++
			}
		case models.PaymentStatusPending:
			d.TotalPending += p.Amount
		}
	}
	return d, nil
}

// CurrentLeases kiracı id -> sahibin mülklerinde bugün geçerli aktif sözleşme
func CurrentLeases(ctx context.Context, db *gorm.DB, ownerID uint, tenantIDs []uint, today time.Time) (map[uint]models.Lease, error) {
	out := make(map[uint]models.Lease, len(tenantIDs))
	if len(tenantIDs) == 0 {
		return out, nil
	}
	var leases []models.Lease
	if err := db.WithContext(ctx).Preload("Property").
		Scopes(scope.ThroughProperty("leases", ownerID)).
		Where("tenant_id IN ? AND status = ? AND start_date <= ? AND end_date >= ?", tenantIDs, models.LeaseStatusActive, today, today).
		Order("start_date").
		Find(&leases).Error; err != nil {
		return nil, err
	}
	for _, l := range leases {
		out[l.TenantID] = l
	}
	return out, nil
}
