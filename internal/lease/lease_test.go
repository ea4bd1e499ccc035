package lease

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"rental-backend/internal/models"
	"rental-backend/internal/testutil"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func draft(t *testing.T, propID, tenantID uint, start, end string, status models.LeaseStatus) models.Lease {
	return models.Lease{
		PropertyID:  propID,
		TenantID:    tenantID,
		LeaseType:   models.LeaseTypeFixed,
		StartDate:   testutil.Date(t, start),
		EndDate:     testutil.Date(t, end),
		RentAmount:  1200,
		Status:      status,
		PaymentDay:  1,
		GracePeriod: 5,
	}
}

func propertyStatus(t *testing.T, db *gorm.DB, id uint) models.PropertyStatus {
	t.Helper()
	var p models.Property
	require.NoError(t, db.First(&p, id).Error)
	return p.Status
}

func fields(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := validation.AsError(err); ok {
		for _, f := range ve.Fields {
			out[f.Field] = f.Message
		}
	}
	return out
}

// L1 aktifken çakışan L2 reddedilir, L1 sonlandırılınca mülk boşa çıkar
func TestLeaseLifecycle_RentedOverlapTerminate(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID)
	tenant := testutil.CreateTenant(t, db, owner.ID)
	other := testutil.CreateTenant(t, db, owner.ID)

	res, err := Create(ctx, db, owner.ID, draft(t, prop.ID, tenant.ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive))
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusRented, propertyStatus(t, db, prop.ID))
	assert.Len(t, res.Warnings, 1, "mülk rented değilken uyarı dönmeli")
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, models.NotificationLease, res.Notifications[0].Type)

	_, err = Create(ctx, db, owner.ID, draft(t, prop.ID, other.ID, "2024-06-01", "2024-06-30", models.LeaseStatusActive))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeaseOverlap))
	assert.Contains(t, fields(err), "property_id")

	var count int64
	db.Model(&models.Lease{}).Count(&count)
	assert.Equal(t, int64(1), count, "reddedilen sözleşme kaydedilmemeli")

	_, err = Terminate(ctx, db, owner.ID, res.Lease.ID, testutil.Date(t, "2024-07-01"), "taşındı")
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusAvailable, propertyStatus(t, db, prop.ID))

	var l models.Lease
	require.NoError(t, db.First(&l, res.Lease.ID).Error)
	assert.Equal(t, models.LeaseStatusTerminated, l.Status)
	assert.Equal(t, "2024-07-01", models.FormatDate(l.EndDate))
	assert.Contains(t, l.Notes, "Sebep: taşındı")
}

func TestValidate_Rules(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID)
	tenant := testutil.CreateTenant(t, db, owner.ID)
	existing := testutil.CreateLease(t, db, prop.ID, tenant.ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive)

	t.Run("start after end", func(t *testing.T) {
		l := draft(t, prop.ID, tenant.ID, "2024-05-02", "2024-05-01", models.LeaseStatusPending)
		_, err := Validate(ctx, db, &l, nil)
		assert.Contains(t, fields(err), "end_date")
	})

	t.Run("same tenant on another property", func(t *testing.T) {
		prop2 := testutil.CreateProperty(t, db, owner.ID)
		l := draft(t, prop2.ID, tenant.ID, "2024-03-01", "2024-03-31", models.LeaseStatusActive)
		_, err := Validate(ctx, db, &l, nil)
		assert.True(t, errors.Is(err, ErrLeaseOverlap))
		assert.Contains(t, fields(err), "tenant_id")
		assert.Contains(t, fields(err)["tenant_id"], "2024-01-01 - 2024-12-31")
	})

	t.Run("same tenant on another owner's property", func(t *testing.T) {
		other := testutil.CreateUser(t, db)
		theirs := testutil.CreateProperty(t, db, other.ID)
		shared := testutil.CreateTenant(t, db, other.ID)
		testutil.CreateLease(t, db, theirs.ID, shared.ID, "2024-02-01", "2024-11-30", models.LeaseStatusActive)

		mine := testutil.CreateProperty(t, db, owner.ID)
		l := draft(t, mine.ID, shared.ID, "2024-03-01", "2024-03-31", models.LeaseStatusActive)
		_, err := Validate(ctx, db, &l, &mine)
		require.True(t, errors.Is(err, ErrLeaseOverlap))
		msg := fields(err)["tenant_id"]
		require.NotEmpty(t, msg)
		assert.NotContains(t, msg, "2024-02-01")
		assert.NotContains(t, msg, "2024-11-30")
	})

	t.Run("touching boundary overlaps", func(t *testing.T) {
		l := draft(t, prop.ID, testutil.CreateTenant(t, db, owner.ID).ID, "2024-12-31", "2025-06-30", models.LeaseStatusActive)
		_, err := Validate(ctx, db, &l, nil)
		assert.True(t, errors.Is(err, ErrLeaseOverlap))
	})

	t.Run("adjacent range is fine", func(t *testing.T) {
		l := draft(t, prop.ID, tenant.ID, "2025-01-01", "2025-12-31", models.LeaseStatusActive)
		_, err := Validate(ctx, db, &l, nil)
		assert.NoError(t, err)
	})

	t.Run("pending leases are not checked", func(t *testing.T) {
		l := draft(t, prop.ID, tenant.ID, "2024-06-01", "2024-06-30", models.LeaseStatusPending)
		_, err := Validate(ctx, db, &l, nil)
		assert.NoError(t, err)
	})

	t.Run("excluded lease does not conflict with itself", func(t *testing.T) {
		l := existing
		l.EndDate = testutil.Date(t, "2025-03-31")
		_, err := Validate(ctx, db, &l, nil, existing.ID)
		assert.NoError(t, err)
	})

	t.Run("warning when property is not rented", func(t *testing.T) {
		free := testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) { p.Status = models.PropertyStatusMaintenance })
		l := draft(t, free.ID, testutil.CreateTenant(t, db, owner.ID).ID, "2024-01-01", "2024-02-01", models.LeaseStatusActive)
		warnings, err := Validate(ctx, db, &l, &free)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "maintenance")
	})
}

// Aynı mülkte ve aynı kiracıda hiçbir aktif sözleşme çifti çakışmamalı
func TestCreate_NoActiveOverlapAcrossManyAttempts(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	props := []models.Property{testutil.CreateProperty(t, db, owner.ID), testutil.CreateProperty(t, db, owner.ID)}
	tenants := []models.Tenant{testutil.CreateTenant(t, db, owner.ID), testutil.CreateTenant(t, db, owner.ID)}

	ranges := [][2]string{
		{"2024-01-01", "2024-03-31"}, {"2024-03-15", "2024-05-31"}, {"2024-04-01", "2024-06-30"},
		{"2024-06-30", "2024-08-31"}, {"2024-09-01", "2024-12-31"}, {"2024-02-01", "2024-02-28"},
	}
	for i, r := range ranges {
		for _, p := range props {
			tn := tenants[i%2]
			_, _ = Create(ctx, db, owner.ID, draft(t, p.ID, tn.ID, r[0], r[1], models.LeaseStatusActive))
		}
	}

	var active []models.Lease
	require.NoError(t, db.Where("status = ?", models.LeaseStatusActive).Find(&active).Error)
	require.NotEmpty(t, active)
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			if a.PropertyID != b.PropertyID && a.TenantID != b.TenantID {
				continue
			}
			assert.False(t, a.Overlaps(b.StartDate, b.EndDate), "aktif sözleşmeler %d ve %d çakışıyor", a.ID, b.ID)
		}
	}
}

func TestUpdate_LeavingActiveReleasesProperty(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID)
	tenant := testutil.CreateTenant(t, db, owner.ID)

	res, err := Create(ctx, db, owner.ID, draft(t, prop.ID, tenant.ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive))
	require.NoError(t, err)

	next := res.Lease
	next.Status = models.LeaseStatusCompleted
	_, before, err := Update(ctx, db, owner.ID, next)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusActive, before.Status)
	assert.Equal(t, models.PropertyStatusAvailable, propertyStatus(t, db, prop.ID))

	next.Status = models.LeaseStatusActive
	_, _, err = Update(ctx, db, owner.ID, next)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusRented, propertyStatus(t, db, prop.ID))
}

func TestUpdate_OtherActiveLeaseKeepsPropertyRented(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) { p.Status = models.PropertyStatusRented })
	t1 := testutil.CreateTenant(t, db, owner.ID)
	t2 := testutil.CreateTenant(t, db, owner.ID)
	first := testutil.CreateLease(t, db, prop.ID, t1.ID, "2024-01-01", "2024-06-30", models.LeaseStatusActive)
	testutil.CreateLease(t, db, prop.ID, t2.ID, "2024-07-01", "2024-12-31", models.LeaseStatusActive)

	_, err := Delete(ctx, db, owner.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PropertyStatusRented, propertyStatus(t, db, prop.ID))
}

func TestRenew(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) { p.Status = models.PropertyStatusRented })
	tenant := testutil.CreateTenant(t, db, owner.ID)
	old := testutil.CreateLease(t, db, prop.ID, tenant.ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive,
		func(l *models.Lease) { l.PaymentDay = 15; l.LateFee = 50 })

	res, err := Renew(ctx, db, owner.ID, old.ID, RenewInput{})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "2025-01-01", models.FormatDate(res.Lease.StartDate))
	assert.Equal(t, "2025-12-31", models.FormatDate(res.Lease.EndDate))
	assert.Equal(t, 15, res.Lease.PaymentDay)
	assert.Equal(t, 50.0, res.Lease.LateFee)
	assert.Equal(t, models.LeaseStatusActive, res.Lease.Status)
	assert.Contains(t, res.Lease.Notes, fmt.Sprintf("%d numaralı", old.ID))

	var reloaded models.Lease
	require.NoError(t, db.First(&reloaded, old.ID).Error)
	assert.Equal(t, models.LeaseStatusRenewed, reloaded.Status)
	assert.Equal(t, models.PropertyStatusRented, propertyStatus(t, db, prop.ID))

	// yenilenen sözleşme kendi aralığıyla çakışsa da hariç tutulur
	start := testutil.Date(t, "2025-06-01")
	second, err := Renew(ctx, db, owner.ID, res.Lease.ID, RenewInput{StartDate: &start})
	require.NoError(t, err)
	assert.Equal(t, "2026-12-31", models.FormatDate(second.Lease.EndDate))

	// başka bir sözleşmeden yapılan yenileme aktif olanla çakışamaz
	later := testutil.CreateLease(t, db, prop.ID, tenant.ID, "2027-01-01", "2027-06-30", models.LeaseStatusCompleted)
	early := testutil.Date(t, "2026-03-01")
	_, err = Renew(ctx, db, owner.ID, later.ID, RenewInput{StartDate: &early})
	assert.True(t, errors.Is(err, ErrLeaseOverlap))
}

func TestRenewAndTerminate_InvalidStatus(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID)
	tenant := testutil.CreateTenant(t, db, owner.ID)
	done := testutil.CreateLease(t, db, prop.ID, tenant.ID, "2023-01-01", "2023-12-31", models.LeaseStatusTerminated)

	_, err := Renew(ctx, db, owner.ID, done.ID, RenewInput{})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = Terminate(ctx, db, owner.ID, done.ID, testutil.Date(t, "2023-06-01"), "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	pending := testutil.CreateLease(t, db, prop.ID, tenant.ID, "2024-01-01", "2024-12-31", models.LeaseStatusPending)
	_, err = Terminate(ctx, db, owner.ID, pending.ID, testutil.Date(t, "2023-12-01"), "")
	assert.Contains(t, fields(err), "termination_date")
}

func TestOwnership(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	intruder := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID)
	tenant := testutil.CreateTenant(t, db, owner.ID)
	l := testutil.CreateLease(t, db, prop.ID, tenant.ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive)

	_, err := Delete(ctx, db, intruder.ID, l.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = Create(ctx, db, intruder.ID, draft(t, prop.ID, tenant.ID, "2025-01-01", "2025-12-31", models.LeaseStatusPending))
	assert.True(t, errors.Is(err, ErrPropertyNotFound))
}

func TestStats(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID)
	prop2 := testutil.CreateProperty(t, db, owner.ID)
	tenant := testutil.CreateTenant(t, db, owner.ID)
	testutil.CreateLease(t, db, prop.ID, tenant.ID, "2024-03-01", "2024-06-20", models.LeaseStatusActive, func(l *models.Lease) { l.RentAmount = 900 })
	testutil.CreateLease(t, db, prop2.ID, tenant.ID, "2023-01-01", "2025-01-01", models.LeaseStatusActive, func(l *models.Lease) { l.RentAmount = 1100 })
	testutil.CreateLease(t, db, prop2.ID, tenant.ID, "2024-05-20", "2024-05-30", models.LeaseStatusPending)

	s, err := ComputeStats(context.Background(), db, owner.ID, testutil.Date(t, "2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Active)
	assert.Equal(t, int64(1), s.ExpiringSoon)
	assert.Equal(t, int64(1), s.RecentlyStarted)
	assert.InDelta(t, 2000, s.TotalMonthlyRent, 0.001)

	other, err := ComputeStats(context.Background(), db, testutil.CreateUser(t, db).ID, testutil.Date(t, "2024-06-01"))
	require.NoError(t, err)
	assert.Zero(t, other.Active)
}

func routes(r fiber.Router) {
	r.Get("/leases/export", ExportLeasesHandler())
	r.Get("/leases", ListLeasesHandler())
	r.Post("/leases", CreateLeaseHandler())
	r.Get("/leases/:id", GetLeaseHandler())
	r.Put("/leases/:id", UpdateLeaseHandler())
	r.Delete("/leases/:id", DeleteLeaseHandler())
	r.Post("/leases/:id/renew", RenewLeaseHandler())
	r.Post("/leases/:id/terminate", TerminateLeaseHandler())
}

func TestHandlers(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) { p.Name = "Elm House" })
	tenant := testutil.CreateTenant(t, db, owner.ID, func(tn *models.Tenant) { tn.FirstName = "Jane"; tn.LastName = "Doe" })
	app := testutil.NewApp(owner.ID, routes)

	body := map[string]any{
		"property_id": prop.ID, "tenant_id": tenant.ID, "lease_type": "fixed",
		"start_date": "2024-01-01", "end_date": "2024-12-31", "rent_amount": 1500, "status": "active",
	}
	resp := testutil.Do(t, app, "POST", "/api/leases", body)
	require.Equal(t, 201, resp.StatusCode)
	var created MutationResponse
	testutil.Decode(t, resp, &created)
	assert.Equal(t, "Elm House", created.Lease.PropertyName)
	assert.Equal(t, "Jane Doe", created.Lease.TenantName)
	assert.Equal(t, 1, created.Lease.PaymentDay)
	assert.Equal(t, 5, created.Lease.GracePeriod)
	assert.Equal(t, 12, created.Lease.TermMonths)
	assert.NotEmpty(t, created.Warnings)

	var audits int64
	db.Model(&models.AuditLog{}).Where("entity_type = ?", "lease").Count(&audits)
	assert.Equal(t, int64(1), audits)

	t.Run("overlap is reported inline", func(t *testing.T) {
		overlap := map[string]any{
			"property_id": prop.ID, "tenant_id": testutil.CreateTenant(t, db, owner.ID).ID, "lease_type": "fixed",
			"start_date": "2024-06-01", "end_date": "2024-06-30", "rent_amount": 1500, "status": "active",
		}
		resp := testutil.Do(t, app, "POST", "/api/leases", overlap)
		require.Equal(t, 400, resp.StatusCode)
		var e struct {
			Details []validation.FieldError `json:"details"`
		}
		testutil.Decode(t, resp, &e)
		require.NotEmpty(t, e.Details)
		assert.Equal(t, "property_id", e.Details[0].Field)
	})

	t.Run("field validation", func(t *testing.T) {
		bad := map[string]any{"property_id": prop.ID, "tenant_id": tenant.ID, "lease_type": "yearly",
			"start_date": "01/01/2024", "end_date": "2024-12-31", "rent_amount": 10.555, "status": "active"}
		resp := testutil.Do(t, app, "POST", "/api/leases", bad)
		require.Equal(t, 400, resp.StatusCode)
	})

	t.Run("list with filters and stats", func(t *testing.T) {
		var list ListResponse
		testutil.Decode(t, testutil.Do(t, app, "GET", "/api/leases?status=active&min_rent=1000", nil), &list)
		require.Len(t, list.Leases, 1)
		assert.Equal(t, int64(1), list.Stats.Active)

		testutil.Decode(t, testutil.Do(t, app, "GET", "/api/leases?max_rent=1000", nil), &list)
		assert.Empty(t, list.Leases)

		assert.Equal(t, 400, testutil.Do(t, app, "GET", "/api/leases?start_after=yesterday", nil).StatusCode)
	})

	t.Run("export csv", func(t *testing.T) {
		resp := testutil.Do(t, app, "GET", "/api/leases/export", nil)
		require.Equal(t, 200, resp.StatusCode)
		csv := string(testutil.ReadBody(t, resp))
		assert.Contains(t, csv, "Property,Tenant,Type,Start Date,End Date,Status,Rent Amount,Security Deposit,Payment Day")
		assert.Contains(t, csv, "Elm House,Jane Doe,fixed,2024-01-01,2024-12-31,active,1500.00,0.00,1")
	})

	t.Run("renew then terminate", func(t *testing.T) {
		resp := testutil.Do(t, app, "POST", fmt.Sprintf("/api/leases/%d/renew", created.Lease.ID), nil)
		require.Equal(t, 201, resp.StatusCode)
		var renewed MutationResponse
		testutil.Decode(t, resp, &renewed)
		assert.Equal(t, "2025-01-01", renewed.Lease.StartDate)

		resp = testutil.Do(t, app, "POST", fmt.Sprintf("/api/leases/%d/terminate", created.Lease.ID),
			map[string]string{"termination_date": "2024-08-01"})
		assert.Equal(t, 409, resp.StatusCode, "yenilenmiş sözleşme sonlandırılamaz")

		resp = testutil.Do(t, app, "POST", fmt.Sprintf("/api/leases/%d/terminate", renewed.Lease.ID),
			map[string]string{"termination_date": "2025-03-01", "reason": "erken çıkış"})
		require.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, models.PropertyStatusAvailable, propertyStatus(t, db, prop.ID))
	})

	t.Run("not owned is 404", func(t *testing.T) {
		stranger := testutil.NewApp(testutil.CreateUser(t, db).ID, routes)
		assert.Equal(t, 404, testutil.Do(t, stranger, "GET", fmt.Sprintf("/api/leases/%d", created.Lease.ID), nil).StatusCode)
	})
}

func TestHandlers_DatabaseErrorIsLogged(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	var logs bytes.Buffer
	app := testutil.NewAppWithLog(owner.ID, &logs, routes)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	resp := testutil.Do(t, app, "GET", "/api/leases", nil)
	require.Equal(t, 500, resp.StatusCode)
	var e struct {
		Error string `json:"error"`
	}
	testutil.Decode(t, resp, &e)
	assert.Equal(t, "Sözleşmeler listelenemedi", e.Error)
	assert.NotContains(t, e.Error, "closed")

	assert.Contains(t, logs.String(), "database is closed")
	assert.Contains(t, logs.String(), "path=/api/leases")
	assert.Contains(t, logs.String(), "component=http")
}
