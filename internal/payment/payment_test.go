package payment

import (
	"context"
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

type fixture struct {
	db     *gorm.DB
	owner  models.User
	prop   models.Property
	tenant models.Tenant
	lease  models.Lease
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) { p.Name = "Oak Flat"; p.Status = models.PropertyStatusRented })
	tn := testutil.CreateTenant(t, db, owner.ID, func(tn *models.Tenant) { tn.FirstName = "Lia"; tn.LastName = "Reis" })
	l := testutil.CreateLease(t, db, prop.ID, tn.ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive,
		func(l *models.Lease) { l.RentAmount = 1200; l.PaymentDay = 31 })
	return fixture{db: db, owner: owner, prop: prop, tenant: tn, lease: l}
}

func countPayments(t *testing.T, db *gorm.DB, leaseID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Payment{}).Where("lease_id = ?", leaseID).Count(&n).Error)
	return n
}

func TestCreateRecurring_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	today := testutil.Date(t, "2024-03-10")
	due := testutil.Date(t, "2024-03-15")

	first, err := CreateRecurring(ctx, f.db, f.owner.ID, []uint{f.prop.ID}, due, today)
	require.NoError(t, err)
	require.Len(t, first.Created, 1)
	assert.Zero(t, first.Skipped)
	assert.Len(t, first.Notifications, 1)

	p := first.Created[0]
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.InDelta(t, 1200, p.Amount, 0.001)
	assert.Equal(t, "2024-03-15", models.FormatDate(p.DueDate))
	require.NotNil(t, p.LeaseID)
	assert.Equal(t, f.lease.ID, *p.LeaseID)

	var cat models.PaymentCategory
	require.NoError(t, f.db.First(&cat, *p.CategoryID).Error)
	assert.Equal(t, models.RentCategoryName, cat.Name)

	second, err := CreateRecurring(ctx, f.db, f.owner.ID, []uint{f.prop.ID}, due, today)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Notifications)
	assert.Equal(t, int64(1), countPayments(t, f.db, f.lease.ID))

	// aynı ay içinde farklı bir vade de kopya sayılır
	third, err := CreateRecurring(ctx, f.db, f.owner.ID, []uint{f.prop.ID}, testutil.Date(t, "2024-03-28"), today)
	require.NoError(t, err)
	assert.Empty(t, third.Created)
	assert.Equal(t, int64(1), countPayments(t, f.db, f.lease.ID))
}

func TestCreateRecurring_SkipsLeasesNotCurrent(t *testing.T) {
	f := setup(t)
	other := testutil.CreateTenant(t, f.db, f.owner.ID)
	prop2 := testutil.CreateProperty(t, f.db, f.owner.ID)
	testutil.CreateLease(t, f.db, prop2.ID, other.ID, "2025-01-01", "2025-12-31", models.LeaseStatusActive)
	testutil.CreateLease(t, f.db, prop2.ID, other.ID, "2023-01-01", "2023-12-31", models.LeaseStatusCompleted)

	// başka sahibin sözleşmesi
	stranger := testutil.CreateUser(t, f.db)
	sp := testutil.CreateProperty(t, f.db, stranger.ID)
	testutil.CreateLease(t, f.db, sp.ID, testutil.CreateTenant(t, f.db, stranger.ID).ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive)

	ids := []uint{f.prop.ID, prop2.ID, sp.ID}
	res, err := CreateRecurring(context.Background(), f.db, f.owner.ID, ids, testutil.Date(t, "2024-05-01"), testutil.Date(t, "2024-04-20"))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, f.prop.ID, res.Created[0].PropertyID)
}

func TestCreateRecurring_RequiresSelection(t *testing.T) {
	f := setup(t)
	prop2 := testutil.CreateProperty(t, f.db, f.owner.ID)
	testutil.CreateLease(t, f.db, prop2.ID, testutil.CreateTenant(t, f.db, f.owner.ID).ID, "2024-01-01", "2024-12-31", models.LeaseStatusActive)

	for _, ids := range [][]uint{nil, {}} {
		res, err := CreateRecurring(context.Background(), f.db, f.owner.ID, ids, testutil.Date(t, "2024-04-01"), testutil.Date(t, "2024-03-10"))
		assert.ErrorIs(t, err, ErrNoPropertyChosen)
		assert.Nil(t, res)
	}
	var n int64
	require.NoError(t, f.db.Model(&models.Payment{}).Count(&n).Error)
	assert.Zero(t, n)

	// toplu üretim seçim olmadan sahibin tüm mülklerini kapsar
	all, err := CreateRecurringForMonth(context.Background(), f.db, f.owner.ID, testutil.Date(t, "2024-04-01"), testutil.Date(t, "2024-03-10"))
	require.NoError(t, err)
	assert.Len(t, all.Created, 2)
}

func TestCreateRecurringForMonth_ClampsPaymentDay(t *testing.T) {
	f := setup(t)
	res, err := CreateRecurringForMonth(context.Background(), f.db, f.owner.ID, testutil.Date(t, "2024-02-01"), testutil.Date(t, "2024-02-01"))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "2024-02-29", models.FormatDate(res.Created[0].DueDate))
}

func TestCreate_AttachesLatestLease(t *testing.T) {
	f := setup(t)
	newer := testutil.CreateLease(t, f.db, f.prop.ID, f.tenant.ID, "2025-01-01", "2025-12-31", models.LeaseStatusPending)

	res, err := Create(context.Background(), f.db, f.owner.ID, models.Payment{
		PropertyID: f.prop.ID, TenantID: f.tenant.ID, Amount: 1200,
		DueDate: testutil.Date(t, "2025-01-01"), Status: models.PaymentStatusPending,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Payment.LeaseID)
	assert.Equal(t, newer.ID, *res.Payment.LeaseID)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, models.NotificationPaymentDue, res.Notifications[0].Type)
}

func TestCreate_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loner := testutil.CreateTenant(t, f.db, f.owner.ID)

	_, err := Create(ctx, f.db, f.owner.ID, models.Payment{
		PropertyID: f.prop.ID, TenantID: loner.ID, Amount: 100,
		DueDate: testutil.Date(t, "2024-02-01"), Status: models.PaymentStatusPending,
	})
	assert.ErrorIs(t, err, ErrNoLeaseForTenant)

	_, err = Create(ctx, f.db, f.owner.ID, models.Payment{
		PropertyID: f.prop.ID, TenantID: f.tenant.ID, Amount: 100,
		DueDate: testutil.Date(t, "2024-02-01"), Status: models.PaymentStatusPaid,
	})
	require.Error(t, err, "ödenmiş ödeme tarihsiz olamaz")

	foreign := testutil.CreateLease(t, f.db, testutil.CreateProperty(t, f.db, f.owner.ID).ID, f.tenant.ID,
		"2024-01-01", "2024-12-31", models.LeaseStatusActive)
	_, err = Create(ctx, f.db, f.owner.ID, models.Payment{
		PropertyID: f.prop.ID, TenantID: f.tenant.ID, LeaseID: &foreign.ID, Amount: 100,
		DueDate: testutil.Date(t, "2024-02-01"), Status: models.PaymentStatusPending,
	})
	require.Error(t, err)

	stranger := testutil.CreateUser(t, f.db)
	_, err = Create(ctx, f.db, stranger.ID, models.Payment{
		PropertyID: f.prop.ID, TenantID: f.tenant.ID, Amount: 100,
		DueDate: testutil.Date(t, "2024-02-01"), Status: models.PaymentStatusPending,
	})
	require.Error(t, err)

	var n int64
	f.db.Model(&models.Payment{}).Count(&n)
	assert.Zero(t, n)
}

func TestOverdueAndStats(t *testing.T) {
	f := setup(t)
	today := testutil.Date(t, "2024-06-15")
	paidOn := testutil.Date(t, "2024-06-03")

	testutil.CreatePayment(t, f.db, f.prop.ID, f.tenant.ID, func(p *models.Payment) {
		p.DueDate, p.Amount = testutil.Date(t, "2024-06-01"), 500
	})
	testutil.CreatePayment(t, f.db, f.prop.ID, f.tenant.ID, func(p *models.Payment) {
		p.DueDate, p.Amount = testutil.Date(t, "2024-06-20"), 300
	})
	paid := testutil.CreatePayment(t, f.db, f.prop.ID, f.tenant.ID, func(p *models.Payment) {
		p.DueDate, p.PaymentDate, p.Status, p.Amount = testutil.Date(t, "2024-06-01"), &paidOn, models.PaymentStatusPaid, 1200
	})
	assert.False(t, paid.IsOverdueAt(today))

	s, err := ComputeStats(context.Background(), f.db, f.owner.ID, today)
	require.NoError(t, err)
	assert.InDelta(t, 1200, s.TotalCollected, 0.001)
	assert.InDelta(t, 800, s.PendingAmount, 0.001)
	assert.Equal(t, int64(1), s.OverdueCount)
	assert.InDelta(t, 500, s.OverdueAmount, 0.001)
	assert.InDelta(t, 1200, s.ThisMonthIncome, 0.001)

	became, err := BecameOverdue(context.Background(), f.db, testutil.Date(t, "2024-06-02"))
	require.NoError(t, err)
	require.Len(t, became, 1)
	assert.InDelta(t, 500, became[0].Amount, 0.001)

	upcoming, err := Upcoming(context.Background(), f.db, f.owner.ID, today, 5)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.InDelta(t, 300, upcoming[0].Amount, 0.001)
}

func TestMarkPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreatePayment(t, f.db, f.prop.ID, f.tenant.ID)
	today := testutil.Date(t, "2024-07-04")

	res, err := MarkPaid(ctx, f.db, f.owner.ID, p.ID, MarkPaidInput{Method: models.PaymentMethodCash}, today)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, res.Payment.Status)
	require.NotNil(t, res.Payment.PaymentDate)
	assert.Equal(t, "2024-07-04", models.FormatDate(*res.Payment.PaymentDate))
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, models.NotificationPaymentReceived, res.Notifications[0].Type)

	_, err = MarkPaid(ctx, f.db, f.owner.ID, p.ID, MarkPaidInput{}, today)
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	_, err = MarkPaid(ctx, f.db, testutil.CreateUser(t, f.db).ID, p.ID, MarkPaidInput{}, today)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLateFees_WaiveIsOneWay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreatePayment(t, f.db, f.prop.ID, f.tenant.ID, func(p *models.Payment) { p.Amount = 1000 })
	today := testutil.Date(t, "2024-08-10")

	fee, err := AddLateFee(ctx, f.db, f.owner.ID, p.ID, 50, "geç ödeme", nil, today)
	require.NoError(t, err)
	assert.Equal(t, "2024-08-10", models.FormatDate(fee.DateApplied))
	_, err = AddLateFee(ctx, f.db, f.owner.ID, p.ID, 25, "", nil, today)
	require.NoError(t, err)

	got, err := Get(ctx, f.db, f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1075, got.TotalWithFees(), 0.001)

	waived, err := WaiveLateFee(ctx, f.db, f.owner.ID, fee.ID, "ilk gecikme", today)
	require.NoError(t, err)
	assert.True(t, waived.Waived)
	require.NotNil(t, waived.WaivedByID)
	assert.Equal(t, f.owner.ID, *waived.WaivedByID)

	_, err = WaiveLateFee(ctx, f.db, f.owner.ID, fee.ID, "tekrar", today)
	assert.ErrorIs(t, err, ErrAlreadyWaived)

	_, err = WaiveLateFee(ctx, f.db, testutil.CreateUser(t, f.db).ID, fee.ID, "", today)
	assert.ErrorIs(t, err, ErrLateFeeNotFound)

	got, err = Get(ctx, f.db, f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1025, got.TotalWithFees(), 0.001)
}

func TestDelete_RemovesLateFees(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreatePayment(t, f.db, f.prop.ID, f.tenant.ID)
	_, err := AddLateFee(ctx, f.db, f.owner.ID, p.ID, 10, "", nil, models.Today())
	require.NoError(t, err)

	_, err = Delete(ctx, f.db, f.owner.ID, p.ID)
	require.NoError(t, err)

	var n int64
	f.db.Model(&models.LateFee{}).Count(&n)
	assert.Zero(t, n)
}

func routes(r fiber.Router) {
	r.Get("/payments/export", ExportPaymentsHandler())
	r.Post("/payments/recurring", CreateRecurringHandler())
	r.Get("/payments", ListPaymentsHandler())
	r.Post("/payments", CreatePaymentHandler())
	r.Get("/payments/:id", GetPaymentHandler())
	r.Put("/payments/:id", UpdatePaymentHandler())
	r.Delete("/payments/:id", DeletePaymentHandler())
	r.Post("/payments/:id/mark-paid", MarkPaidHandler())
	r.Post("/payments/:id/late-fees", AddLateFeeHandler())
	r.Post("/late-fees/:id/waive", WaiveLateFeeHandler())
	r.Get("/payment-categories", ListCategoriesHandler())
	r.Post("/payment-categories", CreateCategoryHandler())
}

func TestHandlers(t *testing.T) {
	f := setup(t)
	app := testutil.NewApp(f.owner.ID, routes)

	resp := testutil.Do(t, app, "POST", "/api/payments", map[string]any{
		"property_id": f.prop.ID, "tenant_id": f.tenant.ID, "amount": 1200,
		"due_date": "2024-02-01", "status": "pending",
	})
	require.Equal(t, 201, resp.StatusCode)
	var created PaymentResponse
	testutil.Decode(t, resp, &created)
	assert.Equal(t, "Oak Flat", created.PropertyName)
	assert.Equal(t, "Lia Reis", created.TenantName)
	require.NotNil(t, created.LeaseID)
	assert.Equal(t, f.lease.ID, *created.LeaseID)
	assert.True(t, created.IsOverdue)
	assert.Positive(t, created.DaysOverdue)
	path := fmt.Sprintf("/api/payments/%d", created.ID)

	t.Run("validation", func(t *testing.T) {
		resp := testutil.Do(t, app, "POST", "/api/payments", map[string]any{
			"property_id": f.prop.ID, "tenant_id": f.tenant.ID, "amount": 10.123,
			"due_date": "2024/02/01", "status": "lost",
		})
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("late fee and waive", func(t *testing.T) {
		resp := testutil.Do(t, app, "POST", path+"/late-fees", map[string]any{"amount": 40, "reason": "gecikme"})
		require.Equal(t, 201, resp.StatusCode)
		var fee LateFeeResponse
		testutil.Decode(t, resp, &fee)

		var got PaymentResponse
		testutil.Decode(t, testutil.Do(t, app, "GET", path, nil), &got)
		assert.InDelta(t, 1240, got.TotalWithFees, 0.001)
		require.Len(t, got.LateFees, 1)

		waive := fmt.Sprintf("/api/late-fees/%d/waive", fee.ID)
		assert.Equal(t, 200, testutil.Do(t, app, "POST", waive, map[string]string{"reason": "iyi niyet"}).StatusCode)
		assert.Equal(t, 409, testutil.Do(t, app, "POST", waive, nil).StatusCode)
	})

	t.Run("mark paid", func(t *testing.T) {
		resp := testutil.Do(t, app, "POST", path+"/mark-paid", map[string]string{"payment_date": "2024-02-05", "payment_method": "bank_transfer"})
		require.Equal(t, 200, resp.StatusCode)
		var got PaymentResponse
		testutil.Decode(t, resp, &got)
		assert.Equal(t, models.PaymentStatusPaid, got.Status)
		assert.False(t, got.IsOverdue)
		require.NotNil(t, got.PaymentDate)
		assert.Equal(t, "2024-02-05", *got.PaymentDate)

		assert.Equal(t, 409, testutil.Do(t, app, "POST", path+"/mark-paid", nil).StatusCode)
	})

	t.Run("list filters", func(t *testing.T) {
		testutil.CreatePayment(t, f.db, f.prop.ID, f.tenant.ID, func(p *models.Payment) {
			p.DueDate, p.Amount = testutil.Date(t, "2024-03-01"), 99
		})
		var list ListResponse
		testutil.Decode(t, testutil.Do(t, app, "GET", "/api/payments?status=paid", nil), &list)
		require.Len(t, list.Payments, 1)
		assert.InDelta(t, 1200, list.Stats.TotalCollected, 0.001)

		testutil.Decode(t, testutil.Do(t, app, "GET", "/api/payments?overdue=true", nil), &list)
		require.Len(t, list.Payments, 1)
		assert.InDelta(t, 99, list.Payments[0].Amount, 0.001)

		testutil.Decode(t, testutil.Do(t, app, "GET", "/api/payments?min_amount=100&sort=amount", nil), &list)
		require.Len(t, list.Payments, 1)

		testutil.Decode(t, testutil.Do(t, app, "GET", "/api/payments?start_date=2024-02-15&end_date=2024-03-31", nil), &list)
		require.Len(t, list.Payments, 1)

		assert.Equal(t, 400, testutil.Do(t, app, "GET", "/api/payments?min_amount=abc", nil).StatusCode)
		assert.Equal(t, 200, testutil.Do(t, app, "GET", "/api/payments?sort=tenant_id", nil).StatusCode, "bilinmeyen sıralama varsayılana düşer")
	})

	t.Run("recurring", func(t *testing.T) {
		body := map[string]any{"property_ids": []uint{f.prop.ID}, "due_date": models.FormatDate(models.Today())}
		resp := testutil.Do(t, app, "POST", "/api/payments/recurring", body)
		require.Equal(t, 201, resp.StatusCode)
		var out RecurringResponse
		testutil.Decode(t, resp, &out)
		// sözleşme 2024 sonunda bittiği için bugün aktif değil
		assert.Zero(t, out.Created)

		resp = testutil.Do(t, app, "POST", "/api/payments/recurring", map[string]any{})
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("recurring without properties", func(t *testing.T) {
		for _, body := range []map[string]any{
			{"due_date": models.FormatDate(models.Today())},
			{"property_ids": []uint{}, "due_date": models.FormatDate(models.Today())},
		} {
			resp := testutil.Do(t, app, "POST", "/api/payments/recurring", body)
			require.Equal(t, 400, resp.StatusCode)
			var e struct {
				Details []validation.FieldError `json:"details"`
			}
			testutil.Decode(t, resp, &e)
			require.NotEmpty(t, e.Details)
			assert.Equal(t, "property_ids", e.Details[0].Field)
		}
	})

	t.Run("export", func(t *testing.T) {
		resp := testutil.Do(t, app, "GET", "/api/payments/export?status=paid", nil)
		require.Equal(t, 200, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "payments.csv")
		csv := string(testutil.ReadBody(t, resp))
		assert.Contains(t, csv, "Property,Tenant,Category,Amount,Due Date,Payment Date,Status,Payment Method,Reference Number")
		assert.Contains(t, csv, "Oak Flat,Lia Reis,,1200.00,2024-02-01,2024-02-05,paid,bank_transfer,")

		assert.Equal(t, 400, testutil.Do(t, app, "GET", "/api/payments/export?format=doc", nil).StatusCode)
	})

	t.Run("categories", func(t *testing.T) {
		resp := testutil.Do(t, app, "POST", "/api/payment-categories", map[string]string{"name": "Deposit"})
		require.Equal(t, 201, resp.StatusCode)
		assert.Equal(t, 400, testutil.Do(t, app, "POST", "/api/payment-categories", map[string]string{"name": "deposit"}).StatusCode)

		var cats []models.PaymentCategory
		testutil.Decode(t, testutil.Do(t, app, "GET", "/api/payment-categories", nil), &cats)
		assert.NotEmpty(t, cats)
	})

	t.Run("ownership", func(t *testing.T) {
		stranger := testutil.NewApp(testutil.CreateUser(t, f.db).ID, routes)
		assert.Equal(t, 404, testutil.Do(t, stranger, "GET", path, nil).StatusCode)
		assert.Equal(t, 404, testutil.Do(t, stranger, "DELETE", path, nil).StatusCode)
	})

	assert.Equal(t, 204, testutil.Do(t, app, "DELETE", path, nil).StatusCode)
	assert.Equal(t, 404, testutil.Do(t, app, "GET", path, nil).StatusCode)
}
