package property

import (
	"context"
	"fmt"
	"testing"

	"rental-backend/internal/models"
	"rental-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routes(r fiber.Router) {
	r.Get("/properties", ListPropertiesHandler())
	r.Post("/properties", CreatePropertyHandler())
	r.Get("/properties/:id", GetPropertyHandler())
	r.Put("/properties/:id", UpdatePropertyHandler())
	r.Delete("/properties/:id", DeletePropertyHandler())
}

func TestCreateProperty(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	app := testutil.NewApp(owner.ID, routes)

	resp := testutil.Do(t, app, "POST", "/api/properties", map[string]any{
		"name": "  Maple Duplex ", "property_type": "house", "address": "12 Maple Rd", "city": "Austin",
		"monthly_rent": 1850, "bedrooms": 3, "bathrooms": 1.5, "acquisition_price": 250000, "acquisition_date": "2020-05-01",
	})
	require.Equal(t, 201, resp.StatusCode)
	var created PropertyResponse
	testutil.Decode(t, resp, &created)
	assert.Equal(t, "Maple Duplex", created.Name)
	assert.Equal(t, models.PropertyStatusAvailable, created.Status)
	require.NotNil(t, created.AcquisitionDate)
	assert.Equal(t, "2020-05-01", *created.AcquisitionDate)

	var stored models.Property
	require.NoError(t, db.First(&stored, created.ID).Error)
	assert.Equal(t, owner.ID, stored.OwnerID)
}

func TestCreateProperty_Validation(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	app := testutil.NewApp(testutil.CreateUser(t, db).ID, routes)

	resp := testutil.Do(t, app, "POST", "/api/properties", map[string]any{
		"name": " ", "property_type": "castle", "address": "x", "city": "y", "monthly_rent": -5,
	})
	require.Equal(t, 400, resp.StatusCode)
	var e struct {
		Details []struct{ Field string } `json:"details"`
	}
	testutil.Decode(t, resp, &e)
	got := map[string]bool{}
	for _, d := range e.Details {
		got[d.Field] = true
	}
	assert.True(t, got["name"])
	assert.True(t, got["property_type"])
	assert.True(t, got["monthly_rent"])

	var count int64
	db.Model(&models.Property{}).Count(&count)
	assert.Zero(t, count)
}

func TestListProperties_FiltersAndStats(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	other := testutil.CreateUser(t, db)

	testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) {
		p.Name, p.City, p.Bedrooms, p.Status, p.MonthlyRent = "Lake View", "Austin", 2, models.PropertyStatusRented, 1500
	})
	testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) {
		p.Name, p.City, p.Bedrooms, p.MonthlyRent = "Big House", "Dallas", 5, 3000
	})
	testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) {
		p.Name, p.City, p.Bedrooms, p.Status = "Old Mill", "south austin", 4, models.PropertyStatusMaintenance
	})
	testutil.CreateProperty(t, db, other.ID, func(p *models.Property) { p.City = "Austin" })

	app := testutil.NewApp(owner.ID, routes)

	var list ListResponse
	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/properties", nil), &list)
	assert.Len(t, list.Properties, 3)
	assert.Equal(t, int64(3), list.Stats.Total)
	assert.Equal(t, int64(1), list.Stats.Rented)
	assert.Equal(t, int64(1), list.Stats.Available)
	assert.InDelta(t, 1500, list.Stats.MonthlyIncome, 0.001)

	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/properties?city=AUSTIN", nil), &list)
	assert.Len(t, list.Properties, 2)

	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/properties?bedrooms=4", nil), &list)
	assert.Len(t, list.Properties, 2, "4 ve üzeri")

	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/properties?search=mill&status=maintenance", nil), &list)
	require.Len(t, list.Properties, 1)
	assert.Equal(t, "Old Mill", list.Properties[0].Name)

	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/properties?sort=-monthly_rent", nil), &list)
	assert.Equal(t, "Big House", list.Properties[0].Name)

	assert.Equal(t, 400, testutil.Do(t, app, "GET", "/api/properties?bedrooms=many", nil).StatusCode)
}

func TestPropertyDetail(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID, func(p *models.Property) { p.Status = models.PropertyStatusRented })
	tenant := testutil.CreateTenant(t, db, owner.ID)
	today := models.Today()
	testutil.CreateLease(t, db, prop.ID, tenant.ID,
		models.FormatDate(today.AddDate(0, -1, 0)), models.FormatDate(today.AddDate(0, 11, 0)), models.LeaseStatusActive)

	paid := today
	testutil.CreatePayment(t, db, prop.ID, tenant.ID, func(p *models.Payment) {
		p.Status = models.PaymentStatusPaid
		p.PaymentDate = &paid
		p.Amount = 1200
	})
	testutil.CreatePayment(t, db, prop.ID, tenant.ID)
	testutil.CreateExpense(t, db, prop.ID, func(e *models.Expense) { e.Amount = 200 })
	testutil.CreateExpense(t, db, prop.ID, func(e *models.Expense) { e.Amount = 999; e.Status = models.ExpenseStatusPending })

	d, err := LoadDetail(context.Background(), db, owner.ID, prop.ID, today)
	require.NoError(t, err)
	require.NotNil(t, d.CurrentLease)
	assert.Equal(t, tenant.ID, d.CurrentLease.TenantID)
	assert.InDelta(t, 1200, d.YearlyIncome, 0.001)
	assert.InDelta(t, 200, d.YearlyExpenses, 0.001)
	assert.Len(t, d.RecentPayments, 2)
	assert.Len(t, d.RecentExpenses, 2)

	app := testutil.NewApp(owner.ID, routes)
	var resp DetailResponse
	testutil.Decode(t, testutil.Do(t, app, "GET", fmt.Sprintf("/api/properties/%d", prop.ID), nil), &resp)
	assert.InDelta(t, 1000, resp.YearlyProfit, 0.001)
	require.NotNil(t, resp.CurrentLease)
	assert.Equal(t, tenant.FullName(), resp.CurrentLease.TenantName)
}

func TestUpdateAndDeleteProperty(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	prop := testutil.CreateProperty(t, db, owner.ID)
	app := testutil.NewApp(owner.ID, routes)
	path := fmt.Sprintf("/api/properties/%d", prop.ID)

	resp := testutil.Do(t, app, "PUT", path, map[string]any{"monthly_rent": 1300.5, "status": "maintenance"})
	require.Equal(t, 200, resp.StatusCode)
	var updated PropertyResponse
	testutil.Decode(t, resp, &updated)
	assert.Equal(t, 1300.5, updated.MonthlyRent)
	assert.Equal(t, models.PropertyStatusMaintenance, updated.Status)
	assert.Equal(t, prop.Name, updated.Name)

	assert.Equal(t, 400, testutil.Do(t, app, "PUT", path, map[string]any{"name": "   "}).StatusCode)

	stranger := testutil.NewApp(testutil.CreateUser(t, db).ID, routes)
	assert.Equal(t, 404, testutil.Do(t, stranger, "PUT", path, map[string]any{"monthly_rent": 1}).StatusCode)
	assert.Equal(t, 404, testutil.Do(t, stranger, "DELETE", path, nil).StatusCode)

	assert.Equal(t, 204, testutil.Do(t, app, "DELETE", path, nil).StatusCode)
	assert.Equal(t, 404, testutil.Do(t, app, "GET", path, nil).StatusCode)

	var logs []models.AuditLog
	require.NoError(t, db.Where("entity_type = ?", "property").Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionUpdate, logs[0].Action)
	assert.Equal(t, models.AuditActionDelete, logs[1].Action)
}
