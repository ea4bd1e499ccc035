package testutil

import (
	"fmt"
	"testing"
	"time"

	"rental-backend/internal/database"
	"rental-backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB tek bağlantılı, migrate edilmiş bir SQLite :memory: veritabanı döner.
// Tek bağlantı şart: :memory: her bağlantıda ayrı bir veritabanı açar.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// UseGlobalDB handler testleri için database.DB'yi test veritabanına çevirir
func UseGlobalDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := NewDB(t)
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
	return db
}

// Date "2024-01-31" biçimindeki tarihi parse eder, hata olursa testi durdurur
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

var seq int

func next() int {
	seq++
	return seq
}

func CreateUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	n := next()
	u := models.User{
		Name:         fmt.Sprintf("Owner %d", n),
		Email:        fmt.Sprintf("owner%d@example.com", n),
		PasswordHash: "x",
		Role:         models.RoleOwner,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func CreateProperty(t *testing.T, db *gorm.DB, ownerID uint, opts ...func(*models.Property)) models.Property {
	t.Helper()
	p := models.Property{
		OwnerID:      ownerID,
		Name:         fmt.Sprintf("Property %d", next()),
		PropertyType: models.PropertyTypeApartment,
		Address:      "1 Main St",
		City:         "Springfield",
		Bedrooms:     2,
		Bathrooms:    1,
		MonthlyRent:  1000,
		Status:       models.PropertyStatusAvailable,
	}
	for _, o := range opts {
		o(&p)
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func CreateTenant(t *testing.T, db *gorm.DB, createdByID uint, opts ...func(*models.Tenant)) models.Tenant {
	t.Helper()
	n := next()
	tn := models.Tenant{
		CreatedByID: createdByID,
		FirstName:   "Tenant",
		LastName:    fmt.Sprintf("No%d", n),
		Email:       fmt.Sprintf("tenant%d@example.com", n),
		Phone:       "5551234567",
	}
	for _, o := range opts {
		o(&tn)
	}
	require.NoError(t, db.Create(&tn).Error)
	return tn
}

// CreateLease doğrudan kayıt açar, doğrulama ve durum senkronizasyonu yapmaz
func CreateLease(t *testing.T, db *gorm.DB, propertyID, tenantID uint, start, end string, status models.LeaseStatus, opts ...func(*models.Lease)) models.Lease {
	t.Helper()
	l := models.Lease{
		PropertyID:  propertyID,
		TenantID:    tenantID,
		LeaseType:   models.LeaseTypeFixed,
		StartDate:   Date(t, start),
		EndDate:     Date(t, end),
		RentAmount:  1000,
		Status:      status,
		PaymentDay:  1,
		GracePeriod: 5,
	}
	for _, o := range opts {
		o(&l)
	}
	require.NoError(t, db.Create(&l).Error)
	return l
}

func CreatePayment(t *testing.T, db *gorm.DB, propertyID, tenantID uint, opts ...func(*models.Payment)) models.Payment {
	t.Helper()
	p := models.Payment{
		PropertyID: propertyID,
		TenantID:   tenantID,
		Amount:     1000,
		DueDate:    models.Today(),
		Status:     models.PaymentStatusPending,
	}
	for _, o := range opts {
		o(&p)
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func CreateExpense(t *testing.T, db *gorm.DB, propertyID uint, opts ...func(*models.Expense)) models.Expense {
	t.Helper()
	e := models.Expense{
		PropertyID: propertyID,
		Amount:     100,
		Date:       models.Today(),
		Status:     models.ExpenseStatusPaid,
	}
	for _, o := range opts {
		o(&e)
	}
	require.NoError(t, db.Create(&e).Error)
	return e
}
