package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental-backend/internal/models"
	"rental-backend/internal/scope"
	"rental-backend/internal/validation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("gider bulunamadı")
	ErrVendorNotFound   = errors.New("tedarikçi bulunamadı")
	ErrCategoryNotFound = errors.New("kategori bulunamadı")
)

func loadOwned(tx *gorm.DB, ownerID, id uint) (*models.Expense, error) {
	var e models.Expense
	err := tx.Scopes(scope.ThroughProperty("expenses", ownerID)).First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &e, err
}

func Get(ctx context.Context, db *gorm.DB, ownerID, id uint) (*models.Expense, error) {
	var e models.Expense
	err := db.WithContext(ctx).Preload("Property").Preload("Category").Preload("Vendor").
		Scopes(scope.ThroughProperty("expenses", ownerID)).
		First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &e, err
}

// Prepare mülk, kategori ve tedarikçi referanslarını kontrol eder
func Prepare(ctx context.Context, tx *gorm.DB, ownerID uint, e *models.Expense) error {
	e.Date = models.DateOnly(e.Date)
	if e.DueDate != nil {
		d := models.DateOnly(*e.DueDate)
		e.DueDate = &d
	}

	verr := validation.NewError()
	q := tx.WithContext(ctx)

	var count int64
	if err := q.Model(&models.Property{}).Scopes(scope.OwnedProperties(ownerID)).
		Where("properties.id = ?", e.PropertyID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		verr.Add("property_id", "mülk bulunamadı")
	}
	if e.CategoryID != nil {
		if err := q.Model(&models.ExpenseCategory{}).Where("id = ?", *e.CategoryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			verr.Add("category_id", "kategori bulunamadı")
		}
	}
	if e.VendorID != nil {
		if err := q.Model(&models.Vendor{}).Scopes(scope.OwnedVendors(ownerID)).
			Where("vendors.id = ?", *e.VendorID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			verr.Add("vendor_id", "tedarikçi bulunamadı")
		}
	}
	return verr.OrNil()
}

func Create(ctx context.Context, db *gorm.DB, ownerID uint, e models.Expense) (*models.Expense, error) {
	e.ID = 0
	e.CreatedByID = ownerID
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Prepare(ctx, tx, ownerID, &e); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&e).Error; err != nil {
			return fmt.Errorf("gider kaydedilemedi: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func Update(ctx context.Context, db *gorm.DB, ownerID uint, next models.Expense) (*models.Expense, *models.Expense, error) {
	var before models.Expense
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := loadOwned(tx, ownerID, next.ID)
		if err != nil {
			return err
		}
		before = *old
		if err := Prepare(ctx, tx, ownerID, &next); err != nil {
			return err
		}
		next.CreatedByID = old.CreatedByID
		next.CreatedAt = old.CreatedAt
		if err := tx.Omit(clause.Associations).Save(&next).Error; err != nil {
			return fmt.Errorf("gider güncellenemedi: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &next, &before, nil
}

func Delete(ctx context.Context, db *gorm.DB, ownerID, id uint) (*models.Expense, error) {
	var deleted models.Expense
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := loadOwned(tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Expense{}, e.ID).Error; err != nil {
			return fmt.Errorf("gider silinemedi: %w", err)
		}
		deleted = *e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// -------------------------
// İstatistik ve özet
// -------------------------

type Stats struct {
	Total     float64 `json:"total"`
	Paid      float64 `json:"paid"`
	Pending   float64 `json:"pending"`
	ThisMonth float64 `json:"this_month"`
}

// ComputeStats verilen (filtrelenmiş) sorgu üzerinde toplamları hesaplar.
// base her çağrıda yeni bir *gorm.DB dönmeli.
func ComputeStats(base func() *gorm.DB, today time.Time) (*Stats, error) {
	monthStart, monthEnd := models.MonthBounds(models.DateOnly(today))
	sum := "COALESCE(SUM(expenses.amount), 0)"

	var s Stats
	if err := base().Select(sum).Scan(&s.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("expenses.status = ?", models.ExpenseStatusPaid).Select(sum).Scan(&s.Paid).Error; err != nil {
		return nil, err
	}
	if err := base().Where("expenses.status IN ?", []models.ExpenseStatus{models.ExpenseStatusPending, models.ExpenseStatusPartial}).
		Select(sum).Scan(&s.Pending).Error; err != nil {
		return nil, err
	}
	if err := base().Where("expenses.date >= ? AND expenses.date < ?", monthStart, monthEnd).
		Select(sum).Scan(&s.ThisMonth).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

type SummaryItem struct {
	CategoryID   *uint   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Total        float64 `json:"total"`
}

type MonthlySummary struct {
	Year       int           `json:"year"`
	Month      int           `json:"month"`
	Items      []SummaryItem `json:"items"`
	GrandTotal float64       `json:"grand_total"`
}

// Monthly ödenmiş giderleri kategoriye göre toplar
func Monthly(ctx context.Context, db *gorm.DB, ownerID uint, year int, month time.Month) (*MonthlySummary, error) {
	first, next := models.MonthBounds(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))

	type row struct {
		CategoryID *uint   `gorm:"column:category_id"`
		Total      float64 `gorm:"column:total"`
	}
	var rows []row
	if err := db.WithContext(ctx).
		Model(&models.Expense{}).
		Scopes(scope.ThroughProperty("expenses", ownerID)).
		Select("expenses.category_id, SUM(expenses.amount) as total").
		Where("expenses.status = ? AND expenses.date >= ? AND expenses.date < ?", models.ExpenseStatusPaid, first, next).
		Group("expenses.category_id").
		Order("total desc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	// kategori isimlerini çek
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		if r.CategoryID != nil {
			ids = append(ids, *r.CategoryID)
		}
	}
	catMap := make(map[uint]string)
	if len(ids) > 0 {
		var cats []models.ExpenseCategory
		if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&cats).Error; err != nil {
			return nil, err
		}
		for _, cat := range cats {
			catMap[cat.ID] = cat.Name
		}
	}

	out := &MonthlySummary{Year: year, Month: int(month), Items: make([]SummaryItem, 0, len(rows))}
	for _, r := range rows {
		name := "Kategorisiz"
		if r.CategoryID != nil {
			name = catMap[*r.CategoryID]
		}
		out.Items = append(out.Items, SummaryItem{CategoryID: r.CategoryID, CategoryName: name, Total: r.Total})
		out.GrandTotal += r.Total
	}
	return out, nil
}
