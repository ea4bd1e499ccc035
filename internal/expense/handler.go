package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rental-backend/internal/audit"
	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/export"
	"rental-backend/internal/filter"
	"rental-backend/internal/httperr"
	"rental-backend/internal/models"
	"rental-backend/internal/scope"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ExpenseCategoryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateExpenseCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type UpdateExpenseCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

type VendorRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	ContactName string `json:"contact_name" validate:"max=150"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,phone10"`
	Address     string `json:"address" validate:"max=255"`
	Notes       string `json:"notes"`
}

func (r VendorRequest) apply(v *models.Vendor) {
	v.Name = strings.TrimSpace(r.Name)
	v.ContactName = strings.TrimSpace(r.ContactName)
	v.Email = strings.ToLower(strings.TrimSpace(r.Email))
	v.Phone = validation.DigitsOnly(r.Phone)
	v.Address = strings.TrimSpace(r.Address)
	v.Notes = strings.TrimSpace(r.Notes)
}

type ExpenseRequest struct {
	PropertyID      uint    `json:"property_id" validate:"required"`
	CategoryID      *uint   `json:"category_id" validate:"omitempty,gt=0"`
	VendorID        *uint   `json:"vendor_id" validate:"omitempty,gt=0"`
	Amount          float64 `json:"amount" validate:"gt=0,dec2"`
	Date            string  `json:"date" validate:"required,date"` // "2025-12-09"
	DueDate         string  `json:"due_date" validate:"omitempty,date"`
	Description     string  `json:"description" validate:"max=255"`
	Status          string  `json:"status" validate:"omitempty,oneof=pending paid partial cancelled"`
	PaymentMethod   string  `json:"payment_method" validate:"omitempty,oneof=cash check bank_transfer credit_card online other"`
	ReferenceNumber string  `json:"reference_number" validate:"max=100"`
	IsRecurring     bool    `json:"is_recurring"`
	TaxDeductible   bool    `json:"tax_deductible"`
	Notes           string  `json:"notes"`
}

func (r ExpenseRequest) toModel() models.Expense {
	d, _ := models.ParseDate(r.Date)
	due, _ := models.ParseOptionalDate(r.DueDate)
	status := models.ExpenseStatus(r.Status)
	if status == "" {
		status = models.ExpenseStatusPaid
	}
	return models.Expense{
		PropertyID:      r.PropertyID,
		CategoryID:      r.CategoryID,
		VendorID:        r.VendorID,
		Amount:          r.Amount,
		Date:            d,
		DueDate:         due,
		Description:     strings.TrimSpace(r.Description),
		Status:          status,
		PaymentMethod:   models.PaymentMethod(r.PaymentMethod),
		ReferenceNumber: strings.TrimSpace(r.ReferenceNumber),
		IsRecurring:     r.IsRecurring,
		TaxDeductible:   r.TaxDeductible,
		Notes:           strings.TrimSpace(r.Notes),
	}
}

type ExpenseResponse struct {
	ID              uint                 `json:"id"`
	PropertyID      uint                 `json:"property_id"`
	PropertyName    string               `json:"property_name"`
	CategoryID      *uint                `json:"category_id"`
	Category        string               `json:"category"`
	VendorID        *uint                `json:"vendor_id"`
	Vendor          string               `json:"vendor"`
	Date            string               `json:"date"`
	DueDate         *string              `json:"due_date"`
	Amount          float64              `json:"amount"`
	Description     string               `json:"description"`
	Status          models.ExpenseStatus `json:"status"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	ReferenceNumber string               `json:"reference_number"`
	IsRecurring     bool                 `json:"is_recurring"`
	TaxDeductible   bool                 `json:"tax_deductible"`
	IsOverdue       bool                 `json:"is_overdue"`
	Notes           string               `json:"notes"`
}

func toResponse(e models.Expense, today time.Time) ExpenseResponse {
	r := ExpenseResponse{
		ID:              e.ID,
		PropertyID:      e.PropertyID,
		PropertyName:    e.Property.Name,
		CategoryID:      e.CategoryID,
		VendorID:        e.VendorID,
		Date:            models.FormatDate(e.Date),
		DueDate:         models.FormatOptionalDate(e.DueDate),
		Amount:          e.Amount,
		Description:     e.Description,
		Status:          e.Status,
		PaymentMethod:   e.PaymentMethod,
		ReferenceNumber: e.ReferenceNumber,
		IsRecurring:     e.IsRecurring,
		TaxDeductible:   e.TaxDeductible,
		IsOverdue:       e.IsOverdueAt(today),
		Notes:           e.Notes,
	}
	if e.Category != nil {
		r.Category = e.Category.Name
	}
	if e.Vendor != nil {
		r.Vendor = e.Vendor.Name
	}
	return r
}

type ListResponse struct {
	Expenses []ExpenseResponse `json:"expenses"`
	Stats    Stats             `json:"stats"`
}

// -------------------------
// Yardımcılar
// -------------------------

func toHTTP(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Gider bulunamadı")
	case errors.Is(err, ErrVendorNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Tedarikçi bulunamadı")
	case errors.Is(err, ErrCategoryNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Kategori bulunamadı")
	}
	return err
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz id")
	}
	return uint(id), nil
}

func reload(c *fiber.Ctx, ownerID, id uint) (ExpenseResponse, error) {
	e, err := Get(c.UserContext(), database.DB, ownerID, id)
	if err != nil {
		return ExpenseResponse{}, toHTTP(err)
	}
	return toResponse(*e, models.Today()), nil
}

// filters liste, istatistik ve export için ortak WHERE koşullarını uygular
func filters(c *fiber.Ctx, ownerID uint) (func() *gorm.DB, string, error) {
	q := filter.New(c)
	start := q.Date("start_date")
	end := q.Date("end_date")
	propertyID := q.Uint("property_id")
	categoryID := q.Uint("category_id")
	vendorID := q.Uint("vendor_id")
	minAmount := q.Float("min_amount")
	maxAmount := q.Float("max_amount")
	status := q.String("status")
	taxDeductible := q.Bool("tax_deductible")
	order := q.Sort("sort", map[string]string{
		"date":   "expenses.date",
		"amount": "expenses.amount",
		"status": "expenses.status",
	}, "expenses.date desc")
	if err := q.Err(); err != nil {
		return nil, "", err
	}

	base := func() *gorm.DB {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Expense{}).
			Scopes(scope.ThroughProperty("expenses", ownerID))
		if start != nil {
			dbq = dbq.Where("expenses.date >= ?", *start)
		}
		if end != nil {
			dbq = dbq.Where("expenses.date <= ?", *end)
		}
		if propertyID != nil {
			dbq = dbq.Where("expenses.property_id = ?", *propertyID)
		}
		if categoryID != nil {
			dbq = dbq.Where("expenses.category_id = ?", *categoryID)
		}
		if vendorID != nil {
			dbq = dbq.Where("expenses.vendor_id = ?", *vendorID)
		}
		if minAmount != nil {
			dbq = dbq.Where("expenses.amount >= ?", *minAmount)
		}
		if maxAmount != nil {
			dbq = dbq.Where("expenses.amount <= ?", *maxAmount)
		}
		if status != "" {
			dbq = dbq.Where("expenses.status = ?", status)
		}
		if taxDeductible != nil {
			dbq = dbq.Where("expenses.tax_deductible = ?", *taxDeductible)
		}
		return dbq
	}
	return base, order, nil
}

// -------------------------
// Expense Category CRUD
// -------------------------

// GET /api/expense-categories  (auth olan herkes)
func ListExpenseCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cats []models.ExpenseCategory
		if err := database.DB.WithContext(c.UserContext()).Order("name asc").Find(&cats).Error; err != nil {
			return httperr.Internal("Kategoriler listelenemedi", err)
		}

		res := make([]ExpenseCategoryResponse, 0, len(cats))
		for _, cat := range cats {
			res = append(res, ExpenseCategoryResponse{ID: cat.ID, Name: cat.Name, Description: cat.Description})
		}
		return c.JSON(res)
	}
}

func categoryNameTaken(c *fiber.Ctx, name string, exceptID uint) bool {
	var count int64
	database.DB.WithContext(c.UserContext()).Model(&models.ExpenseCategory{}).
		Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).Count(&count)
	return count > 0
}

// POST /api/expense-categories
func CreateExpenseCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateExpenseCategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		body.Name = strings.TrimSpace(body.Name)
		if err := validation.Struct(body); err != nil {
			return err
		}
		if categoryNameTaken(c, body.Name, 0) {
			return validation.Field("name", "bu isimde bir kategori zaten var")
		}

		cat := models.ExpenseCategory{Name: body.Name, Description: strings.TrimSpace(body.Description)}
		if err := database.DB.WithContext(c.UserContext()).Create(&cat).Error; err != nil {
			return httperr.Internal("Kategori oluşturulamadı", err)
		}
		audit.Record(c, "expense_category", cat.ID, models.AuditActionCreate, "Gider kategorisi eklendi: "+cat.Name, nil, cat)

		return c.Status(fiber.StatusCreated).JSON(ExpenseCategoryResponse{ID: cat.ID, Name: cat.Name, Description: cat.Description})
	}
}

// PUT /api/expense-categories/:id
func UpdateExpenseCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var cat models.ExpenseCategory
		if err := database.DB.WithContext(c.UserContext()).First(&cat, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kategori bulunamadı")
		}
		before := cat

		var body UpdateExpenseCategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			body.Name = &name
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		if body.Name != nil {
			if categoryNameTaken(c, *body.Name, cat.ID) {
				return validation.Field("name", "bu isimde bir kategori zaten var")
			}
			cat.Name = *body.Name
		}
		if body.Description != nil {
			cat.Description = strings.TrimSpace(*body.Description)
		}

		if err := database.DB.WithContext(c.UserContext()).Save(&cat).Error; err != nil {
			return httperr.Internal("Kategori güncellenemedi", err)
		}
		audit.Record(c, "expense_category", cat.ID, models.AuditActionUpdate, "Gider kategorisi güncellendi", before, cat)

		return c.JSON(ExpenseCategoryResponse{ID: cat.ID, Name: cat.Name, Description: cat.Description})
	}
}

// DELETE /api/expense-categories/:id
// Kategoriye bağlı giderler kategorisiz kalır.
func DeleteExpenseCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var cat models.ExpenseCategory
		if err := database.DB.WithContext(c.UserContext()).First(&cat, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kategori bulunamadı")
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Expense{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
				return err
			}
			return tx.Delete(&models.ExpenseCategory{}, id).Error
		})
		if err != nil {
			return httperr.Internal("Kategori silinemedi", err)
		}
		audit.Record(c, "expense_category", id, models.AuditActionDelete, "Gider kategorisi silindi: "+cat.Name, cat, nil)

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Vendor CRUD (oluşturan kullanıcıya ait)
// -------------------------

func findVendor(c *fiber.Ctx, ownerID uint) (*models.Vendor, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	var v models.Vendor
	if err := database.DB.WithContext(c.UserContext()).Scopes(scope.OwnedVendors(ownerID)).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, toHTTP(ErrVendorNotFound)
		}
		return nil, err
	}
	return &v, nil
}

// GET /api/vendors?search=
func ListVendorsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		dbq := database.DB.WithContext(c.UserContext()).Scopes(scope.OwnedVendors(userID))
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			dbq = dbq.Where("LOWER(vendors.name) LIKE ? OR LOWER(vendors.contact_name) LIKE ?", like, like)
		}

		var vendors []models.Vendor
		if err := dbq.Order("name asc").Find(&vendors).Error; err != nil {
			return httperr.Internal("Tedarikçiler listelenemedi", err)
		}
		return c.JSON(vendors)
	}
}

// GET /api/vendors/:id
func GetVendorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		v, err := findVendor(c, userID)
		if err != nil {
			return err
		}
		return c.JSON(v)
	}
}

// POST /api/vendors
func CreateVendorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body VendorRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		v := models.Vendor{CreatedByID: userID}
		body.apply(&v)
		if err := database.DB.WithContext(c.UserContext()).Create(&v).Error; err != nil {
			return httperr.Internal("Tedarikçi kaydedilemedi", err)
		}
		audit.Record(c, "vendor", v.ID, models.AuditActionCreate, "Tedarikçi eklendi: "+v.Name, nil, v)
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// PUT /api/vendors/:id
func UpdateVendorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		v, err := findVendor(c, userID)
		if err != nil {
			return err
		}
		before := *v

		var body VendorRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		body.apply(v)
		if err := database.DB.WithContext(c.UserContext()).Save(v).Error; err != nil {
			return httperr.Internal("Tedarikçi güncellenemedi", err)
		}
		audit.Record(c, "vendor", v.ID, models.AuditActionUpdate, "Tedarikçi güncellendi", before, v)
		return c.JSON(v)
	}
}

// DELETE /api/vendors/:id
func DeleteVendorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		v, err := findVendor(c, userID)
		if err != nil {
			return err
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Expense{}).Where("vendor_id = ?", v.ID).Update("vendor_id", nil).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Vendor{}, v.ID).Error
		})
		if err != nil {
			return httperr.Internal("Tedarikçi silinemedi", err)
		}
		audit.Record(c, "vendor", v.ID, models.AuditActionDelete, "Tedarikçi silindi: "+v.Name, v, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Expense CRUD
// -------------------------

// POST /api/expenses
func CreateExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body ExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		exp, err := Create(c.UserContext(), database.DB, userID, body.toModel())
		if err != nil {
			return toHTTP(err)
		}
		audit.Record(c, "expense", exp.ID, models.AuditActionCreate,
			fmt.Sprintf("Gider eklendi: %.2f", exp.Amount), nil, exp)

		resp, err := reload(c, userID, exp.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// GET /api/expenses?start_date=...&end_date=...&property_id=...&category_id=...
func ListExpensesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		base, order, err := filters(c, userID)
		if err != nil {
			return err
		}

		var rows []models.Expense
		if err := base().Preload("Property").Preload("Category").Preload("Vendor").
			Order(order).Order("expenses.id desc").Find(&rows).Error; err != nil {
			return httperr.Internal("Giderler listelenemedi", err)
		}

		today := models.Today()
		stats, err := ComputeStats(base, today)
		if err != nil {
			return httperr.Internal("Gider istatistikleri hesaplanamadı", err)
		}

		resp := ListResponse{Expenses: make([]ExpenseResponse, 0, len(rows)), Stats: *stats}
		for _, r := range rows {
			resp.Expenses = append(resp.Expenses, toResponse(r, today))
		}
		return c.JSON(resp)
	}
}

// GET /api/expenses/:id
func GetExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}
		resp, err := reload(c, userID, id)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// PUT /api/expenses/:id
func UpdateExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body ExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		next := body.toModel()
		next.ID = id
		after, before, err := Update(c.UserContext(), database.DB, userID, next)
		if err != nil {
			return toHTTP(err)
		}
		audit.Record(c, "expense", id, models.AuditActionUpdate, "Gider güncellendi", before, after)

		resp, err := reload(c, userID, id)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// DELETE /api/expenses/:id
func DeleteExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}
		deleted, err := Delete(c.UserContext(), database.DB, userID, id)
		if err != nil {
			return toHTTP(err)
		}
		audit.Record(c, "expense", id, models.AuditActionDelete,
			fmt.Sprintf("Gider silindi: %.2f", deleted.Amount), deleted, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Aylık gider özeti
// GET /api/expenses/summary/monthly?year=2025&month=12
// -------------------------
func MonthlyExpenseSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		q := filter.New(c)
		year := q.Int("year")
		month := q.Int("month")
		if err := q.Err(); err != nil {
			return err
		}
		today := models.Today()
		y, m := today.Year(), int(today.Month())
		if year != nil {
			y = *year
		}
		if month != nil {
			m = *month
		}
		if y < 2000 {
			return validation.Field("year", "year geçersiz")
		}
		if m < 1 || m > 12 {
			return validation.Field("month", "month 1-12 arasında olmalı")
		}

		sum, err := Monthly(c.UserContext(), database.DB, userID, y, time.Month(m))
		if err != nil {
			return httperr.Internal("Özet hesaplanamadı", err)
		}
		return c.JSON(sum)
	}
}

// GET /api/expenses/export (liste filtreleriyle aynı)
func ExportExpensesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		base, order, err := filters(c, userID)
		if err != nil {
			return err
		}

		var rows []models.Expense
		if err := base().Preload("Property").Preload("Category").Preload("Vendor").
			Order(order).Order("expenses.id desc").Find(&rows).Error; err != nil {
			return httperr.Internal("Giderler okunamadı", err)
		}

		table := export.Table{
			Title:   "Expenses",
			Headers: []string{"Date", "Property", "Category", "Vendor", "Description", "Amount", "Status"},
		}
		for _, e := range rows {
			r := toResponse(e, time.Time{})
			table.Rows = append(table.Rows, []string{
				r.Date, r.PropertyName, r.Category, r.Vendor, r.Description, export.Money(r.Amount), string(r.Status),
			})
		}
		return export.Send(c, table, format, "expenses."+string(format))
	}
}
