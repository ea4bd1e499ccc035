package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rental-backend/internal/audit"
	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/events"
	"rental-backend/internal/export"
	"rental-backend/internal/filter"
	"rental-backend/internal/httperr"
	"rental-backend/internal/models"
	"rental-backend/internal/notification"
	"rental-backend/internal/scope"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type PaymentRequest struct {
	PropertyID      uint    `json:"property_id" validate:"required"`
	TenantID        uint    `json:"tenant_id" validate:"required"`
	LeaseID         *uint   `json:"lease_id" validate:"omitempty,gt=0"`
	CategoryID      *uint   `json:"category_id" validate:"omitempty,gt=0"`
	Amount          float64 `json:"amount" validate:"gt=0,dec2"`
	DueDate         string  `json:"due_date" validate:"required,date"`
	PaymentDate     string  `json:"payment_date" validate:"omitempty,date"`
	Status          string  `json:"status" validate:"required,oneof=pending paid partial late declined refunded"`
	PaymentMethod   string  `json:"payment_method" validate:"omitempty,oneof=cash check bank_transfer credit_card online other"`
	ReferenceNumber string  `json:"reference_number" validate:"max=100"`
	Notes           string  `json:"notes"`
}

func (r PaymentRequest) toModel() models.Payment {
	due, _ := models.ParseDate(r.DueDate)
	paid, _ := models.ParseOptionalDate(r.PaymentDate)
	return models.Payment{
		PropertyID:      r.PropertyID,
		TenantID:        r.TenantID,
		LeaseID:         r.LeaseID,
		CategoryID:      r.CategoryID,
		Amount:          r.Amount,
		DueDate:         due,
		PaymentDate:     paid,
		Status:          models.PaymentStatus(r.Status),
		PaymentMethod:   models.PaymentMethod(r.PaymentMethod),
		ReferenceNumber: strings.TrimSpace(r.ReferenceNumber),
		Notes:           strings.TrimSpace(r.Notes),
	}
}

type MarkPaidRequest struct {
	PaymentDate     string `json:"payment_date" validate:"omitempty,date"`
	PaymentMethod   string `json:"payment_method" validate:"omitempty,oneof=cash check bank_transfer credit_card online other"`
	ReferenceNumber string `json:"reference_number" validate:"max=100"`
}

type LateFeeRequest struct {
	Amount      float64 `json:"amount" validate:"gt=0,dec2"`
	Reason      string  `json:"reason" validate:"max=255"`
	DateApplied string  `json:"date_applied" validate:"omitempty,date"`
}

type WaiveRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type RecurringRequest struct {
	PropertyIDs []uint `json:"property_ids" validate:"required,min=1"`
	DueDate     string `json:"due_date" validate:"required,date"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type LateFeeResponse struct {
	ID           uint    `json:"id"`
	Amount       float64 `json:"amount"`
	DateApplied  string  `json:"date_applied"`
	Reason       string  `json:"reason"`
	Waived       bool    `json:"waived"`
	WaivedByID   *uint   `json:"waived_by_id"`
	WaivedDate   *string `json:"waived_date"`
	WaivedReason string  `json:"waived_reason"`
}

func toLateFeeResponse(f models.LateFee) LateFeeResponse {
	return LateFeeResponse{
		ID:           f.ID,
		Amount:       f.Amount,
		DateApplied:  models.FormatDate(f.DateApplied),
		Reason:       f.Reason,
		Waived:       f.Waived,
		WaivedByID:   f.WaivedByID,
		WaivedDate:   models.FormatOptionalDate(f.WaivedDate),
		WaivedReason: f.WaivedReason,
	}
}

type PaymentResponse struct {
	ID              uint                 `json:"id"`
	PropertyID      uint                 `json:"property_id"`
	PropertyName    string               `json:"property_name"`
	TenantID        uint                 `json:"tenant_id"`
	TenantName      string               `json:"tenant_name"`
	LeaseID         *uint                `json:"lease_id"`
	CategoryID      *uint                `json:"category_id"`
	CategoryName    string               `json:"category_name"`
	Amount          float64              `json:"amount"`
	DueDate         string               `json:"due_date"`
	PaymentDate     *string              `json:"payment_date"`
	Status          models.PaymentStatus `json:"status"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	ReferenceNumber string               `json:"reference_number"`
	Notes           string               `json:"notes"`
	IsOverdue       bool                 `json:"is_overdue"`
	DaysOverdue     int                  `json:"days_overdue"`
	TotalWithFees   float64              `json:"total_with_fees"`
	LateFees        []LateFeeResponse    `json:"late_fees"`
}

func ToResponse(p models.Payment, today time.Time) PaymentResponse {
	r := PaymentResponse{
		ID:              p.ID,
		PropertyID:      p.PropertyID,
		PropertyName:    p.Property.Name,
		TenantID:        p.TenantID,
		TenantName:      p.Tenant.FullName(),
		LeaseID:         p.LeaseID,
		CategoryID:      p.CategoryID,
		Amount:          p.Amount,
		DueDate:         models.FormatDate(p.DueDate),
		PaymentDate:     models.FormatOptionalDate(p.PaymentDate),
		Status:          p.Status,
		PaymentMethod:   p.PaymentMethod,
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		IsOverdue:       p.IsOverdueAt(today),
		DaysOverdue:     p.DaysOverdueAt(today),
		TotalWithFees:   p.TotalWithFees(),
		LateFees:        make([]LateFeeResponse, 0, len(p.LateFees)),
	}
	if p.Category != nil {
		r.CategoryName = p.Category.Name
	}
	for _, f := range p.LateFees {
		r.LateFees = append(r.LateFees, toLateFeeResponse(f))
	}
	return r
}

type ListResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Stats    Stats             `json:"stats"`
}

type RecurringResponse struct {
	Created  int               `json:"created"`
	Skipped  int               `json:"skipped"`
	Payments []PaymentResponse `json:"payments"`
}

// -------------------------
// Helpers
// -------------------------

func toHTTP(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Ödeme bulunamadı")
	case errors.Is(err, ErrLateFeeNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Gecikme bedeli bulunamadı")
	case errors.Is(err, ErrAlreadyPaid):
		return fiber.NewError(fiber.StatusConflict, "Ödeme zaten ödenmiş")
	case errors.Is(err, ErrAlreadyWaived):
		return fiber.NewError(fiber.StatusConflict, "Gecikme bedeli zaten affedilmiş")
	case errors.Is(err, ErrNoPropertyChosen):
		return validation.Field("property_ids", "En az bir mülk seçilmeli")
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

func reload(c *fiber.Ctx, ownerID, id uint) (PaymentResponse, error) {
	p, err := Get(c.UserContext(), database.DB, ownerID, id)
	if err != nil {
		return PaymentResponse{}, toHTTP(err)
	}
	return ToResponse(*p, models.Today()), nil
}

func listQuery(c *fiber.Ctx, ownerID uint) (*gorm.DB, error) {
	q := filter.New(c)
	dbq := database.DB.WithContext(c.UserContext()).Model(&models.Payment{}).
		Scopes(scope.ThroughProperty("payments", ownerID))

	if v := q.Date("start_date"); v != nil {
		dbq = dbq.Where("payments.due_date >= ?", *v)
	}
	if v := q.Date("end_date"); v != nil {
		dbq = dbq.Where("payments.due_date <= ?", *v)
	}
	if v := q.Uint("property_id"); v != nil {
		dbq = dbq.Where("payments.property_id = ?", *v)
	}
	if v := q.Uint("tenant_id"); v != nil {
		dbq = dbq.Where("payments.tenant_id = ?", *v)
	}
	if v := q.Uint("category_id"); v != nil {
		dbq = dbq.Where("payments.category_id = ?", *v)
	}
	if v := q.Float("min_amount"); v != nil {
		dbq = dbq.Where("payments.amount >= ?", *v)
	}
	if v := q.Float("max_amount"); v != nil {
		dbq = dbq.Where("payments.amount <= ?", *v)
	}
	if v := q.String("status"); v != "" {
		dbq = dbq.Where("payments.status = ?", v)
	}
	if v := q.Bool("overdue"); v != nil && *v {
		dbq = dbq.Where("payments.status = ? AND payments.due_date < ?", models.PaymentStatusPending, models.Today())
	}
	order := q.Sort("sort", map[string]string{
		"due_date":     "payments.due_date",
		"payment_date": "payments.payment_date",
		"amount":       "payments.amount",
		"status":       "payments.status",
	}, "payments.due_date desc")

	if err := q.Err(); err != nil {
		return nil, err
	}
	return dbq.Order(order).Order("payments.id desc"), nil
}

// -------------------------
// Payment CRUD
// -------------------------

// GET /api/payments
func ListPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		dbq, err := listQuery(c, userID)
		if err != nil {
			return err
		}

		var payments []models.Payment
		if err := dbq.Preload("Property").Preload("Tenant").Preload("Category").Preload("LateFees").
			Find(&payments).Error; err != nil {
			return httperr.Internal("Ödemeler listelenemedi", err)
		}

		today := models.Today()
		stats, err := ComputeStats(c.UserContext(), database.DB, userID, today)
		if err != nil {
			return httperr.Internal("Ödeme istatistikleri hesaplanamadı", err)
		}

		resp := ListResponse{Payments: make([]PaymentResponse, 0, len(payments)), Stats: *stats}
		for _, p := range payments {
			resp.Payments = append(resp.Payments, ToResponse(p, today))
		}
		return c.JSON(resp)
	}
}

// GET /api/payments/:id
func GetPaymentHandler() fiber.Handler {
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

// POST /api/payments
func CreatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body PaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		res, err := Create(c.UserContext(), database.DB, userID, body.toModel())
		if err != nil {
			return toHTTP(err)
		}
		notification.Publish(c.UserContext(), res.Notifications...)
		audit.Record(c, "payment", res.Payment.ID, models.AuditActionCreate,
			fmt.Sprintf("Ödeme eklendi: %.2f", res.Payment.Amount), nil, res.Payment)

		resp, err := reload(c, userID, res.Payment.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/payments/:id
func UpdatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body PaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		next := body.toModel()
		next.ID = id
		res, before, err := Update(c.UserContext(), database.DB, userID, next, models.Today())
		if err != nil {
			return toHTTP(err)
		}
		notification.Publish(c.UserContext(), res.Notifications...)
		audit.Record(c, "payment", id, models.AuditActionUpdate, "Ödeme güncellendi", before, res.Payment)

		resp, err := reload(c, userID, id)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// DELETE /api/payments/:id
func DeletePaymentHandler() fiber.Handler {
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
		audit.Record(c, "payment", id, models.AuditActionDelete, "Ödeme silindi", deleted, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Actions
// -------------------------

// POST /api/payments/:id/mark-paid
func MarkPaidHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body MarkPaidRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
			}
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		date, _ := models.ParseOptionalDate(body.PaymentDate)

		res, err := MarkPaid(c.UserContext(), database.DB, userID, id, MarkPaidInput{
			PaymentDate:     date,
			Method:          models.PaymentMethod(body.PaymentMethod),
			ReferenceNumber: strings.TrimSpace(body.ReferenceNumber),
		}, models.Today())
		if err != nil {
			return toHTTP(err)
		}
		notification.Publish(c.UserContext(), res.Notifications...)
		audit.Record(c, "payment", id, models.AuditActionUpdate, "Ödeme ödendi olarak işaretlendi",
			map[string]any{"status": models.PaymentStatusPending}, map[string]any{"status": res.Payment.Status, "payment_date": res.Payment.PaymentDate})

		resp, err := reload(c, userID, id)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// POST /api/payments/:id/late-fees
func AddLateFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body LateFeeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		date, _ := models.ParseOptionalDate(body.DateApplied)

		fee, err := AddLateFee(c.UserContext(), database.DB, userID, id, body.Amount, strings.TrimSpace(body.Reason), date, models.Today())
		if err != nil {
			return toHTTP(err)
		}
		audit.Record(c, "late_fee", fee.ID, models.AuditActionCreate,
			fmt.Sprintf("Gecikme bedeli eklendi: %.2f", fee.Amount), nil, toLateFeeResponse(*fee))
		return c.Status(fiber.StatusCreated).JSON(toLateFeeResponse(*fee))
	}
}

// POST /api/late-fees/:id/waive
func WaiveLateFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body WaiveRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
			}
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		fee, err := WaiveLateFee(c.UserContext(), database.DB, userID, id, strings.TrimSpace(body.Reason), models.Today())
		if err != nil {
			return toHTTP(err)
		}
		audit.Record(c, "late_fee", fee.ID, models.AuditActionUpdate, "Gecikme bedeli affedildi",
			map[string]bool{"waived": false}, toLateFeeResponse(*fee))
		return c.JSON(toLateFeeResponse(*fee))
	}
}

// POST /api/payments/recurring
func CreateRecurringHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body RecurringRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		due, _ := models.ParseDate(body.DueDate)

		res, err := CreateRecurring(c.UserContext(), database.DB, userID, body.PropertyIDs, due, models.Today())
		if err != nil {
			return toHTTP(err)
		}
		notification.Publish(c.UserContext(), res.Notifications...)
		if len(res.Created) > 0 {
			events.Publish(c.UserContext(), events.Event{
				Type:       events.TypePaymentsGenerated,
				UserID:     userID,
				EntityType: "payment",
				Payload: map[string]any{
					"created":  len(res.Created),
					"skipped":  res.Skipped,
					"due_date": models.FormatDate(due),
				},
			})
		}
		audit.Record(c, "payment", 0, models.AuditActionCreate,
			fmt.Sprintf("Kira ödemeleri oluşturuldu: %d yeni, %d atlandı", len(res.Created), res.Skipped), nil, body)

		resp := RecurringResponse{Created: len(res.Created), Skipped: res.Skipped, Payments: make([]PaymentResponse, 0, len(res.Created))}
		today := models.Today()
		for _, p := range res.Created {
			resp.Payments = append(resp.Payments, ToResponse(p, today))
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// GET /api/payments/export (liste filtreleriyle aynı)
func ExportPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		dbq, err := listQuery(c, userID)
		if err != nil {
			return err
		}

		var payments []models.Payment
		if err := dbq.Preload("Property").Preload("Tenant").Preload("Category").Find(&payments).Error; err != nil {
			return httperr.Internal("Ödemeler okunamadı", err)
		}

		table := export.Table{
			Title: "Payments",
			Headers: []string{"Property", "Tenant", "Category", "Amount", "Due Date", "Payment Date",
				"Status", "Payment Method", "Reference Number"},
		}
		for _, p := range payments {
			category, paidOn := "", ""
			if p.Category != nil {
				category = p.Category.Name
			}
			if p.PaymentDate != nil {
				paidOn = models.FormatDate(*p.PaymentDate)
			}
			table.Rows = append(table.Rows, []string{
				p.Property.Name, p.Tenant.FullName(), category, export.Money(p.Amount),
				models.FormatDate(p.DueDate), paidOn, string(p.Status), string(p.PaymentMethod), p.ReferenceNumber,
			})
		}
		return export.Send(c, table, format, "payments."+string(format))
	}
}

// -------------------------
// Categories
// -------------------------

// GET /api/payment-categories
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cats []models.PaymentCategory
		if err := database.DB.WithContext(c.UserContext()).Order("name").Find(&cats).Error; err != nil {
			return httperr.Internal("Kategoriler listelenemedi", err)
		}
		return c.JSON(cats)
	}
}

// POST /api/payment-categories
func CreateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		body.Name = strings.TrimSpace(body.Name)
		if err := validation.Struct(body); err != nil {
			return err
		}

		var count int64
		database.DB.WithContext(c.UserContext()).Model(&models.PaymentCategory{}).Where("LOWER(name) = ?", strings.ToLower(body.Name)).Count(&count)
		if count > 0 {
			return validation.Field("name", "bu isimde bir kategori zaten var")
		}

		cat := models.PaymentCategory{Name: body.Name, Description: strings.TrimSpace(body.Description)}
		if err := database.DB.WithContext(c.UserContext()).Create(&cat).Error; err != nil {
			return httperr.Internal("Kategori kaydedilemedi", err)
		}
		audit.Record(c, "payment_category", cat.ID, models.AuditActionCreate, "Ödeme kategorisi eklendi: "+cat.Name, nil, cat)
		return c.Status(fiber.StatusCreated).JSON(cat)
	}
}
