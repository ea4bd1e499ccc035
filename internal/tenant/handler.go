package tenant

import (
	"errors"
	"fmt"
	"strings"

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
	"gorm.io/gorm/clause"
)

// TenantRequest oluşturma ve güncelleme için aynı form
type TenantRequest struct {
	FirstName             string   `json:"first_name" validate:"required,max=100"`
	LastName              string   `json:"last_name" validate:"required,max=100"`
	Email                 string   `json:"email" validate:"required,email,max=150"`
	Phone                 string   `json:"phone" validate:"omitempty,phone10"`
	DateOfBirth           string   `json:"date_of_birth" validate:"omitempty,date"`
	SSNLastFour           string   `json:"ssn_last_four" validate:"omitempty,ssn4"`
	EmergencyContactName  string   `json:"emergency_contact_name" validate:"max=150"`
	EmergencyContactPhone string   `json:"emergency_contact_phone" validate:"omitempty,phone10"`
	EmployerName          string   `json:"employer_name" validate:"max=150"`
	MonthlyIncome         *float64 `json:"monthly_income" validate:"omitempty,gte=0,dec2"`
	Notes                 string   `json:"notes"`
}

func (r *TenantRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.SSNLastFour = strings.TrimSpace(r.SSNLastFour)
}

// apply doğrulanmış formu modele yazar; telefonlar sadece rakam olarak saklanır
func (r TenantRequest) apply(t *models.Tenant) {
	dob, _ := models.ParseOptionalDate(r.DateOfBirth)
	t.FirstName = r.FirstName
	t.LastName = r.LastName
	t.Email = r.Email
	t.Phone = validation.DigitsOnly(r.Phone)
	t.DateOfBirth = dob
	t.SSNLastFour = r.SSNLastFour
	t.EmergencyContactName = strings.TrimSpace(r.EmergencyContactName)
	t.EmergencyContactPhone = validation.DigitsOnly(r.EmergencyContactPhone)
	t.EmployerName = strings.TrimSpace(r.EmployerName)
	t.MonthlyIncome = r.MonthlyIncome
	t.Notes = strings.TrimSpace(r.Notes)
}

type TenantResponse struct {
	ID                    uint     `json:"id"`
	FirstName             string   `json:"first_name"`
	LastName              string   `json:"last_name"`
	FullName              string   `json:"full_name"`
	Email                 string   `json:"email"`
	Phone                 string   `json:"phone"`
	DateOfBirth           *string  `json:"date_of_birth"`
	SSNLastFour           string   `json:"ssn_last_four"`
	EmergencyContactName  string   `json:"emergency_contact_name"`
	EmergencyContactPhone string   `json:"emergency_contact_phone"`
	EmployerName          string   `json:"employer_name"`
	MonthlyIncome         *float64 `json:"monthly_income"`
	Notes                 string   `json:"notes"`
	CurrentPropertyID     *uint    `json:"current_property_id"`
	CurrentPropertyName   string   `json:"current_property_name"`
	CreatedAt             string   `json:"created_at"`
}

func toResponse(t models.Tenant, current *models.Lease) TenantResponse {
	r := TenantResponse{
		ID:                    t.ID,
		FirstName:             t.FirstName,
		LastName:              t.LastName,
		FullName:              t.FullName(),
		Email:                 t.Email,
		Phone:                 t.Phone,
		DateOfBirth:           models.FormatOptionalDate(t.DateOfBirth),
		SSNLastFour:           t.SSNLastFour,
		EmergencyContactName:  t.EmergencyContactName,
		EmergencyContactPhone: t.EmergencyContactPhone,
		EmployerName:          t.EmployerName,
		MonthlyIncome:         t.MonthlyIncome,
		Notes:                 t.Notes,
		CreatedAt:             t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if current != nil {
		pid := current.PropertyID
		r.CurrentPropertyID = &pid
		r.CurrentPropertyName = current.Property.Name
	}
	return r
}

type LeaseHistoryItem struct {
	ID           uint               `json:"id"`
	PropertyID   uint               `json:"property_id"`
	PropertyName string             `json:"property_name"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	RentAmount   float64            `json:"rent_amount"`
	Status       models.LeaseStatus `json:"status"`
}

type PaymentHistoryItem struct {
	ID           uint                 `json:"id"`
	PropertyName string               `json:"property_name"`
	Amount       float64              `json:"amount"`
	DueDate      string               `json:"due_date"`
	PaymentDate  *string              `json:"payment_date"`
	Status       models.PaymentStatus `json:"status"`
	IsOverdue    bool                 `json:"is_overdue"`
}

type DetailResponse struct {
	Tenant       TenantResponse       `json:"tenant"`
	CurrentLease *LeaseHistoryItem    `json:"current_lease"`
	Leases       []LeaseHistoryItem   `json:"leases"`
	Payments     []PaymentHistoryItem `json:"payments"`
	TotalPaid    float64              `json:"total_paid"`
	TotalPending float64              `json:"total_pending"`
	LatePayments int                  `json:"late_payments"`
}

func leaseItem(l models.Lease) LeaseHistoryItem {
	return LeaseHistoryItem{
		ID:           l.ID,
		PropertyID:   l.PropertyID,
		PropertyName: l.Property.Name,
		StartDate:    models.FormatDate(l.StartDate),
		EndDate:      models.FormatDate(l.EndDate),
		RentAmount:   l.RentAmount,
		Status:       l.Status,
	}
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz id")
	}
	return uint(id), nil
}

func notFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Kiracı bulunamadı")
	}
	return httperr.Internal("Kiracı okunamadı", err)
}

func listQuery(c *fiber.Ctx, ownerID uint) (*gorm.DB, error) {
	q := filter.New(c)
	dbq := database.DB.WithContext(c.UserContext()).Model(&models.Tenant{}).Scopes(scope.VisibleTenants(ownerID))

	if v := q.String("search"); v != "" {
		like := "%" + strings.ToLower(v) + "%"
		dbq = dbq.Where("(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?)",
			like, like, like, "%"+v+"%")
	}
	if v := q.Uint("property_id"); v != nil {
		dbq = dbq.Where("tenants.id IN (SELECT tenant_id FROM leases WHERE property_id = ?)", *v)
	}
	if v := q.Bool("has_active_lease"); v != nil {
		dbq = dbq.Scopes(WithActiveLease(models.Today(), *v))
	}
	order := q.Sort("sort", map[string]string{
		"first_name": "first_name",
		"last_name":  "last_name",
		"email":      "email",
		"created_at": "created_at",
	}, "last_name asc")

	if err := q.Err(); err != nil {
		return nil, err
	}
	return dbq.Order(order).Order("id"), nil
}

func withCurrent(c *fiber.Ctx, ownerID uint, tenants []models.Tenant) ([]TenantResponse, map[uint]models.Lease, error) {
	ids := make([]uint, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	current, err := CurrentLeases(c.UserContext(), database.DB, ownerID, ids, models.Today())
	if err != nil {
		return nil, nil, err
	}
	resp := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		var cur *models.Lease
		if l, ok := current[t.ID]; ok {
			cur = &l
		}
		resp = append(resp, toResponse(t, cur))
	}
	return resp, current, nil
}

// GET /api/tenants?search=&property_id=&has_active_lease=yes&sort=
func ListTenantsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		dbq, err := listQuery(c, userID)
		if err != nil {
			return err
		}

		var tenants []models.Tenant
		if err := dbq.Find(&tenants).Error; err != nil {
			return httperr.Internal("Kiracılar listelenemedi", err)
		}
		resp, _, err := withCurrent(c, userID, tenants)
		if err != nil {
			return httperr.Internal("Güncel sözleşmeler okunamadı", err)
		}
		return c.JSON(resp)
	}
}

// GET /api/tenants/:id
func GetTenantHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		today := models.Today()
		d, err := LoadDetail(c.UserContext(), database.DB, userID, id, today)
		if err != nil {
			return notFound(err)
		}

		resp := DetailResponse{
			Tenant:       toResponse(d.Tenant, d.CurrentLease),
			Leases:       make([]LeaseHistoryItem, 0, len(d.Leases)),
			Payments:     make([]PaymentHistoryItem, 0, len(d.Payments)),
			TotalPaid:    d.TotalPaid,
			TotalPending: d.TotalPending,
			LatePayments: d.LatePayments,
		}
		if d.CurrentLease != nil {
			item := leaseItem(*d.CurrentLease)
			resp.CurrentLease = &item
		}
		for _, l := range d.Leases {
			resp.Leases = append(resp.Leases, leaseItem(l))
		}
		for _, p := range d.Payments {
			resp.Payments = append(resp.Payments, PaymentHistoryItem{
				ID:           p.ID,
				PropertyName: p.Property.Name,
				Amount:       p.Amount,
				DueDate:      models.FormatDate(p.DueDate),
				PaymentDate:  models.FormatOptionalDate(p.PaymentDate),
				Status:       p.Status,
				IsOverdue:    p.IsOverdueAt(today),
			})
		}
		return c.JSON(resp)
	}
}

// POST /api/tenants
func CreateTenantHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body TenantRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		body.normalize()
		if err := validation.Struct(body); err != nil {
			return err
		}

		t := models.Tenant{CreatedByID: userID}
		body.apply(&t)
		if err := database.DB.WithContext(c.UserContext()).Omit(clause.Associations).Create(&t).Error; err != nil {
			return httperr.Internal("Kiracı kaydedilemedi", err)
		}

		resp := toResponse(t, nil)
		audit.Record(c, "tenant", t.ID, models.AuditActionCreate, fmt.Sprintf("Kiracı eklendi: %s", t.FullName()), nil, resp)
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/tenants/:id
func UpdateTenantHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		t, err := Get(c.UserContext(), database.DB, userID, id)
		if err != nil {
			return notFound(err)
		}

		var body TenantRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		body.normalize()
		if err := validation.Struct(body); err != nil {
			return err
		}

		before := toResponse(*t, nil)
		body.apply(t)
		if err := database.DB.WithContext(c.UserContext()).Omit(clause.Associations).Save(t).Error; err != nil {
			return httperr.Internal("Kiracı güncellenemedi", err)
		}

		after := toResponse(*t, nil)
		audit.Record(c, "tenant", t.ID, models.AuditActionUpdate, fmt.Sprintf("Kiracı güncellendi: %s", t.FullName()), before, after)
		return c.JSON(after)
	}
}

// DELETE /api/tenants/:id
func DeleteTenantHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		t, err := Get(c.UserContext(), database.DB, userID, id)
		if err != nil {
			return notFound(err)
		}
		if err := database.DB.WithContext(c.UserContext()).Delete(&models.Tenant{}, t.ID).Error; err != nil {
			return httperr.Internal("Kiracı silinemedi", err)
		}

		audit.Record(c, "tenant", t.ID, models.AuditActionDelete, fmt.Sprintf("Kiracı silindi: %s", t.FullName()), toResponse(*t, nil), nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/tenants/export (liste filtreleriyle aynı)
func ExportTenantsHandler() fiber.Handler {
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

		var tenants []models.Tenant
		if err := dbq.Find(&tenants).Error; err != nil {
			return httperr.Internal("Kiracılar okunamadı", err)
		}
		_, current, err := withCurrent(c, userID, tenants)
		if err != nil {
			return httperr.Internal("Güncel sözleşmeler okunamadı", err)
		}

		table := export.Table{
			Title: "Tenants",
			Headers: []string{"First Name", "Last Name", "Email", "Phone", "Date of Birth",
				"Emergency Contact", "Emergency Phone", "Current Lease", "Current Property"},
		}
		for _, t := range tenants {
			dob := ""
			if t.DateOfBirth != nil {
				dob = models.FormatDate(*t.DateOfBirth)
			}
			leaseCol, propCol := "", ""
			if l, ok := current[t.ID]; ok {
				leaseCol = models.FormatDate(l.StartDate) + " - " + models.FormatDate(l.EndDate)
				propCol = l.Property.Name
			}
			table.Rows = append(table.Rows, []string{
				t.FirstName, t.LastName, t.Email, t.Phone, dob,
				t.EmergencyContactName, t.EmergencyContactPhone, leaseCol, propCol,
			})
		}
		return export.Send(c, table, format, "tenants."+string(format))
	}
}
