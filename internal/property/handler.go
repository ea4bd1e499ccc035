package property

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rental-backend/internal/audit"
	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/filter"
	"rental-backend/internal/httperr"
	"rental-backend/internal/models"
	"rental-backend/internal/scope"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm/clause"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreatePropertyRequest struct {
	Name             string   `json:"name" validate:"required,max=200"`
	PropertyType     string   `json:"property_type" validate:"required,oneof=house apartment condo townhouse commercial other"`
	Address          string   `json:"address" validate:"required,max=255"`
	City             string   `json:"city" validate:"required,max=100"`
	State            string   `json:"state" validate:"max=100"`
	ZipCode          string   `json:"zip_code" validate:"max=20"`
	Country          string   `json:"country" validate:"max=100"`
	Bedrooms         int      `json:"bedrooms" validate:"gte=0"`
	Bathrooms        float64  `json:"bathrooms" validate:"gte=0"`
	SquareFeet       *int     `json:"square_feet" validate:"omitempty,gt=0"`
	MonthlyRent      float64  `json:"monthly_rent" validate:"gte=0,dec2"`
	SecurityDeposit  float64  `json:"security_deposit" validate:"gte=0,dec2"`
	Status           string   `json:"status" validate:"omitempty,oneof=available rented maintenance not_available"`
	AcquisitionPrice *float64 `json:"acquisition_price" validate:"omitempty,gte=0,dec2"`
	AcquisitionDate  string   `json:"acquisition_date" validate:"omitempty,date"`
	CurrentValue     *float64 `json:"current_value" validate:"omitempty,gte=0,dec2"`
	Notes            string   `json:"notes"`
}

type UpdatePropertyRequest struct {
	Name             *string  `json:"name" validate:"omitempty,max=200"`
	PropertyType     *string  `json:"property_type" validate:"omitempty,oneof=house apartment condo townhouse commercial other"`
	Address          *string  `json:"address" validate:"omitempty,max=255"`
	City             *string  `json:"city" validate:"omitempty,max=100"`
	State            *string  `json:"state" validate:"omitempty,max=100"`
	ZipCode          *string  `json:"zip_code" validate:"omitempty,max=20"`
	Country          *string  `json:"country" validate:"omitempty,max=100"`
	Bedrooms         *int     `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms        *float64 `json:"bathrooms" validate:"omitempty,gte=0"`
	SquareFeet       *int     `json:"square_feet" validate:"omitempty,gt=0"`
	MonthlyRent      *float64 `json:"monthly_rent" validate:"omitempty,gte=0,dec2"`
	SecurityDeposit  *float64 `json:"security_deposit" validate:"omitempty,gte=0,dec2"`
	Status           *string  `json:"status" validate:"omitempty,oneof=available rented maintenance not_available"`
	AcquisitionPrice *float64 `json:"acquisition_price" validate:"omitempty,gte=0,dec2"`
	AcquisitionDate  *string  `json:"acquisition_date" validate:"omitempty,date"`
	CurrentValue     *float64 `json:"current_value" validate:"omitempty,gte=0,dec2"`
	Notes            *string  `json:"notes"`
}

type PropertyResponse struct {
	ID               uint                  `json:"id"`
	Name             string                `json:"name"`
	PropertyType     models.PropertyType   `json:"property_type"`
	Address          string                `json:"address"`
	City             string                `json:"city"`
	State            string                `json:"state"`
	ZipCode          string                `json:"zip_code"`
	Country          string                `json:"country"`
	Bedrooms         int                   `json:"bedrooms"`
	Bathrooms        float64               `json:"bathrooms"`
	SquareFeet       *int                  `json:"square_feet"`
	MonthlyRent      float64               `json:"monthly_rent"`
	SecurityDeposit  float64               `json:"security_deposit"`
	Status           models.PropertyStatus `json:"status"`
	AcquisitionPrice *float64              `json:"acquisition_price"`
	AcquisitionDate  *string               `json:"acquisition_date"`
	CurrentValue     *float64              `json:"current_value"`
	Notes            string                `json:"notes"`
	CreatedAt        string                `json:"created_at"`
	UpdatedAt        string                `json:"updated_at"`
}

func toResponse(p models.Property) PropertyResponse {
	return PropertyResponse{
		ID:               p.ID,
		Name:             p.Name,
		PropertyType:     p.PropertyType,
		Address:          p.Address,
		City:             p.City,
		State:            p.State,
		ZipCode:          p.ZipCode,
		Country:          p.Country,
		Bedrooms:         p.Bedrooms,
		Bathrooms:        p.Bathrooms,
		SquareFeet:       p.SquareFeet,
		MonthlyRent:      p.MonthlyRent,
		SecurityDeposit:  p.SecurityDeposit,
		Status:           p.Status,
		AcquisitionPrice: p.AcquisitionPrice,
		AcquisitionDate:  models.FormatOptionalDate(p.AcquisitionDate),
		CurrentValue:     p.CurrentValue,
		Notes:            p.Notes,
		CreatedAt:        p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type ListResponse struct {
	Properties []PropertyResponse `json:"properties"`
	Stats      Stats              `json:"stats"`
}

type LeaseSummary struct {
	ID         uint    `json:"id"`
	TenantID   uint    `json:"tenant_id"`
	TenantName string  `json:"tenant_name"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	RentAmount float64 `json:"rent_amount"`
}

type PaymentSummary struct {
	ID          uint                 `json:"id"`
	TenantName  string               `json:"tenant_name"`
	Amount      float64              `json:"amount"`
	DueDate     string               `json:"due_date"`
	PaymentDate *string              `json:"payment_date"`
	Status      models.PaymentStatus `json:"status"`
}

type ExpenseSummary struct {
	ID          uint                 `json:"id"`
	Date        string               `json:"date"`
	Description string               `json:"description"`
	Amount      float64              `json:"amount"`
	Status      models.ExpenseStatus `json:"status"`
}

type DetailResponse struct {
	Property       PropertyResponse `json:"property"`
	CurrentLease   *LeaseSummary    `json:"current_lease"`
	YearlyIncome   float64          `json:"yearly_income"`
	YearlyExpenses float64          `json:"yearly_expenses"`
	YearlyProfit   float64          `json:"yearly_profit"`
	RecentPayments []PaymentSummary `json:"recent_payments"`
	RecentExpenses []ExpenseSummary `json:"recent_expenses"`
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz id")
	}
	return uint(id), nil
}

func parseOptionalDate(field string, s string) (*time.Time, error) {
	d, err := models.ParseOptionalDate(s)
	if err != nil {
		return nil, validation.Field(field, "tarih YYYY-MM-DD formatında olmalı")
	}
	return d, nil
}

// -------------------------
// Property CRUD
// -------------------------

// POST /api/properties
func CreatePropertyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body CreatePropertyRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		body.Name = strings.TrimSpace(body.Name)
		body.Address = strings.TrimSpace(body.Address)
		body.City = strings.TrimSpace(body.City)
		if err := validation.Struct(body); err != nil {
			return err
		}
		acquired, err := parseOptionalDate("acquisition_date", body.AcquisitionDate)
		if err != nil {
			return err
		}

		status := models.PropertyStatus(body.Status)
		if status == "" {
			status = models.PropertyStatusAvailable
		}

		property := models.Property{
			OwnerID:          userID,
			Name:             body.Name,
			PropertyType:     models.PropertyType(body.PropertyType),
			Address:          body.Address,
			City:             body.City,
			State:            strings.TrimSpace(body.State),
			ZipCode:          strings.TrimSpace(body.ZipCode),
			Country:          strings.TrimSpace(body.Country),
			Bedrooms:         body.Bedrooms,
			Bathrooms:        body.Bathrooms,
			SquareFeet:       body.SquareFeet,
			MonthlyRent:      body.MonthlyRent,
			SecurityDeposit:  body.SecurityDeposit,
			Status:           status,
			AcquisitionPrice: body.AcquisitionPrice,
			AcquisitionDate:  acquired,
			CurrentValue:     body.CurrentValue,
			Notes:            strings.TrimSpace(body.Notes),
		}

		if err := database.DB.WithContext(c.UserContext()).Omit(clause.Associations).Create(&property).Error; err != nil {
			return httperr.Internal("Mülk kaydedilemedi", err)
		}

		audit.Record(c, "property", property.ID, models.AuditActionCreate,
			fmt.Sprintf("Mülk eklendi: %s - %.2f aylık", property.Name, property.MonthlyRent), nil, toResponse(property))

		return c.Status(fiber.StatusCreated).JSON(toResponse(property))
	}
}

// GET /api/properties?status=&property_type=&city=&bedrooms=&search=&sort=
func ListPropertiesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		q := filter.New(c)
		dbq := database.DB.WithContext(c.UserContext()).Scopes(scope.OwnedProperties(userID))

		if v := q.String("status"); v != "" {
			dbq = dbq.Where("status = ?", v)
		}
		if v := q.String("property_type"); v != "" {
			dbq = dbq.Where("property_type = ?", v)
		}
		if v := q.String("city"); v != "" {
			dbq = dbq.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(v)+"%")
		}
		if v := q.Int("bedrooms"); v != nil {
			// 4 ve üzeri tek seçenek
			if *v >= 4 {
				dbq = dbq.Where("bedrooms >= ?", 4)
			} else {
				dbq = dbq.Where("bedrooms = ?", *v)
			}
		}
		if v := q.String("search"); v != "" {
			like := "%" + strings.ToLower(v) + "%"
			dbq = dbq.Where("(LOWER(name) LIKE ? OR LOWER(address) LIKE ?)", like, like)
		}
		order := q.Sort("sort", map[string]string{
			"name":         "name",
			"city":         "city",
			"monthly_rent": "monthly_rent",
			"bedrooms":     "bedrooms",
			"created_at":   "created_at",
		}, "created_at desc")
		if err := q.Err(); err != nil {
			return err
		}

		var properties []models.Property
		if err := dbq.Order(order).Order("id desc").Find(&properties).Error; err != nil {
			return httperr.Internal("Mülkler listelenemedi", err)
		}

		stats, err := ComputeStats(c.UserContext(), database.DB, userID)
		if err != nil {
			return httperr.Internal("Mülk istatistikleri hesaplanamadı", err)
		}

		resp := ListResponse{Properties: make([]PropertyResponse, 0, len(properties)), Stats: *stats}
		for _, p := range properties {
			resp.Properties = append(resp.Properties, toResponse(p))
		}
		return c.JSON(resp)
	}
}

// GET /api/properties/:id
func GetPropertyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		d, err := LoadDetail(c.UserContext(), database.DB, userID, id, models.Today())
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Mülk bulunamadı")
		}
		if err != nil {
			return httperr.Internal("Mülk detayı okunamadı", err)
		}

		resp := DetailResponse{
			Property:       toResponse(d.Property),
			YearlyIncome:   d.YearlyIncome,
			YearlyExpenses: d.YearlyExpenses,
			YearlyProfit:   d.YearlyIncome - d.YearlyExpenses,
			RecentPayments: make([]PaymentSummary, 0, len(d.RecentPayments)),
			RecentExpenses: make([]ExpenseSummary, 0, len(d.RecentExpenses)),
		}
		if l := d.CurrentLease; l != nil {
			resp.CurrentLease = &LeaseSummary{
				ID:         l.ID,
				TenantID:   l.TenantID,
				TenantName: l.Tenant.FullName(),
				StartDate:  models.FormatDate(l.StartDate),
				EndDate:    models.FormatDate(l.EndDate),
				RentAmount: l.RentAmount,
			}
		}
		for _, p := range d.RecentPayments {
			resp.RecentPayments = append(resp.RecentPayments, PaymentSummary{
				ID:          p.ID,
				TenantName:  p.Tenant.FullName(),
				Amount:      p.Amount,
				DueDate:     models.FormatDate(p.DueDate),
				PaymentDate: models.FormatOptionalDate(p.PaymentDate),
				Status:      p.Status,
			})
		}
		for _, e := range d.RecentExpenses {
			resp.RecentExpenses = append(resp.RecentExpenses, ExpenseSummary{
				ID:          e.ID,
				Date:        models.FormatDate(e.Date),
				Description: e.Description,
				Amount:      e.Amount,
				Status:      e.Status,
			})
		}
		return c.JSON(resp)
	}
}

// PUT /api/properties/:id
func UpdatePropertyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		property, err := Get(c.UserContext(), database.DB, userID, id)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Mülk bulunamadı")
		}
		if err != nil {
			return httperr.Internal("Mülk okunamadı", err)
		}

		var body UpdatePropertyRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		before := toResponse(*property)
		verr := validation.NewError()

		if body.Name != nil {
			if name := strings.TrimSpace(*body.Name); name == "" {
				verr.Add("name", "zorunlu alan")
			} else {
				property.Name = name
			}
		}
		if body.Address != nil {
			if addr := strings.TrimSpace(*body.Address); addr == "" {
				verr.Add("address", "zorunlu alan")
			} else {
				property.Address = addr
			}
		}
		if body.City != nil {
			if city := strings.TrimSpace(*body.City); city == "" {
				verr.Add("city", "zorunlu alan")
			} else {
				property.City = city
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		if body.PropertyType != nil {
			property.PropertyType = models.PropertyType(*body.PropertyType)
		}
		if body.State != nil {
			property.State = strings.TrimSpace(*body.State)
		}
		if body.ZipCode != nil {
			property.ZipCode = strings.TrimSpace(*body.ZipCode)
		}
		if body.Country != nil {
			property.Country = strings.TrimSpace(*body.Country)
		}
		if body.Bedrooms != nil {
			property.Bedrooms = *body.Bedrooms
		}
		if body.Bathrooms != nil {
			property.Bathrooms = *body.Bathrooms
		}
		if body.SquareFeet != nil {
			property.SquareFeet = body.SquareFeet
		}
		if body.MonthlyRent != nil {
			property.MonthlyRent = *body.MonthlyRent
		}
		if body.SecurityDeposit != nil {
			property.SecurityDeposit = *body.SecurityDeposit
		}
		if body.Status != nil {
			property.Status = models.PropertyStatus(*body.Status)
		}
		if body.AcquisitionPrice != nil {
			property.AcquisitionPrice = body.AcquisitionPrice
		}
		if body.AcquisitionDate != nil {
			d, err := parseOptionalDate("acquisition_date", *body.AcquisitionDate)
			if err != nil {
				return err
			}
			property.AcquisitionDate = d
		}
		if body.CurrentValue != nil {
			property.CurrentValue = body.CurrentValue
		}
		if body.Notes != nil {
			property.Notes = strings.TrimSpace(*body.Notes)
		}

		if err := database.DB.WithContext(c.UserContext()).Omit(clause.Associations).Save(property).Error; err != nil {
			return httperr.Internal("Mülk güncellenemedi", err)
		}

		after := toResponse(*property)
		audit.Record(c, "property", property.ID, models.AuditActionUpdate,
			fmt.Sprintf("Mülk güncellendi: %s", property.Name), before, after)

		return c.JSON(after)
	}
}

// DELETE /api/properties/:id
func DeletePropertyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		property, err := Get(c.UserContext(), database.DB, userID, id)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Mülk bulunamadı")
		}
		if err != nil {
			return httperr.Internal("Mülk okunamadı", err)
		}

		if err := database.DB.WithContext(c.UserContext()).Delete(&models.Property{}, property.ID).Error; err != nil {
			return httperr.Internal("Mülk silinemedi", err)
		}

		audit.Record(c, "property", property.ID, models.AuditActionDelete,
			fmt.Sprintf("Mülk silindi: %s", property.Name), toResponse(*property), nil)

		return c.SendStatus(fiber.StatusNoContent)
	}
}
