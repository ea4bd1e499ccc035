package lease

import (
	"errors"
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

type LeaseRequest struct {
	PropertyID            uint    `json:"property_id" validate:"required"`
	TenantID              uint    `json:"tenant_id" validate:"required"`
	LeaseType             string  `json:"lease_type" validate:"required,oneof=fixed month_to_month week_to_week"`
	StartDate             string  `json:"start_date" validate:"required,date"`
	EndDate               string  `json:"end_date" validate:"required,date"`
	RentAmount            float64 `json:"rent_amount" validate:"gt=0,dec2"`
	SecurityDeposit       float64 `json:"security_deposit" validate:"gte=0,dec2"`
	Status                string  `json:"status" validate:"required,oneof=pending active completed terminated renewed"`
	PaymentDay            *int    `json:"payment_day" validate:"omitempty,min=1,max=31"`
	LateFee               float64 `json:"late_fee" validate:"gte=0,dec2"`
	GracePeriod           *int    `json:"grace_period" validate:"omitempty,min=0,max=60"`
	IsSecurityDepositPaid bool    `json:"is_security_deposit_paid"`
	Notes                 string  `json:"notes"`
}

func (r LeaseRequest) toModel() models.Lease {
	start, _ := models.ParseDate(r.StartDate)
	end, _ := models.ParseDate(r.EndDate)
	l := models.Lease{
		PropertyID:            r.PropertyID,
		TenantID:              r.TenantID,
		LeaseType:             models.LeaseType(r.LeaseType),
		StartDate:             start,
		EndDate:               end,
		RentAmount:            r.RentAmount,
		SecurityDeposit:       r.SecurityDeposit,
		Status:                models.LeaseStatus(r.Status),
		PaymentDay:            1,
		LateFee:               r.LateFee,
		GracePeriod:           5,
		IsSecurityDepositPaid: r.IsSecurityDepositPaid,
		Notes:                 r.Notes,
	}
	if r.PaymentDay != nil {
		l.PaymentDay = *r.PaymentDay
	}
	if r.GracePeriod != nil {
		l.GracePeriod = *r.GracePeriod
	}
	return l
}

type RenewRequest struct {
	StartDate       *string  `json:"start_date" validate:"omitempty,date"`
	EndDate         *string  `json:"end_date" validate:"omitempty,date"`
	RentAmount      *float64 `json:"rent_amount" validate:"omitempty,gt=0,dec2"`
	SecurityDeposit *float64 `json:"security_deposit" validate:"omitempty,gte=0,dec2"`
	LeaseType       *string  `json:"lease_type" validate:"omitempty,oneof=fixed month_to_month week_to_week"`
	Status          *string  `json:"status" validate:"omitempty,oneof=pending active"`
	PaymentDay      *int     `json:"payment_day" validate:"omitempty,min=1,max=31"`
	LateFee         *float64 `json:"late_fee" validate:"omitempty,gte=0,dec2"`
	GracePeriod     *int     `json:"grace_period" validate:"omitempty,min=0,max=60"`
	Notes           *string  `json:"notes"`
}

func (r RenewRequest) toInput() RenewInput {
	in := RenewInput{
		RentAmount:      r.RentAmount,
		SecurityDeposit: r.SecurityDeposit,
		PaymentDay:      r.PaymentDay,
		LateFee:         r.LateFee,
		GracePeriod:     r.GracePeriod,
		Notes:           r.Notes,
	}
	if r.StartDate != nil {
		d, _ := models.ParseDate(*r.StartDate)
		in.StartDate = &d
	}
	if r.EndDate != nil {
		d, _ := models.ParseDate(*r.EndDate)
		in.EndDate = &d
	}
	if r.LeaseType != nil {
		t := models.LeaseType(*r.LeaseType)
		in.LeaseType = &t
	}
	if r.Status != nil {
		s := models.LeaseStatus(*r.Status)
		in.Status = &s
	}
	return in
}

type TerminateRequest struct {
	TerminationDate string `json:"termination_date" validate:"required,date"`
	Reason          string `json:"reason"`
}

type LeaseResponse struct {
	ID                    uint               `json:"id"`
	PropertyID            uint               `json:"property_id"`
	PropertyName          string             `json:"property_name"`
	TenantID              uint               `json:"tenant_id"`
	TenantName            string             `json:"tenant_name"`
	LeaseType             models.LeaseType   `json:"lease_type"`
	StartDate             string             `json:"start_date"`
	EndDate               string             `json:"end_date"`
	RentAmount            float64            `json:"rent_amount"`
	SecurityDeposit       float64            `json:"security_deposit"`
	Status                models.LeaseStatus `json:"status"`
	PaymentDay            int                `json:"payment_day"`
	LateFee               float64            `json:"late_fee"`
	GracePeriod           int                `json:"grace_period"`
	IsSecurityDepositPaid bool               `json:"is_security_deposit_paid"`
	Notes                 string             `json:"notes"`
	TermMonths            int                `json:"term_months"`
	DaysUntilExpiration   int                `json:"days_until_expiration"`
	IsCurrent             bool               `json:"is_current"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

func ToResponse(l models.Lease, today time.Time) LeaseResponse {
	return LeaseResponse{
		ID:                    l.ID,
		PropertyID:            l.PropertyID,
		PropertyName:          l.Property.Name,
		TenantID:              l.TenantID,
		TenantName:            l.Tenant.FullName(),
		LeaseType:             l.LeaseType,
		StartDate:             models.FormatDate(l.StartDate),
		EndDate:               models.FormatDate(l.EndDate),
		RentAmount:            l.RentAmount,
		SecurityDeposit:       l.SecurityDeposit,
		Status:                l.Status,
		PaymentDay:            l.PaymentDay,
		LateFee:               l.LateFee,
		GracePeriod:           l.GracePeriod,
		IsSecurityDepositPaid: l.IsSecurityDepositPaid,
		Notes:                 l.Notes,
		TermMonths:            l.TermMonths(),
		DaysUntilExpiration:   l.DaysUntilExpiration(today),
		IsCurrent:             l.IsActiveOn(today),
		CreatedAt:             l.CreatedAt,
		UpdatedAt:             l.UpdatedAt,
	}
}

type MutationResponse struct {
	Lease    LeaseResponse `json:"lease"`
	Warnings []string      `json:"warnings"`
}

type Stats struct {
	Active           int64   `json:"active"`
	ExpiringSoon     int64   `json:"expiring_soon"`
	RecentlyStarted  int64   `json:"recently_started"`
	TotalMonthlyRent float64 `json:"total_monthly_rent"`
}

type ListResponse struct {
	Leases []LeaseResponse `json:"leases"`
	Stats  Stats           `json:"stats"`
}

// toHTTP servis hatalarını HTTP hatalarına çevirir; doğrulama hataları olduğu gibi geçer
func toHTTP(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Kira sözleşmesi bulunamadı")
	case errors.Is(err, ErrPropertyNotFound):
		return validation.Field("property_id", "mülk bulunamadı")
	case errors.Is(err, ErrTenantNotFound):
		return validation.Field("tenant_id", "kiracı bulunamadı")
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
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

func reload(c *fiber.Ctx, id, ownerID uint) (LeaseResponse, error) {
	l, err := Get(c.UserContext(), database.DB, id, ownerID)
	if err != nil {
		return LeaseResponse{}, toHTTP(err)
	}
	return ToResponse(*l, models.Today()), nil
}

func warningsOrEmpty(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}

// listQuery filtreleri uygular; liste ve export ortak kullanır
func listQuery(c *fiber.Ctx, ownerID uint) (*gorm.DB, error) {
	q := filter.New(c)
	dbq := database.DB.WithContext(c.UserContext()).Model(&models.Lease{}).
		Scopes(scope.ThroughProperty("leases", ownerID))

	if v := q.Uint("property_id"); v != nil {
		dbq = dbq.Where("leases.property_id = ?", *v)
	}
	if v := q.Uint("tenant_id"); v != nil {
		dbq = dbq.Where("leases.tenant_id = ?", *v)
	}
	if v := q.String("status"); v != "" {
		dbq = dbq.Where("leases.status = ?", v)
	}
	if v := q.String("lease_type"); v != "" {
		dbq = dbq.Where("leases.lease_type = ?", v)
	}
	if v := q.Date("start_after"); v != nil {
		dbq = dbq.Where("leases.start_date >= ?", *v)
	}
	if v := q.Date("start_before"); v != nil {
		dbq = dbq.Where("leases.start_date <= ?", *v)
	}
	if v := q.Date("end_after"); v != nil {
		dbq = dbq.Where("leases.end_date >= ?", *v)
	}
	if v := q.Date("end_before"); v != nil {
		dbq = dbq.Where("leases.end_date <= ?", *v)
	}
	if v := q.Float("min_rent"); v != nil {
		dbq = dbq.Where("leases.rent_amount >= ?", *v)
	}
	if v := q.Float("max_rent"); v != nil {
		dbq = dbq.Where("leases.rent_amount <= ?", *v)
	}

	order := q.Sort("sort", map[string]string{
		"start_date":  "leases.start_date",
		"end_date":    "leases.end_date",
		"rent_amount": "leases.rent_amount",
		"status":      "leases.status",
		"created_at":  "leases.created_at",
	}, "leases.start_date desc")

	if err := q.Err(); err != nil {
		return nil, err
	}
	return dbq.Order(order).Order("leases.id desc"), nil
}

// GET /api/leases
func ListLeasesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		dbq, err := listQuery(c, userID)
		if err != nil {
			return err
		}

		var leases []models.Lease
		if err := dbq.Preload("Property").Preload("Tenant").Find(&leases).Error; err != nil {
			return httperr.Internal("Sözleşmeler listelenemedi", err)
		}

		stats, err := ComputeStats(c.UserContext(), database.DB, userID, models.Today())
		if err != nil {
			return httperr.Internal("Sözleşme istatistikleri hesaplanamadı", err)
		}

		today := models.Today()
		resp := ListResponse{Leases: make([]LeaseResponse, 0, len(leases)), Stats: *stats}
		for _, l := range leases {
			resp.Leases = append(resp.Leases, ToResponse(l, today))
		}
		return c.JSON(resp)
	}
}

// GET /api/leases/:id
func GetLeaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}
		resp, err := reload(c, id, userID)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// POST /api/leases
func CreateLeaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body LeaseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		res, err := Create(c.UserContext(), database.DB, userID, body.toModel())
		if err != nil {
			return toHTTP(err)
		}
		notification.Publish(c.UserContext(), res.Notifications...)
		audit.Record(c, "lease", res.Lease.ID, models.AuditActionCreate, "Kira sözleşmesi oluşturuldu", nil, res.Lease)

		lr, err := reload(c, res.Lease.ID, userID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(MutationResponse{Lease: lr, Warnings: warningsOrEmpty(res.Warnings)})
	}
}

// PUT /api/leases/:id
func UpdateLeaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body LeaseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		next := body.toModel()
		next.ID = id
		res, before, err := Update(c.UserContext(), database.DB, userID, next)
		if err != nil {
			return toHTTP(err)
		}
		audit.Record(c, "lease", id, models.AuditActionUpdate, "Kira sözleşmesi güncellendi", before, res.Lease)

		lr, err := reload(c, id, userID)
		if err != nil {
			return err
		}
		return c.JSON(MutationResponse{Lease: lr, Warnings: warningsOrEmpty(res.Warnings)})
	}
}

// DELETE /api/leases/:id
func DeleteLeaseHandler() fiber.Handler {
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
		audit.Record(c, "lease", id, models.AuditActionDelete, "Kira sözleşmesi silindi", deleted, nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/leases/:id/renew
func RenewLeaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body RenewRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
			}
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		res, err := Renew(c.UserContext(), database.DB, userID, id, body.toInput())
		if err != nil {
			return toHTTP(err)
		}
		notification.Publish(c.UserContext(), res.Notifications...)
		audit.Record(c, "lease", res.Lease.ID, models.AuditActionCreate, "Kira sözleşmesi yenilendi", map[string]uint{"renewed_from": id}, res.Lease)

		lr, err := reload(c, res.Lease.ID, userID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(MutationResponse{Lease: lr, Warnings: warningsOrEmpty(res.Warnings)})
	}
}

// POST /api/leases/:id/terminate
func TerminateLeaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body TerminateRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		date, _ := models.ParseDate(body.TerminationDate)

		res, err := Terminate(c.UserContext(), database.DB, userID, id, date, body.Reason)
		if err != nil {
			return toHTTP(err)
		}
		notification.Publish(c.UserContext(), res.Notifications...)
		events.Publish(c.UserContext(), events.Event{
			Type:       events.TypeLeaseTerminated,
			UserID:     userID,
			EntityType: "lease",
			EntityID:   id,
			Payload: map[string]any{
				"property_id":      res.Lease.PropertyID,
				"tenant_id":        res.Lease.TenantID,
				"termination_date": models.FormatDate(res.Lease.EndDate),
			},
		})
		audit.Record(c, "lease", id, models.AuditActionUpdate, "Kira sözleşmesi sonlandırıldı", nil, res.Lease)

		lr, err := reload(c, id, userID)
		if err != nil {
			return err
		}
		return c.JSON(MutationResponse{Lease: lr, Warnings: []string{}})
	}
}

// GET /api/leases/export?format=csv (liste filtreleriyle aynı)
func ExportLeasesHandler() fiber.Handler {
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

		var leases []models.Lease
		if err := dbq.Preload("Property").Preload("Tenant").Find(&leases).Error; err != nil {
			return httperr.Internal("Sözleşmeler okunamadı", err)
		}

		table := export.Table{
			Title:   "Leases",
			Headers: []string{"Property", "Tenant", "Type", "Start Date", "End Date", "Status", "Rent Amount", "Security Deposit", "Payment Day"},
		}
		for _, l := range leases {
			table.Rows = append(table.Rows, []string{
				l.Property.Name,
				l.Tenant.FullName(),
				string(l.LeaseType),
				models.FormatDate(l.StartDate),
				models.FormatDate(l.EndDate),
				string(l.Status),
				export.Money(l.RentAmount),
				export.Money(l.SecurityDeposit),
				itoa(l.PaymentDay),
			})
		}
		return export.Send(c, table, format, "leases."+string(format))
	}
}
