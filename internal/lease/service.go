package lease

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rental-backend/internal/database"
	"rental-backend/internal/models"
	"rental-backend/internal/notification"
	"rental-backend/internal/scope"
	"rental-backend/internal/validation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound          = errors.New("kira sözleşmesi bulunamadı")
	ErrPropertyNotFound  = errors.New("mülk bulunamadı")
	ErrTenantNotFound    = errors.New("kiracı bulunamadı")
	ErrLeaseOverlap      = errors.New("tarihler aktif bir kira sözleşmesi ile çakışıyor")
	ErrInvalidTransition = errors.New("sözleşmenin mevcut durumu bu işleme izin vermiyor")
)

// Result başarılı bir yazma işleminin çıktısı. Notifications commit sonrası yayınlanır.
type Result struct {
	Lease         models.Lease
	Warnings      []string
	Notifications []models.Notification
}

// Validate aday sözleşmeyi kontrol eder: tarih sırası ve aktif sözleşme çakışması.
// excludeIDs çakışma aramasından hariç tutulur (güncellenen veya yenilenen sözleşme).
// prop verilirse, aktif bir sözleşme oluşturulurken mülk 'rented' değilse uyarı döner.
func Validate(ctx context.Context, db *gorm.DB, l *models.Lease, prop *models.Property, excludeIDs ...uint) ([]string, error) {
	verr := validation.NewError()
	var warnings []string

	if l.StartDate.After(l.EndDate) {
		verr.Add("end_date", "bitiş tarihi başlangıç tarihinden önce olamaz")
		return nil, verr
	}

	if l.Status == models.LeaseStatusActive {
		if other, err := findOverlap(ctx, db, "property_id", l.PropertyID, l, excludeIDs); err != nil {
			return nil, err
		} else if other != nil {
			verr.Add("property_id", fmt.Sprintf("bu mülk için %s - %s arasında aktif bir sözleşme zaten var",
				models.FormatDate(other.StartDate), models.FormatDate(other.EndDate)))
		}
		if other, err := findOverlap(ctx, db, "tenant_id", l.TenantID, l, excludeIDs); err != nil {
			return nil, err
		} else if other != nil {
			// başka sahibin sözleşmesinin tarihleri gösterilmez
			msg := "bu kiracının bu tarihlerde başka bir aktif sözleşmesi zaten var"
			same, err := sameOwner(ctx, db, other.PropertyID, l.PropertyID)
			if err != nil {
				return nil, err
			}
			if same {
				msg = fmt.Sprintf("bu kiracının %s - %s arasında aktif bir sözleşmesi zaten var",
					models.FormatDate(other.StartDate), models.FormatDate(other.EndDate))
			}
			verr.Add("tenant_id", msg)
		}
		if len(verr.Fields) > 0 {
			return nil, verr.WithCause(ErrLeaseOverlap)
		}

		if prop != nil && prop.Status != models.PropertyStatusRented {
			warnings = append(warnings, fmt.Sprintf("mülk durumu '%s'; aktif sözleşme ile 'rented' olarak güncellenecek", prop.Status))
		}
	}

	return warnings, nil
}

func findOverlap(ctx context.Context, db *gorm.DB, column string, value uint, l *models.Lease, exclude []uint) (*models.Lease, error) {
	q := db.WithContext(ctx).
		Where(column+" = ? AND status = ?", value, models.LeaseStatusActive).
		Where("start_date <= ? AND end_date >= ?", l.EndDate, l.StartDate)
	if ids := nonZero(exclude); len(ids) > 0 {
		q = q.Where("id NOT IN ?", ids)
	}
	var other models.Lease
	err := q.Order("start_date").First(&other).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &other, nil
}

func sameOwner(ctx context.Context, db *gorm.DB, a, b uint) (bool, error) {
	var owners []uint
	if err := db.WithContext(ctx).Model(&models.Property{}).
		Where("id IN ?", []uint{a, b}).Distinct().Pluck("owner_id", &owners).Error; err != nil {
		return false, err
	}
	return len(owners) == 1, nil
}

func nonZero(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	return out
}

// lockProperty kullanıcının mülkünü kilitleyerek okur; aynı mülk üzerindeki
// eşzamanlı sözleşme yazımları bu satırda sıraya girer
func lockProperty(tx *gorm.DB, propertyID, ownerID uint) (*models.Property, error) {
	var prop models.Property
	err := database.ForUpdate(tx).Scopes(scope.OwnedProperties(ownerID)).First(&prop, propertyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPropertyNotFound
	}
	return &prop, err
}

func lockTenant(tx *gorm.DB, tenantID, ownerID uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := database.ForUpdate(tx).Scopes(scope.VisibleTenants(ownerID)).First(&tenant, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	return &tenant, err
}

// loadOwned sözleşmeyi mülk sahipliği üzerinden okur
func loadOwned(tx *gorm.DB, id, ownerID uint) (*models.Lease, error) {
	var l models.Lease
	err := tx.Scopes(scope.ThroughProperty("leases", ownerID)).First(&l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &l, err
}

// Get sahibin sözleşmesini mülk ve kiracı ile birlikte döner
func Get(ctx context.Context, db *gorm.DB, id, ownerID uint) (*models.Lease, error) {
	var l models.Lease
	err := db.WithContext(ctx).
		Preload("Property").Preload("Tenant").
		Scopes(scope.ThroughProperty("leases", ownerID)).
		First(&l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &l, err
}

func markRented(tx *gorm.DB, prop *models.Property) error {
	if prop.Status == models.PropertyStatusRented {
		return nil
	}
	prop.Status = models.PropertyStatusRented
	return tx.Model(&models.Property{}).Where("id = ?", prop.ID).Update("status", models.PropertyStatusRented).Error
}

// releaseProperty başka aktif sözleşme kalmadıysa mülkü 'available' yapar
func releaseProperty(tx *gorm.DB, propertyID, leaseID uint) error {
	var count int64
	if err := tx.Model(&models.Lease{}).
		Where("property_id = ? AND status = ? AND id <> ?", propertyID, models.LeaseStatusActive, leaseID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Model(&models.Property{}).Where("id = ?", propertyID).Update("status", models.PropertyStatusAvailable).Error
}

func prepare(l *models.Lease) {
	l.StartDate = models.DateOnly(l.StartDate)
	l.EndDate = models.DateOnly(l.EndDate)
	if l.PaymentDay == 0 {
		l.PaymentDay = 1
	}
}

// Create yeni sözleşmeyi kaydeder ve aktifse mülkü kiralandı olarak işaretler
func Create(ctx context.Context, db *gorm.DB, ownerID uint, l models.Lease) (*Result, error) {
	prepare(&l)
	l.ID = 0
	l.CreatedByID = ownerID
	res := &Result{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prop, err := lockProperty(tx, l.PropertyID, ownerID)
		if err != nil {
			return err
		}
		tenant, err := lockTenant(tx, l.TenantID, ownerID)
		if err != nil {
			return err
		}

		res.Warnings, err = Validate(ctx, tx, &l, prop)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&l).Error; err != nil {
			return fmt.Errorf("sözleşme kaydedilemedi: %w", err)
		}
		if l.Status == models.LeaseStatusActive {
			if err := markRented(tx, prop); err != nil {
				return err
			}
		}

		n, err := notification.Create(ctx, tx, notification.Input{
			UserID:  ownerID,
			Type:    models.NotificationLease,
			Title:   "Yeni kira sözleşmesi",
			Message: fmt.Sprintf("%s için %s ile yeni sözleşme oluşturuldu", prop.Name, tenant.FullName()),
			Link:    Link(l.ID),
		})
		if err != nil {
			return err
		}
		res.Notifications = append(res.Notifications, n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Lease = l
	return res, nil
}

// Update sözleşmenin tüm alanlarını next ile değiştirir. Eski kayıt Result dışında döner.
func Update(ctx context.Context, db *gorm.DB, ownerID uint, next models.Lease) (*Result, *models.Lease, error) {
	prepare(&next)
	res := &Result{}
	var before models.Lease

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := loadOwned(tx, next.ID, ownerID)
		if err != nil {
			return err
		}
		before = *old

		prop, err := lockProperty(tx, next.PropertyID, ownerID)
		if err != nil {
			return err
		}
		if old.PropertyID != next.PropertyID {
			if _, err := lockProperty(tx, old.PropertyID, ownerID); err != nil {
				return err
			}
		}
		if _, err := lockTenant(tx, next.TenantID, ownerID); err != nil {
			return err
		}

		// güncellemede uyarı yok, sadece çakışma kontrolü
		if _, err := Validate(ctx, tx, &next, nil, next.ID); err != nil {
			return err
		}

		next.CreatedByID = old.CreatedByID
		next.CreatedAt = old.CreatedAt
		if err := tx.Omit(clause.Associations).Save(&next).Error; err != nil {
			return fmt.Errorf("sözleşme güncellenemedi: %w", err)
		}

		if next.Status == models.LeaseStatusActive {
			if err := markRented(tx, prop); err != nil {
				return err
			}
		}
		if old.Status == models.LeaseStatusActive &&
			(next.Status != models.LeaseStatusActive || old.PropertyID != next.PropertyID) {
			if err := releaseProperty(tx, old.PropertyID, next.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	res.Lease = next
	return res, &before, nil
}

// Delete sözleşmeyi siler; aktif sözleşme silinirse mülk durumu yeniden hesaplanır
func Delete(ctx context.Context, db *gorm.DB, ownerID, id uint) (*models.Lease, error) {
	var deleted models.Lease
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := loadOwned(tx, id, ownerID)
		if err != nil {
			return err
		}
		if _, err := lockProperty(tx, l.PropertyID, ownerID); err != nil {
			return err
		}
		if err := tx.Delete(&models.Lease{}, l.ID).Error; err != nil {
			return fmt.Errorf("sözleşme silinemedi: %w", err)
		}
		if l.Status == models.LeaseStatusActive {
			if err := releaseProperty(tx, l.PropertyID, l.ID); err != nil {
				return err
			}
		}
		deleted = *l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// RenewInput boş bırakılan alanlar eski sözleşmeden türetilir
type RenewInput struct {
	StartDate       *time.Time
	EndDate         *time.Time
	RentAmount      *float64
	SecurityDeposit *float64
	LeaseType       *models.LeaseType
	Status          *models.LeaseStatus
	PaymentDay      *int
	LateFee         *float64
	GracePeriod     *int
	Notes           *string
}

// RenewalDefaults eski sözleşmeden yenileme taslağı üretir:
// bitişin ertesi günü başlar, bir yıl sürer, koşullar aynen kopyalanır
func RenewalDefaults(old models.Lease) models.Lease {
	return models.Lease{
		PropertyID:      old.PropertyID,
		TenantID:        old.TenantID,
		LeaseType:       old.LeaseType,
		StartDate:       old.EndDate.AddDate(0, 0, 1),
		EndDate:         old.EndDate.AddDate(1, 0, 0),
		RentAmount:      old.RentAmount,
		SecurityDeposit: old.SecurityDeposit,
		Status:          models.LeaseStatusActive,
		PaymentDay:      old.PaymentDay,
		LateFee:         old.LateFee,
		GracePeriod:     old.GracePeriod,
		Notes:           strings.TrimSpace(fmt.Sprintf("%d numaralı sözleşmenin yenilemesi. %s", old.ID, old.Notes)),
	}
}

func (in RenewInput) apply(l *models.Lease) {
	if in.StartDate != nil {
		l.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		l.EndDate = *in.EndDate
	}
	if in.RentAmount != nil {
		l.RentAmount = *in.RentAmount
	}
	if in.SecurityDeposit != nil {
		l.SecurityDeposit = *in.SecurityDeposit
	}
	if in.LeaseType != nil {
		l.LeaseType = *in.LeaseType
	}
	if in.Status != nil {
		l.Status = *in.Status
	}
	if in.PaymentDay != nil {
		l.PaymentDay = *in.PaymentDay
	}
	if in.LateFee != nil {
		l.LateFee = *in.LateFee
	}
	if in.GracePeriod != nil {
		l.GracePeriod = *in.GracePeriod
	}
	if in.Notes != nil {
		l.Notes = *in.Notes
	}
}

// Renew yeni sözleşmeyi oluşturur ve eskisini aynı transaction içinde 'renewed' yapar
func Renew(ctx context.Context, db *gorm.DB, ownerID, id uint, in RenewInput) (*Result, error) {
	res := &Result{}
	var next models.Lease

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := loadOwned(tx, id, ownerID)
		if err != nil {
			return err
		}
		if !old.CanRenew() {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, old.Status)
		}

		prop, err := lockProperty(tx, old.PropertyID, ownerID)
		if err != nil {
			return err
		}
		tenant, err := lockTenant(tx, old.TenantID, ownerID)
		if err != nil {
			return err
		}

		next = RenewalDefaults(*old)
		in.apply(&next)
		prepare(&next)
		next.CreatedByID = ownerID

		res.Warnings, err = Validate(ctx, tx, &next, prop, old.ID)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&next).Error; err != nil {
			return fmt.Errorf("yenileme sözleşmesi kaydedilemedi: %w", err)
		}
		if err := tx.Model(&models.Lease{}).Where("id = ?", old.ID).Update("status", models.LeaseStatusRenewed).Error; err != nil {
			return err
		}

		if next.Status == models.LeaseStatusActive {
			if err := markRented(tx, prop); err != nil {
				return err
			}
		} else if old.Status == models.LeaseStatusActive {
			if err := releaseProperty(tx, prop.ID, old.ID); err != nil {
				return err
			}
		}

		n, err := notification.Create(ctx, tx, notification.Input{
			UserID: ownerID,
			Type:   models.NotificationLease,
			Title:  "Kira sözleşmesi yenilendi",
			Message: fmt.Sprintf("%s için %s sözleşmesi %s tarihine kadar yenilendi",
				prop.Name, tenant.FullName(), models.FormatDate(next.EndDate)),
			Link: Link(next.ID),
		})
		if err != nil {
			return err
		}
		res.Notifications = append(res.Notifications, n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Lease = next
	return res, nil
}

// Terminate sözleşmeyi verilen tarihte sonlandırır
func Terminate(ctx context.Context, db *gorm.DB, ownerID, id uint, date time.Time, reason string) (*Result, error) {
	date = models.DateOnly(date)
	res := &Result{}
	var l *models.Lease

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = loadOwned(tx, id, ownerID)
		if err != nil {
			return err
		}
		if !l.CanTerminate() {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, l.Status)
		}
		if date.Before(l.StartDate) {
			return validation.Field("termination_date", "sonlandırma tarihi başlangıç tarihinden önce olamaz")
		}

		prop, err := lockProperty(tx, l.PropertyID, ownerID)
		if err != nil {
			return err
		}

		wasActive := l.Status == models.LeaseStatusActive
		note := fmt.Sprintf("%s tarihinde sonlandırıldı.", models.FormatDate(date))
		if reason = strings.TrimSpace(reason); reason != "" {
			note += " Sebep: " + reason
		}
		if l.Notes != "" {
			note = l.Notes + "\n\n" + note
		}

		l.Status = models.LeaseStatusTerminated
		l.EndDate = date
		l.Notes = note
		if err := tx.Model(&models.Lease{}).Where("id = ?", l.ID).Updates(map[string]any{
			"status":   l.Status,
			"end_date": l.EndDate,
			"notes":    l.Notes,
		}).Error; err != nil {
			return fmt.Errorf("sözleşme sonlandırılamadı: %w", err)
		}

		if wasActive {
			if err := releaseProperty(tx, prop.ID, l.ID); err != nil {
				return err
			}
		}

		n, err := notification.Create(ctx, tx, notification.Input{
			UserID:  ownerID,
			Type:    models.NotificationLease,
			Title:   "Kira sözleşmesi sonlandırıldı",
			Message: fmt.Sprintf("%s için sözleşme %s tarihinde sonlandırıldı", prop.Name, models.FormatDate(date)),
			Link:    Link(l.ID),
		})
		if err != nil {
			return err
		}
		res.Notifications = append(res.Notifications, n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Lease = *l
	return res, nil
}

// Link bildirimlerde kullanılan sözleşme yolu
func Link(id uint) string {
	return fmt.Sprintf("/leases/%d", id)
}
