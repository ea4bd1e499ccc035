package payment

import (
	"context"
	"errors"
	"fmt"
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
	ErrNotFound         = errors.New("ödeme bulunamadı")
	ErrLateFeeNotFound  = errors.New("gecikme bedeli bulunamadı")
	ErrAlreadyPaid      = errors.New("ödeme zaten ödenmiş")
	ErrNoLeaseForTenant = errors.New("kiracının bu mülkte kira sözleşmesi yok")
	ErrNoPropertyChosen = errors.New("en az bir mülk seçilmeli")
	ErrAlreadyWaived    = models.ErrLateFeeAlreadyWaived
)

// Result yazma işleminin sonucu; Notifications commit sonrası yayınlanır
type Result struct {
	Payment       models.Payment
	Notifications []models.Notification
}

func loadOwned(tx *gorm.DB, ownerID, id uint) (*models.Payment, error) {
	var p models.Payment
	err := tx.Scopes(scope.ThroughProperty("payments", ownerID)).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &p, err
}

// Get ödemeyi ilişkileriyle birlikte döner
func Get(ctx context.Context, db *gorm.DB, ownerID, id uint) (*models.Payment, error) {
	var p models.Payment
	byDate := func(db *gorm.DB) *gorm.DB { return db.Order("date_applied") }
	err := db.WithContext(ctx).
		Preload("Property").Preload("Tenant").Preload("Category").Preload("LateFees", byDate).
		Scopes(scope.ThroughProperty("payments", ownerID)).
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &p, err
}

// Prepare çapraz alan kontrollerini yapar ve sözleşme verilmemişse
// kiracının bu mülkteki en son sözleşmesini bağlar
func Prepare(ctx context.Context, tx *gorm.DB, ownerID uint, p *models.Payment) error {
	p.DueDate = models.DateOnly(p.DueDate)
	if p.PaymentDate != nil {
		d := models.DateOnly(*p.PaymentDate)
		p.PaymentDate = &d
	}

	verr := validation.NewError()
	q := tx.WithContext(ctx)

	var prop models.Property
	if err := q.Scopes(scope.OwnedProperties(ownerID)).First(&prop, p.PropertyID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		verr.Add("property_id", "mülk bulunamadı")
	}
	var tenant models.Tenant
	if err := q.Scopes(scope.VisibleTenants(ownerID)).First(&tenant, p.TenantID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		verr.Add("tenant_id", "kiracı bulunamadı")
	}
	if p.CategoryID != nil {
		var count int64
		if err := q.Model(&models.PaymentCategory{}).Where("id = ?", *p.CategoryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			verr.Add("category_id", "kategori bulunamadı")
		}
	}
	if p.Status == models.PaymentStatusPaid && p.PaymentDate == nil {
		verr.Add("payment_date", "ödenmiş ödemeler için ödeme tarihi zorunlu")
	}
	if len(verr.Fields) > 0 {
		return verr
	}

	if p.LeaseID != nil {
		var l models.Lease
		err := q.Where("id = ? AND property_id = ? AND tenant_id = ?", *p.LeaseID, p.PropertyID, p.TenantID).First(&l).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validation.Field("lease_id", "sözleşme bu mülk ve kiracıya ait değil")
		}
		return err
	}

	var latest models.Lease
	err := q.Where("property_id = ? AND tenant_id = ?", p.PropertyID, p.TenantID).
		Order("start_date desc").Order("id desc").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return validation.Field("tenant_id", "kiracının bu mülkte kira sözleşmesi yok").WithCause(ErrNoLeaseForTenant)
	}
	if err != nil {
		return err
	}
	p.LeaseID = &latest.ID
	return nil
}

func dueNotification(ctx context.Context, tx *gorm.DB, ownerID uint, p models.Payment) (models.Notification, error) {
	return notification.Create(ctx, tx, notification.Input{
		UserID:  ownerID,
		Type:    models.NotificationPaymentDue,
		Title:   "Ödeme bekleniyor",
		Message: fmt.Sprintf("%.2f tutarındaki ödemenin vadesi %s", p.Amount, models.FormatDate(p.DueDate)),
		Link:    Link(p.ID),
	})
}

func receivedNotification(ctx context.Context, tx *gorm.DB, ownerID uint, p models.Payment) (models.Notification, error) {
	return notification.Create(ctx, tx, notification.Input{
		UserID:  ownerID,
		Type:    models.NotificationPaymentReceived,
		Title:   "Ödeme alındı",
		Message: fmt.Sprintf("%.2f tutarındaki ödeme %s tarihinde alındı", p.Amount, models.FormatDate(*p.PaymentDate)),
		Link:    Link(p.ID),
	})
}

func Create(ctx context.Context, db *gorm.DB, ownerID uint, p models.Payment) (*Result, error) {
	p.ID = 0
	p.CreatedByID = ownerID
	res := &Result{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Prepare(ctx, tx, ownerID, &p); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return fmt.Errorf("ödeme kaydedilemedi: %w", err)
		}

		var n models.Notification
		var err error
		switch p.Status {
		case models.PaymentStatusPending:
			n, err = dueNotification(ctx, tx, ownerID, p)
		case models.PaymentStatusPaid:
			n, err = receivedNotification(ctx, tx, ownerID, p)
		default:
			return nil
		}
		if err != nil {
			return err
		}
		res.Notifications = append(res.Notifications, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Payment = p
	return res, nil
}

// Update ödemeyi next ile değiştirir. 'paid' durumuna geçişte boş ödeme tarihi bugün olur.
func Update(ctx context.Context, db *gorm.DB, ownerID uint, next models.Payment, today time.Time) (*Result, *models.Payment, error) {
	res := &Result{}
	var before models.Payment

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := loadOwned(database.ForUpdate(tx), ownerID, next.ID)
		if err != nil {
			return err
		}
		before = *old

		if next.Status == models.PaymentStatusPaid && next.PaymentDate == nil {
			d := models.DateOnly(today)
			next.PaymentDate = &d
		}
		if err := Prepare(ctx, tx, ownerID, &next); err != nil {
			return err
		}

		next.CreatedByID = old.CreatedByID
		next.CreatedAt = old.CreatedAt
		if err := tx.Omit(clause.Associations).Save(&next).Error; err != nil {
			return fmt.Errorf("ödeme güncellenemedi: %w", err)
		}

		if old.Status != models.PaymentStatusPaid && next.Status == models.PaymentStatusPaid {
			n, err := receivedNotification(ctx, tx, ownerID, next)
			if err != nil {
				return err
			}
			res.Notifications = append(res.Notifications, n)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	res.Payment = next
	return res, &before, nil
}

func Delete(ctx context.Context, db *gorm.DB, ownerID, id uint) (*models.Payment, error) {
	var deleted models.Payment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := loadOwned(tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", p.ID).Delete(&models.LateFee{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Payment{}, p.ID).Error; err != nil {
			return fmt.Errorf("ödeme silinemedi: %w", err)
		}
		deleted = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

type MarkPaidInput struct {
	PaymentDate     *time.Time
	Method          models.PaymentMethod
	ReferenceNumber string
}

// MarkPaid ödemeyi ödendi olarak işaretler; zaten ödenmişse ErrAlreadyPaid
func MarkPaid(ctx context.Context, db *gorm.DB, ownerID, id uint, in MarkPaidInput, today time.Time) (*Result, error) {
	res := &Result{}
	var p *models.Payment

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = loadOwned(database.ForUpdate(tx), ownerID, id)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentStatusPaid {
			return ErrAlreadyPaid
		}

		date := models.DateOnly(today)
		if in.PaymentDate != nil {
			date = models.DateOnly(*in.PaymentDate)
		}
		p.Status = models.PaymentStatusPaid
		p.PaymentDate = &date
		if in.Method != "" {
			p.PaymentMethod = in.Method
		}
		if in.ReferenceNumber != "" {
			p.ReferenceNumber = in.ReferenceNumber
		}

		if err := tx.Model(&models.Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
			"status":           p.Status,
			"payment_date":     p.PaymentDate,
			"payment_method":   p.PaymentMethod,
			"reference_number": p.ReferenceNumber,
		}).Error; err != nil {
			return fmt.Errorf("ödeme güncellenemedi: %w", err)
		}

		n, err := receivedNotification(ctx, tx, ownerID, *p)
		if err != nil {
			return err
		}
		res.Notifications = append(res.Notifications, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Payment = *p
	return res, nil
}

// AddLateFee ödemeye gecikme bedeli ekler; tarih verilmezse bugün
func AddLateFee(ctx context.Context, db *gorm.DB, ownerID, paymentID uint, amount float64, reason string, date *time.Time, today time.Time) (*models.LateFee, error) {
	applied := models.DateOnly(today)
	if date != nil {
		applied = models.DateOnly(*date)
	}
	fee := models.LateFee{PaymentID: paymentID, Amount: amount, DateApplied: applied, Reason: reason}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwned(tx, ownerID, paymentID); err != nil {
			return err
		}
		return tx.Create(&fee).Error
	})
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// WaiveLateFee tek yönlü: affedilmiş bedel tekrar affedilemez
func WaiveLateFee(ctx context.Context, db *gorm.DB, ownerID, feeID uint, reason string, today time.Time) (*models.LateFee, error) {
	var fee models.LateFee
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := database.ForUpdate(tx).
			Where("late_fees.payment_id IN (SELECT payments.id FROM payments JOIN properties ON properties.id = payments.property_id WHERE properties.owner_id = ?)", ownerID).
			First(&fee, feeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLateFeeNotFound
		}
		if err != nil {
			return err
		}
		if err := fee.Waive(ownerID, reason, today); err != nil {
			return err
		}
		return tx.Model(&models.LateFee{}).Where("id = ?", fee.ID).Updates(map[string]any{
			"waived":        fee.Waived,
			"waived_by_id":  fee.WaivedByID,
			"waived_date":   fee.WaivedDate,
			"waived_reason": fee.WaivedReason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// Link bildirimlerde kullanılan ödeme yolu
func Link(id uint) string {
	return fmt.Sprintf("/payments/%d", id)
}
