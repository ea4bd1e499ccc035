package payment

import (
	"context"
	"fmt"
	"time"

	"rental-backend/internal/database"
	"rental-backend/internal/models"
	"rental-backend/internal/notification"
	"rental-backend/internal/scope"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecurringResult struct {
	Created       []models.Payment
	Skipped       int
	Notifications []models.Notification
}

// RentCategory "Rent" kategorisini getirir, yoksa oluşturur
func RentCategory(tx *gorm.DB) (*models.PaymentCategory, error) {
	var cat models.PaymentCategory
	err := tx.Where(models.PaymentCategory{Name: models.RentCategoryName}).
		Attrs(models.PaymentCategory{Description: "Aylık kira ödemeleri"}).
		FirstOrCreate(&cat).Error
	if err != nil {
		return nil, fmt.Errorf("kira kategorisi alınamadı: %w", err)
	}
	return &cat, nil
}

// CreateRecurring seçili mülklerdeki, bugünü kapsayan her aktif sözleşme için dueDate vadeli
// bekleyen bir kira ödemesi oluşturur. Sözleşmenin aynı ay içinde vadeli ödemesi varsa atlanır,
// bu yüzden aynı girdilerle tekrar çalıştırmak kopya üretmez.
// propertyIDs boşsa ErrNoPropertyChosen döner; tüm mülkler için CreateRecurringForMonth kullanılır.
func CreateRecurring(ctx context.Context, db *gorm.DB, ownerID uint, propertyIDs []uint, dueDate, today time.Time) (*RecurringResult, error) {
	if len(propertyIDs) == 0 {
		return nil, ErrNoPropertyChosen
	}
	dueDate = models.DateOnly(dueDate)
	return generate(ctx, db, ownerID, propertyIDs, today, func(models.Lease) time.Time { return dueDate })
}

// CreateRecurringForMonth vadeyi her sözleşmenin ödeme gününe göre belirler
// (aya sığmayan günler ayın son gününe çekilir). Sahibin tüm mülklerini kapsar, zamanlanmış iş bunu kullanır.
func CreateRecurringForMonth(ctx context.Context, db *gorm.DB, ownerID uint, month, today time.Time) (*RecurringResult, error) {
	return generate(ctx, db, ownerID, nil, today, func(l models.Lease) time.Time {
		return models.ClampDay(month.Year(), month.Month(), l.PaymentDay)
	})
}

func generate(ctx context.Context, db *gorm.DB, ownerID uint, propertyIDs []uint, today time.Time, dueFor func(models.Lease) time.Time) (*RecurringResult, error) {
	today = models.DateOnly(today)
	res := &RecurringResult{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Lease{}).
			Scopes(scope.ThroughProperty("leases", ownerID)).
			Where("leases.status = ? AND leases.start_date <= ? AND leases.end_date >= ?", models.LeaseStatusActive, today, today)
		if len(propertyIDs) > 0 {
			q = q.Where("leases.property_id IN ?", propertyIDs)
		}

		var leases []models.Lease
		// aynı sözleşme için eşzamanlı üretimler sırayla çalışsın
		if err := database.ForUpdate(q).Order("leases.id").Find(&leases).Error; err != nil {
			return err
		}
		if len(leases) == 0 {
			return nil
		}

		cat, err := RentCategory(tx)
		if err != nil {
			return err
		}

		for _, l := range leases {
			due := dueFor(l)
			first, next := models.MonthBounds(due)

			var existing int64
			if err := tx.Model(&models.Payment{}).
				Where("lease_id = ? AND due_date >= ? AND due_date < ?", l.ID, first, next).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				res.Skipped++
				continue
			}

			leaseID := l.ID
			p := models.Payment{
				PropertyID:  l.PropertyID,
				TenantID:    l.TenantID,
				LeaseID:     &leaseID,
				CategoryID:  &cat.ID,
				Amount:      l.RentAmount,
				DueDate:     due,
				Status:      models.PaymentStatusPending,
				Notes:       fmt.Sprintf("%s dönemi kira ödemesi", due.Format("2006-01")),
				CreatedByID: ownerID,
			}
			if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
				return fmt.Errorf("kira ödemesi oluşturulamadı: %w", err)
			}
			res.Created = append(res.Created, p)
		}

		if len(res.Created) == 0 {
			return nil
		}
		n, err := notification.Create(ctx, tx, notification.Input{
			UserID:  ownerID,
			Type:    models.NotificationPaymentDue,
			Title:   "Kira ödemeleri oluşturuldu",
			Message: fmt.Sprintf("%d kira ödemesi oluşturuldu, %d sözleşme atlandı", len(res.Created), res.Skipped),
			Link:    "/payments?status=pending",
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
	return res, nil
}
