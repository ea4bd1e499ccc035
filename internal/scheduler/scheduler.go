// Package scheduler zamanlanmış işleri (aylık kira üretimi, hatırlatmalar) çalıştırır.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"rental-backend/internal/events"
	"rental-backend/internal/lease"
	"rental-backend/internal/logging"
	"rental-backend/internal/models"
	"rental-backend/internal/notification"
	"rental-backend/internal/payment"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

type Config struct {
	RecurringCron   string
	ReminderCron    string
	LeaseExpiryDays int
}

type Scheduler struct {
	db   *gorm.DB
	cfg  Config
	log  *logging.Logger
	cron *cron.Cron
	now  func() time.Time
}

func New(db *gorm.DB, cfg Config, l *logging.Logger) *Scheduler {
	if cfg.LeaseExpiryDays <= 0 {
		cfg.LeaseExpiryDays = lease.ExpiryWindow
	}
	return &Scheduler{
		db:   db,
		cfg:  cfg,
		log:  l.WithComponent(logging.ComponentScheduler),
		cron: cron.New(),
		now:  models.Today,
	}
}

// Start tanımlı işleri kaydeder ve cron'u başlatır. Boş cron ifadesi işi kapatır.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := 0
	if s.cfg.RecurringCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.RecurringCron, func() {
			if _, err := s.GenerateRecurring(ctx, s.now()); err != nil {
				s.log.Error("Kira üretimi başarısız", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("geçersiz RECURRING_CRON: %w", err)
		}
		jobs++
	}
	if s.cfg.ReminderCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReminderCron, func() {
			if _, err := s.SendReminders(ctx, s.now()); err != nil {
				s.log.Error("Hatırlatmalar gönderilemedi", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("geçersiz REMINDER_CRON: %w", err)
		}
		jobs++
	}
	if jobs == 0 {
		s.log.Info("Zamanlanmış iş tanımlı değil")
		return nil
	}
	s.log.Info("Zamanlayıcı başladı", "recurring", s.cfg.RecurringCron, "reminders", s.cfg.ReminderCron)
	s.cron.Start()
	return nil
}

// Stop yeni tetiklemeleri durdurur; dönen context çalışan işler bitince kapanır
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

type RecurringSummary struct {
	Owners  int
	Created int
	Skipped int
}

// GenerateRecurring mülkü olan her sahip için bu ayın kira ödemelerini üretir.
// Bir sahipteki hata diğerlerini durdurmaz; ilk hata döner.
func (s *Scheduler) GenerateRecurring(ctx context.Context, today time.Time) (RecurringSummary, error) {
	var sum RecurringSummary
	var owners []uint
	if err := s.db.WithContext(ctx).Model(&models.Property{}).
		Distinct("owner_id").Order("owner_id").Pluck("owner_id", &owners).Error; err != nil {
		return sum, err
	}

	var firstErr error
	for _, ownerID := range owners {
		res, err := payment.CreateRecurringForMonth(ctx, s.db, ownerID, today, today)
		if err != nil {
			s.log.Error("Sahip için kira üretilemedi", "owner_id", ownerID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sum.Owners++
		sum.Created += len(res.Created)
		sum.Skipped += res.Skipped

		notification.Publish(ctx, res.Notifications...)
		if len(res.Created) > 0 {
			events.Publish(ctx, events.Event{
				Type:    events.TypePaymentsGenerated,
				UserID:  ownerID,
				Payload: map[string]any{"created": len(res.Created), "skipped": res.Skipped, "scheduled": true},
			})
		}
	}
	s.log.Info("Kira üretimi tamamlandı", "owners", sum.Owners, "created", sum.Created, "skipped", sum.Skipped)
	return sum, firstErr
}

type ReminderSummary struct {
	ExpiringLeases  int
	OverduePayments int
}

// exists aynı bağlantı için since'ten sonra bu tipte bildirim var mı
func (s *Scheduler) exists(ctx context.Context, userID uint, typ models.NotificationType, link string, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND type = ? AND related_link = ? AND created_at >= ?", userID, typ, link, since).
		Count(&count).Error
	return count > 0, err
}

// SendReminders biten sözleşmeler ve bugün gecikmeye düşen ödemeler için sahiplere bildirim üretir.
// Sözleşme başına hatırlatma süresi boyunca tek bildirim; ödeme durumu değiştirilmez.
func (s *Scheduler) SendReminders(ctx context.Context, today time.Time) (ReminderSummary, error) {
	var sum ReminderSummary
	today = models.DateOnly(today)
	days := s.cfg.LeaseExpiryDays

	leases, err := lease.Expiring(ctx, s.db, 0, today, days)
	if err != nil {
		return sum, err
	}
	var created []models.Notification
	for _, l := range leases {
		link := lease.Link(l.ID)
		ok, err := s.exists(ctx, l.Property.OwnerID, models.NotificationLeaseExpiring, link, today.AddDate(0, 0, -days))
		if err != nil {
			return sum, err
		}
		if ok {
			continue
		}
		n, err := notification.Create(ctx, s.db, notification.Input{
			UserID:  l.Property.OwnerID,
			Type:    models.NotificationLeaseExpiring,
			Title:   "Sözleşme bitiyor",
			Message: fmt.Sprintf("%s / %s sözleşmesi %d gün içinde bitiyor (%s)", l.Property.Name, l.Tenant.FullName(), l.DaysUntilExpiration(today), models.FormatDate(l.EndDate)),
			Link:    link,
		})
		if err != nil {
			return sum, err
		}
		created = append(created, n)
		sum.ExpiringLeases++
	}

	overdue, err := payment.BecameOverdue(ctx, s.db, today)
	if err != nil {
		return sum, err
	}
	for _, p := range overdue {
		link := payment.Link(p.ID)
		ok, err := s.exists(ctx, p.Property.OwnerID, models.NotificationPaymentDue, link, today)
		if err != nil {
			return sum, err
		}
		if ok {
			continue
		}
		n, err := notification.Create(ctx, s.db, notification.Input{
			UserID:  p.Property.OwnerID,
			Type:    models.NotificationPaymentDue,
			Title:   "Ödeme gecikti",
			Message: fmt.Sprintf("%s / %s: %.2f tutarındaki ödemenin vadesi %s tarihinde doldu", p.Property.Name, p.Tenant.FullName(), p.Amount, models.FormatDate(p.DueDate)),
			Link:    link,
		})
		if err != nil {
			return sum, err
		}
		created = append(created, n)
		sum.OverduePayments++
	}

	notification.Publish(ctx, created...)
	s.log.Info("Hatırlatmalar gönderildi", "expiring_leases", sum.ExpiringLeases, "overdue_payments", sum.OverduePayments)
	return sum, nil
}
