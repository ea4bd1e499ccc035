package models

import "time"

type NotificationType string

const (
	NotificationPaymentDue      NotificationType = "payment_due"
	NotificationPaymentReceived NotificationType = "payment_received"
	NotificationLeaseExpiring   NotificationType = "lease_expiring"
	NotificationLease           NotificationType = "lease"
	NotificationMaintenance     NotificationType = "maintenance"
	NotificationSystem          NotificationType = "system"
)

type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"index;not null" json:"user_id"`
	User        User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type        NotificationType `gorm:"size:30;index;not null" json:"notification_type"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	IsRead      bool             `gorm:"index;not null" json:"is_read"`
	RelatedLink string           `gorm:"size:255" json:"related_link"`
	CreatedAt   time.Time        `json:"created_at"`
}
