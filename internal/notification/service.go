package notification

import (
	"context"
	"fmt"

	"rental-backend/internal/events"
	"rental-backend/internal/models"

	"gorm.io/gorm"
)

type Input struct {
	UserID  uint
	Type    models.NotificationType
	Title   string
	Message string
	Link    string
}

// Create bildirimi çağıranın transaction'ı içinde kaydeder
func Create(ctx context.Context, tx *gorm.DB, in Input) (models.Notification, error) {
	n := models.Notification{
		UserID:      in.UserID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		RelatedLink: in.Link,
	}
	if err := tx.WithContext(ctx).Create(&n).Error; err != nil {
		return n, fmt.Errorf("bildirim kaydedilemedi: %w", err)
	}
	return n, nil
}

// Publish commit sonrası bildirimleri olay olarak yayınlar
func Publish(ctx context.Context, notifications ...models.Notification) {
	for _, n := range notifications {
		if n.ID == 0 {
			continue
		}
		events.Publish(ctx, events.Event{
			Type:       events.TypeNotificationCreated,
			UserID:     n.UserID,
			EntityType: "notification",
			EntityID:   n.ID,
			Payload: map[string]any{
				"notification_type": n.Type,
				"title":             n.Title,
				"message":           n.Message,
				"related_link":      n.RelatedLink,
			},
		})
	}
}

func UnreadCount(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkAllRead okunmamış bildirimleri okundu yapar, etkilenen satır sayısını döner
func MarkAllRead(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	res := db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
