package notification

import (
	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/httperr"
	"rental-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type NotificationResponse struct {
	ID          uint                    `json:"id"`
	Type        models.NotificationType `json:"notification_type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	IsRead      bool                    `json:"is_read"`
	RelatedLink string                  `json:"related_link"`
	CreatedAt   string                  `json:"created_at"`
}

func toResponse(n models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		IsRead:      n.IsRead,
		RelatedLink: n.RelatedLink,
		CreatedAt:   n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GET /api/notifications?unread=true&type=payment_due
func ListNotificationsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Where("user_id = ?", userID)
		if c.QueryBool("unread", false) {
			dbq = dbq.Where("is_read = ?", false)
		}
		if t := c.Query("type"); t != "" {
			dbq = dbq.Where("type = ?", t)
		}

		var items []models.Notification
		if err := dbq.Order("created_at desc").Order("id desc").Limit(200).Find(&items).Error; err != nil {
			return httperr.Internal("Bildirimler listelenemedi", err)
		}

		resp := make([]NotificationResponse, 0, len(items))
		for _, n := range items {
			resp = append(resp, toResponse(n))
		}
		return c.JSON(resp)
	}
}

// GET /api/notifications/unread-count
func UnreadCountHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		count, err := UnreadCount(c.UserContext(), database.DB, userID)
		if err != nil {
			return httperr.Internal("Bildirim sayısı alınamadı", err)
		}
		return c.JSON(fiber.Map{"unread": count})
	}
}

func findOwned(c *fiber.Ctx) (*models.Notification, error) {
	userID, err := auth.UserID(c)
	if err != nil {
		return nil, err
	}
	var n models.Notification
	if err := database.DB.Where("id = ? AND user_id = ?", c.Params("id"), userID).First(&n).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Bildirim bulunamadı")
	}
	return &n, nil
}

// POST /api/notifications/:id/read
func MarkReadHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := findOwned(c)
		if err != nil {
			return err
		}
		if !n.IsRead {
			if err := database.DB.Model(n).Update("is_read", true).Error; err != nil {
				return httperr.Internal("Bildirim güncellenemedi", err)
			}
			n.IsRead = true
		}
		return c.JSON(toResponse(*n))
	}
}

// POST /api/notifications/read-all
func MarkAllReadHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		updated, err := MarkAllRead(c.UserContext(), database.DB, userID)
		if err != nil {
			return httperr.Internal("Bildirimler güncellenemedi", err)
		}
		return c.JSON(fiber.Map{"updated": updated})
	}
}

// DELETE /api/notifications/:id
func DeleteNotificationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := findOwned(c)
		if err != nil {
			return err
		}
		if err := database.DB.Delete(n).Error; err != nil {
			return httperr.Internal("Bildirim silinemedi", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
