package audit

import (
	"encoding/json"
	"fmt"

	"rental-backend/internal/auth"
	"rental-backend/internal/database"
	"rental-backend/internal/logging"
	"rental-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := database.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// Record istekteki kullanıcı adına log yazar. Hata isteği bozmaz, sadece loglanır.
func Record(c *fiber.Ctx, entityType string, entityID uint, action models.AuditAction, description string, before, after any) {
	userID, err := auth.UserID(c)
	if err != nil {
		return
	}

	var user models.User
	userName := ""
	if err := database.DB.Select("id", "name").First(&user, userID).Error; err == nil {
		userName = user.Name
	}

	if logErr := WriteLog(LogOptions{
		UserID:      userID,
		UserName:    userName,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	}); logErr != nil {
		logging.L().WithComponent(logging.ComponentAudit).Warn("Audit log yazılamadı",
			"entity_type", entityType, "entity_id", entityID, "error", logErr)
	}
}
