package audit

import (
	"testing"

	"rental-backend/internal/models"
	"rental-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLog_NullDefaults(t *testing.T) {
	db := testutil.UseGlobalDB(t)

	require.NoError(t, WriteLog(LogOptions{
		UserID:     1,
		EntityType: "property",
		EntityID:   9,
		Action:     models.AuditActionCreate,
		After:      map[string]any{"name": "Ev"},
	}))

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "null", entry.BeforeData)
	assert.JSONEq(t, `{"name":"Ev"}`, entry.AfterData)
}

func TestRecordAndList_ScopedToUser(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	owner := testutil.CreateUser(t, db)
	other := testutil.CreateUser(t, db)

	require.NoError(t, WriteLog(LogOptions{UserID: other.ID, EntityType: "lease", EntityID: 1, Action: models.AuditActionCreate}))

	app := testutil.NewApp(owner.ID, func(r fiber.Router) {
		r.Post("/touch/:id", func(c *fiber.Ctx) error {
			id, _ := c.ParamsInt("id")
			Record(c, "lease", uint(id), models.AuditActionUpdate, "güncellendi", nil, map[string]int{"id": id})
			return c.SendStatus(fiber.StatusNoContent)
		})
		r.Get("/audit-logs", ListAuditLogsHandler())
	})

	require.Equal(t, 204, testutil.Do(t, app, "POST", "/api/touch/5", nil).StatusCode)

	resp := testutil.Do(t, app, "GET", "/api/audit-logs?entity_type=lease", nil)
	require.Equal(t, 200, resp.StatusCode)
	var logs []AuditLogResponse
	testutil.Decode(t, resp, &logs)

	require.Len(t, logs, 1)
	assert.Equal(t, uint(5), logs[0].EntityID)
	assert.Equal(t, owner.Name, logs[0].UserName)
	assert.Equal(t, models.AuditActionUpdate, logs[0].Action)
}
