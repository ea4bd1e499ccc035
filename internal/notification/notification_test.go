package notification

import (
	"context"
	"strconv"
	"testing"

	"rental-backend/internal/events"
	"rental-backend/internal/models"
	"rental-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ events []events.Event }

func (r *recorder) Publish(_ context.Context, evt events.Event) error {
	r.events = append(r.events, evt)
	return nil
}
func (r *recorder) Close() error { return nil }

func routes(r fiber.Router) {
	r.Get("/notifications", ListNotificationsHandler())
	r.Get("/notifications/unread-count", UnreadCountHandler())
	r.Post("/notifications/read-all", MarkAllReadHandler())
	r.Post("/notifications/:id/read", MarkReadHandler())
	r.Delete("/notifications/:id", DeleteNotificationHandler())
}

func TestCreateAndPublish(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db)
	rec := &recorder{}
	prev := events.SetPublisher(rec)
	t.Cleanup(func() { events.SetPublisher(prev) })

	n, err := Create(context.Background(), db, Input{
		UserID: user.ID, Type: models.NotificationPaymentDue, Title: "Ödeme bekleniyor", Link: "/payments/1",
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.False(t, n.IsRead)

	Publish(context.Background(), n, models.Notification{})

	require.Len(t, rec.events, 1, "kaydedilmemiş bildirim yayınlanmamalı")
	assert.Equal(t, events.TypeNotificationCreated, rec.events[0].Type)
	assert.Equal(t, n.ID, rec.events[0].EntityID)
}

func TestHandlers_ScopedToUser(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db)
	other := testutil.CreateUser(t, db)

	mine1, _ := Create(ctx, db, Input{UserID: user.ID, Type: models.NotificationLease, Title: "a"})
	_, _ = Create(ctx, db, Input{UserID: user.ID, Type: models.NotificationPaymentDue, Title: "b"})
	theirs, _ := Create(ctx, db, Input{UserID: other.ID, Type: models.NotificationLease, Title: "c"})

	app := testutil.NewApp(user.ID, routes)

	var list []NotificationResponse
	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/notifications", nil), &list)
	assert.Len(t, list, 2)

	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/notifications?type=lease", nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, mine1.ID, list[0].ID)

	assert.Equal(t, 404, testutil.Do(t, app, "POST", "/api/notifications/"+itoa(theirs.ID)+"/read", nil).StatusCode)

	resp := testutil.Do(t, app, "POST", "/api/notifications/"+itoa(mine1.ID)+"/read", nil)
	require.Equal(t, 200, resp.StatusCode)

	var count map[string]int64
	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/notifications/unread-count", nil), &count)
	assert.Equal(t, int64(1), count["unread"])

	var updated map[string]int64
	testutil.Decode(t, testutil.Do(t, app, "POST", "/api/notifications/read-all", nil), &updated)
	assert.Equal(t, int64(1), updated["updated"])

	testutil.Decode(t, testutil.Do(t, app, "GET", "/api/notifications?unread=true", nil), &list)
	assert.Empty(t, list)

	assert.Equal(t, 204, testutil.Do(t, app, "DELETE", "/api/notifications/"+itoa(mine1.ID), nil).StatusCode)

	otherCount, err := UnreadCount(ctx, db, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherCount)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
