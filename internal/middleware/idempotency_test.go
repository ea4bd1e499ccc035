package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"rental-backend/internal/logging"
	"rental-backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "3f8a2c1e-5b7d-4c9a-8e6f-1a2b3c4d5e6f"

func setup(t *testing.T, handler fiber.Handler) (*miniredis.Miniredis, *fiber.App) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mw := Idempotency(rdb, time.Hour, logging.New(logging.Config{Output: io.Discard}))
	app := testutil.NewApp(7, func(r fiber.Router) {
		r.Post("/payments/:id/mark-paid", mw, handler)
	})
	return mr, app
}

func counting(calls *int, status int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		*calls++
		return c.Status(status).JSON(fiber.Map{"call": *calls})
	}
}

func TestIdempotency_Replay(t *testing.T) {
	calls := 0
	mr, app := setup(t, counting(&calls, fiber.StatusOK))
	hdr := map[string]string{HeaderIdempotencyKey: key}
	body := map[string]any{"payment_method": "cash"}

	first := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", body, hdr)
	require.Equal(t, 200, first.StatusCode)
	firstBody := testutil.ReadBody(t, first)

	again := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", body, hdr)
	require.Equal(t, 200, again.StatusCode)
	assert.Equal(t, "true", again.Header.Get(HeaderReplayed))
	assert.Equal(t, firstBody, testutil.ReadBody(t, again))
	assert.Equal(t, 1, calls)

	// TTL kaydedilen süreye çekilmiş olmalı
	assert.Greater(t, mr.TTL(buildKey(7, "POST", "/api/payments/1/mark-paid", key)), time.Minute)

	// farklı path ayrı anahtar
	other := testutil.Do(t, app, http.MethodPost, "/api/payments/2/mark-paid", body, hdr)
	assert.Equal(t, 200, other.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_BodyMismatch(t *testing.T) {
	calls := 0
	_, app := setup(t, counting(&calls, fiber.StatusOK))
	hdr := map[string]string{HeaderIdempotencyKey: key}

	testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", map[string]any{"a": 1}, hdr)
	resp := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", map[string]any{"a": 2}, hdr)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_InFlight(t *testing.T) {
	calls := 0
	mr, app := setup(t, counting(&calls, fiber.StatusOK))

	payload, err := json.Marshal(entry{InProgress: true, BodySHA256: bodyHash(nil)})
	require.NoError(t, err)
	require.NoError(t, mr.Set(buildKey(7, "POST", "/api/payments/1/mark-paid", key), string(payload)))

	resp := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil, map[string]string{HeaderIdempotencyKey: key})
	assert.Equal(t, 409, resp.StatusCode)
	assert.Zero(t, calls)
}

func TestIdempotency_InvalidAndMissingKey(t *testing.T) {
	calls := 0
	_, app := setup(t, counting(&calls, fiber.StatusOK))

	resp := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil, map[string]string{HeaderIdempotencyKey: "abc"})
	assert.Equal(t, 400, resp.StatusCode)

	testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil)
	testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil)
	assert.Equal(t, 2, calls, "header olmadan her istek çalışır")
}

func TestIdempotency_ErrorResponsesReplayed(t *testing.T) {
	calls := 0
	_, app := setup(t, func(c *fiber.Ctx) error {
		calls++
		return fiber.NewError(fiber.StatusConflict, "Ödeme zaten ödenmiş")
	})
	hdr := map[string]string{HeaderIdempotencyKey: key}

	first := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil, hdr)
	assert.Equal(t, 409, first.StatusCode)
	again := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil, hdr)
	assert.Equal(t, 409, again.StatusCode)
	assert.Equal(t, "true", again.Header.Get(HeaderReplayed))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ServerErrorReleasesLock(t *testing.T) {
	calls := 0
	mr, app := setup(t, counting(&calls, fiber.StatusInternalServerError))
	hdr := map[string]string{HeaderIdempotencyKey: key}

	testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil, hdr)
	assert.False(t, mr.Exists(buildKey(7, "POST", "/api/payments/1/mark-paid", key)))
	testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil, hdr)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_StoreDown(t *testing.T) {
	calls := 0
	mr, app := setup(t, counting(&calls, fiber.StatusOK))
	mr.Close()

	resp := testutil.Do(t, app, http.MethodPost, "/api/payments/1/mark-paid", nil, map[string]string{HeaderIdempotencyKey: key})
	assert.Equal(t, 503, resp.StatusCode)
	assert.Zero(t, calls)
}

func TestIdempotency_Disabled(t *testing.T) {
	calls := 0
	app := testutil.NewApp(7, func(r fiber.Router) {
		r.Post("/x", Idempotency(nil, time.Hour, nil), counting(&calls, fiber.StatusOK))
	})
	testutil.Do(t, app, http.MethodPost, "/api/x", nil, map[string]string{HeaderIdempotencyKey: key})
	testutil.Do(t, app, http.MethodPost, "/api/x", nil, map[string]string{HeaderIdempotencyKey: key})
	assert.Equal(t, 2, calls)
}
