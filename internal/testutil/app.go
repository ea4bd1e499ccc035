package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rental-backend/internal/auth"
	"rental-backend/internal/httperr"
	"rental-backend/internal/logging"
	"rental-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// NewApp JWT yerine kullanıcıyı doğrudan Locals'a yazan bir test uygulaması kurar
func NewApp(userID uint, register func(r fiber.Router)) *fiber.App {
	return NewAppWithLog(userID, io.Discard, register)
}

// NewAppWithLog NewApp gibi, ama hata logları w'ya yazılır
func NewAppWithLog(userID uint, w io.Writer, register func(r fiber.Router)) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: httperr.Handler(logging.New(logging.Config{Output: w})),
	})
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, userID)
		c.Locals(auth.CtxUserRoleKey, models.RoleOwner)
		return c.Next()
	})
	register(api)
	return app
}

// Do isteği çalıştırır; body nil değilse JSON olarak gönderir
func Do(t *testing.T, app *fiber.App, method, path string, body any, headers ...map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Decode cevap gövdesini v'ye çözer
func Decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// ReadBody ham gövde
func ReadBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return b
}
