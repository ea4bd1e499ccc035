// Package middleware route bazlı Fiber middleware'leri.
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rental-backend/internal/auth"
	"rental-backend/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	// handler bitene kadar tutulan geçici kilit
	provisionalLockTTL = 60 * time.Second
	storeTimeout       = 2 * time.Second
)

type entry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func buildKey(userID uint, method, path, key string) string {
	return fmt.Sprintf("idemp:%d:%s:%s:%s", userID, strings.ToLower(method), path, key)
}

// Idempotency aynı Idempotency-Key ile tekrarlanan aksiyon isteklerini tek sefer çalıştırır.
// Header yoksa istek olduğu gibi geçer. rdb nil ise middleware kapalıdır.
// JWT middleware'inden sonra takılmalı; anahtar kullanıcıya göre ayrılır.
func Idempotency(rdb *redis.Client, ttl time.Duration, l *logging.Logger) fiber.Handler {
	if rdb == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	log := l.WithComponent(logging.ComponentHTTP)

	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(HeaderIdempotencyKey))
		if raw == "" {
			return c.Next()
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key UUID olmalı")
		}
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		bhash := bodyHash(c.Body())
		key := buildKey(userID, c.Method(), c.Path(), id.String())

		ctx, cancel := context.WithTimeout(c.UserContext(), storeTimeout)
		defer cancel()

		payload, _ := json.Marshal(entry{InProgress: true, BodySHA256: bhash, CreatedAt: time.Now().UTC()})
		ok, err := rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
		if err != nil {
			log.Error("Idempotency deposuna yazılamadı", "key", key, "error", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "Idempotency deposu kullanılamıyor")
		}
		if !ok {
			return replay(ctx, c, rdb, key, bhash)
		}

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		code := c.Response().StatusCode()
		saveCtx, saveCancel := context.WithTimeout(context.Background(), storeTimeout)
		defer saveCancel()

		// sunucu hatasında kilit bırakılır, istemci aynı anahtarla tekrar deneyebilir
		if code >= fiber.StatusInternalServerError {
			if err := rdb.Del(saveCtx, key).Err(); err != nil {
				log.Warn("Idempotency kilidi silinemedi", "key", key, "error", err)
			}
			return nil
		}

		final, _ := json.Marshal(entry{
			Code:        code,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
			BodySHA256:  bhash,
			CreatedAt:   time.Now().UTC(),
		})
		if err := rdb.Set(saveCtx, key, final, ttl).Err(); err != nil {
			log.Warn("Idempotency cevabı kaydedilemedi", "key", key, "error", err)
		}
		return nil
	}
}

func replay(ctx context.Context, c *fiber.Ctx, rdb *redis.Client, key, bhash string) error {
	v, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// kilit bu arada düştü
		return fiber.NewError(fiber.StatusConflict, "İstek işleniyor, tekrar deneyin")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Idempotency deposu kullanılamıyor")
	}

	var cur entry
	if err := json.Unmarshal(v, &cur); err != nil {
		return fiber.NewError(fiber.StatusConflict, "Idempotency kaydı okunamadı")
	}
	if cur.BodySHA256 != bhash {
		return fiber.NewError(fiber.StatusConflict, "Idempotency-Key farklı bir istek gövdesiyle kullanılmış")
	}
	if cur.InProgress {
		return fiber.NewError(fiber.StatusConflict, "Aynı istek hâlâ işleniyor")
	}

	if cur.ContentType != "" {
		c.Set(fiber.HeaderContentType, cur.ContentType)
	}
	c.Set(HeaderReplayed, "true")
	return c.Status(cur.Code).Send(cur.Body)
}
