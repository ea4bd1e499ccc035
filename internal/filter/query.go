// Package filter parses list-view query parameters into typed values.
// Malformed values are reported as field validation errors instead of being silently dropped.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rental-backend/internal/models"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Query tek bir istek için parse hatalarını biriktirir
type Query struct {
	c    *fiber.Ctx
	errs validation.Error
}

func New(c *fiber.Ctx) *Query {
	return &Query{c: c, errs: validation.Error{Message: "Geçersiz filtre"}}
}

// Err biriken hataları döner (yoksa nil)
func (q *Query) Err() error {
	return q.errs.OrNil()
}

func (q *Query) String(key string) string {
	return strings.TrimSpace(q.c.Query(key))
}

// Date YYYY-MM-DD
func (q *Query) Date(key string) *time.Time {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		q.errs.Add(key, "tarih YYYY-MM-DD formatında olmalı")
		return nil
	}
	return &d
}

func (q *Query) Uint(key string) *uint {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	var v uint
	if _, err := fmt.Sscan(raw, &v); err != nil || v == 0 {
		q.errs.Add(key, "geçerli bir id olmalı")
		return nil
	}
	return &v
}

// Uints virgülle ayrılmış id listesi: ?property_ids=1,2,3
func (q *Query) Uints(key string) []uint {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	out, err := ParseIDs(raw)
	if err != nil {
		q.errs.Add(key, "virgülle ayrılmış id listesi olmalı")
		return nil
	}
	return out
}

func (q *Query) Float(key string) *float64 {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.errs.Add(key, "sayı olmalı")
		return nil
	}
	return &v
}

func (q *Query) Int(key string) *int {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.errs.Add(key, "tam sayı olmalı")
		return nil
	}
	return &v
}

// Bool "true/false", "yes/no", "1/0"
func (q *Query) Bool(key string) *bool {
	raw := strings.ToLower(q.String(key))
	switch raw {
	case "":
		return nil
	case "true", "yes", "1":
		v := true
		return &v
	case "false", "no", "0":
		v := false
		return &v
	}
	q.errs.Add(key, "true/false olmalı")
	return nil
}

// Sort izinli alanlardan birini ORDER BY ifadesine çevirir; "-" öneki azalan sıralama.
// Bilinmeyen değerler varsayılana düşer.
func (q *Query) Sort(key string, allowed map[string]string, def string) string {
	raw := q.String(key)
	if raw == "" {
		return def
	}
	desc := strings.HasPrefix(raw, "-")
	col, ok := allowed[strings.TrimPrefix(raw, "-")]
	if !ok {
		return def
	}
	if desc {
		return col + " desc"
	}
	return col + " asc"
}

func ParseIDs(raw string) ([]uint, error) {
	parts := strings.Split(raw, ",")
	out := make([]uint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil || v == 0 {
			return nil, fmt.Errorf("geçersiz id: %q", p)
		}
		out = append(out, uint(v))
	}
	return out, nil
}
