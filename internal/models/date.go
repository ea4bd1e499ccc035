package models

import (
	"strings"
	"time"
)

// DateLayout API ve export'larda kullanılan gün formatı
const DateLayout = "2006-01-02"

// DateOnly saat bilgisini atar ve günü UTC gece yarısına sabitler.
// Tüm tarih kolonları bu formda saklanır, böylece karşılaştırmalar sürücüden bağımsız kalır.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Today() time.Time {
	return DateOnly(time.Now())
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// ParseOptionalDate boş string için nil döner
func ParseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// MonthBounds ayın ilk günü ve bir sonraki ayın ilk gününü döner: [first, next)
func MonthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, 0)
}

// YearBounds yılın ilk günü ve bir sonraki yılın ilk günü: [first, next)
func YearBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(1, 0, 0)
}

// ClampDay verilen günü ayın son gününe sığdırır (ör. 31 -> 28 Şubat)
func ClampDay(year int, month time.Month, day int) time.Time {
	if day < 1 {
		day = 1
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
