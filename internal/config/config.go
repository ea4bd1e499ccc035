package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=rental port=5432 sslmode=disable"

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET tanımlanmamış")
	ErrShortJWTSecret   = errors.New("JWT_SECRET en az 32 karakter olmalı")
	ErrMissingDSN       = errors.New("DATABASE_DSN boş olamaz")
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	LogLevel    string

	// Idempotency (Redis). RedisAddr boşsa middleware devre dışı.
	RedisAddr      string
	RedisDB        int
	IdempotencyTTL time.Duration

	// Bildirim olayları (RabbitMQ). AMQPURL boşsa olaylar yayınlanmaz.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Zamanlanmış işler. Boş cron ifadesi işi kapatır.
	RecurringCron   string
	ReminderCron    string
	LeaseExpiryDays int
}

func Load() *Config {
	// .env dosyası opsiyonel (local development)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:     getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		CORSOrigins:     getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		IdempotencyTTL:  getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "rental.events"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "rental.notifications"),
		RecurringCron:   getEnv("RECURRING_CRON", "0 6 1 * *"),
		ReminderCron:    getEnv("REMINDER_CRON", "0 8 * * *"),
		LeaseExpiryDays: getEnvInt("LEASE_EXPIRY_DAYS", 30),
	}

	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN varsayılan değer kullanılıyor, production için kendi Postgres bağlantı bilgini tanımla.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS varsayılan değer kullanılıyor, production için kendi domain'ini tanımla.")
	}
	if cfg.RedisAddr == "" {
		log.Println("[WARN] REDIS_ADDR tanımlı değil, Idempotency-Key kontrolü kapalı.")
	}

	return cfg
}

// Validate server'ın ayağa kalkması için zorunlu ayarları kontrol eder
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWTSecret) < 32 {
		return ErrShortJWTSecret
	}
	if c.DatabaseDSN == "" {
		return ErrMissingDSN
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] %s sayı değil (%q), varsayılan %d kullanılıyor", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[WARN] %s süre değil (%q), varsayılan %s kullanılıyor", key, v, def)
		return def
	}
	return d
}
