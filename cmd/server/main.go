package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental-backend/internal/cache"
	"rental-backend/internal/config"
	"rental-backend/internal/database"
	"rental-backend/internal/events"
	"rental-backend/internal/logging"
	"rental-backend/internal/scheduler"
	"rental-backend/internal/server"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Output: os.Stdout})

	if err := cfg.Validate(); err != nil {
		log.Error("Geçersiz yapılandırma", "error", err)
		os.Exit(1)
	}

	database.Init(cfg)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		r, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.Error("Redis'e bağlanılamadı", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		rdb = r
		defer rdb.Close()
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// bildirimler veritabanında kalır, sadece dış yayın kapanır
			log.WithComponent(logging.ComponentEvents).Warn("AMQP bağlantısı kurulamadı, olaylar yayınlanmayacak", "error", err)
		} else {
			events.SetPublisher(pub)
			defer pub.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(database.DB, scheduler.Config{
		RecurringCron:   cfg.RecurringCron,
		ReminderCron:    cfg.ReminderCron,
		LeaseExpiryDays: cfg.LeaseExpiryDays,
	}, log)
	if err := sched.Start(ctx); err != nil {
		log.Error("Zamanlayıcı başlatılamadı", "error", err)
		os.Exit(1)
	}

	app := server.New(server.Deps{
		JWTSecret:      cfg.JWTSecret,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         log,
		Redis:          rdb,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	go func() {
		<-ctx.Done()
		log.Info("Kapatılıyor")
		<-sched.Stop().Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("Sunucu düzgün kapanmadı", "error", err)
		}
	}()

	log.Info("Sunucu başlıyor", "port", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Error("Sunucu hatası", "error", err)
		os.Exit(1)
	}
}
