package database

import (
	"fmt"
	"log"
	"time"

	"rental-backend/internal/config"
	"rental-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	db, err := Open(postgres.Open(cfg.DatabaseDSN))
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}
	if err := Migrate(db); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}
	DB = db
	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Open verilen dialector ile bağlanır, havuz ayarlarını yapar ve ping atar
func Open(dial gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Migrate tüm tabloları oluşturur/günceller
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Tenant{},
		&models.Lease{},
		&models.PaymentCategory{},
		&models.Payment{},
		&models.LateFee{},
		&models.ExpenseCategory{},
		&models.Vendor{},
		&models.Expense{},
		&models.Notification{},
		&models.AuditLog{},
	)
}

// ForUpdate satır kilidi ekler. SQLite FOR UPDATE desteklemediği için sadece Postgres'te uygulanır;
// SQLite zaten tek yazıcı ile çalışır.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
