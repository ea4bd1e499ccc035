// rentalctl bakım işleri için komut satırı aracı
package main

import (
	"fmt"
	"io"
	"os"

	"rental-backend/internal/config"
	"rental-backend/internal/database"
	"rental-backend/internal/logging"
	"rental-backend/internal/models"
	"rental-backend/internal/notification"
	"rental-backend/internal/payment"
	"rental-backend/internal/scheduler"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type opener func(cfg *config.Config) (*gorm.DB, error)

func openPostgres(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(postgres.Open(cfg.DatabaseDSN))
}

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Output: os.Stderr})

	if err := newRootCmd(cfg, openPostgres).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "rentalctl",
		Short:         "Kiralama servisi bakım araçları",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(cfg, open),
		generatePaymentsCmd(cfg, open),
		sendRemindersCmd(cfg, open),
	)
	return root
}

func migrateCmd(cfg *config.Config, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Tabloları oluşturur/günceller",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open(cfg)
			if err != nil {
				return fmt.Errorf("veritabanına bağlanılamadı: %w", err)
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migration hatası: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migration tamamlandı.")
			return nil
		},
	}
}

func generatePaymentsCmd(cfg *config.Config, open opener) *cobra.Command {
	var (
		ownerID     uint
		dueDate     string
		propertyIDs []uint
	)
	cmd := &cobra.Command{
		Use:   "generate-payments",
		Short: "Aktif sözleşmeler için bu ayın kira ödemelerini üretir",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open(cfg)
			if err != nil {
				return fmt.Errorf("veritabanına bağlanılamadı: %w", err)
			}
			ctx, today := cmd.Context(), models.Today()

			var res *payment.RecurringResult
			if dueDate != "" {
				due, err := models.ParseDate(dueDate)
				if err != nil {
					return fmt.Errorf("--due-date YYYY-MM-DD olmalı: %w", err)
				}
				res, err = payment.CreateRecurring(ctx, db, ownerID, propertyIDs, due, today)
				if err != nil {
					return err
				}
			} else {
				if res, err = payment.CreateRecurringForMonth(ctx, db, ownerID, today, today); err != nil {
					return err
				}
			}
			notification.Publish(ctx, res.Notifications...)
			printRecurring(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().UintVar(&ownerID, "owner", 0, "mülk sahibinin kullanıcı id'si")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "vade tarihi (YYYY-MM-DD); boşsa tüm mülklerde her sözleşmenin ödeme günü")
	cmd.Flags().UintSliceVar(&propertyIDs, "property", nil, "mülk id'si, --due-date ile birlikte zorunlu (tekrarlanabilir)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.MarkFlagsRequiredTogether("due-date", "property")
	return cmd
}

func printRecurring(w io.Writer, res *payment.RecurringResult) {
	fmt.Fprintf(w, "%d ödeme oluşturuldu, %d sözleşme atlandı\n", len(res.Created), res.Skipped)
	for _, p := range res.Created {
		fmt.Fprintf(w, "  #%d mülk=%d kiracı=%d vade=%s tutar=%.2f\n", p.ID, p.PropertyID, p.TenantID, models.FormatDate(p.DueDate), p.Amount)
	}
}

func sendRemindersCmd(cfg *config.Config, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "send-reminders",
		Short: "Biten sözleşme ve geciken ödeme hatırlatmalarını üretir",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open(cfg)
			if err != nil {
				return fmt.Errorf("veritabanına bağlanılamadı: %w", err)
			}
			s := scheduler.New(db, scheduler.Config{LeaseExpiryDays: cfg.LeaseExpiryDays}, logging.L())
			sum, err := s.SendReminders(cmd.Context(), models.Today())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d sözleşme hatırlatması, %d gecikme bildirimi\n", sum.ExpiringLeases, sum.OverduePayments)
			return nil
		},
	}
}
