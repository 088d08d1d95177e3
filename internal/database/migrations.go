package database

import (
	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/queue"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate runs database migrations. New schema changes get appended as
// gormigrate steps; a fresh database is built in one shot via InitSchema.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608010001_background_jobs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&queue.Job{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("jobs")
			},
		},
		{
			ID: "202608010002_anomaly_alerts",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.AnomalyAlert{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("anomaly_alerts")
			},
		},
		{
			ID: "202608300003_alert_day_bucket",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.AnomalyAlert{})
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Migrator().DropIndex(&models.AnomalyAlert{}, "idx_alerts_metric_day"); err != nil {
					return err
				}
				return tx.Migrator().DropColumn(&models.AnomalyAlert{}, "detected_on")
			},
		},
	})

	m.InitSchema(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			// Verification core
			&models.Tenant{},
			&models.VerificationDocument{},
			&models.VerificationReview{},
			&models.Appeal{},

			// Compliance and monitoring
			&models.AuditEntry{},
			&models.AnomalyAlert{},

			// Background processing
			&queue.Job{},
		)
	})

	return m.Migrate()
}
