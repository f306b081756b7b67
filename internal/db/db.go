package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gym-access-backend/config"
	"gym-access-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	log.Println("Applying invariant-enforcing DDL...")
	if err := applyInvariantDDL(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate runs AutoMigrate for every model. Exposed separately so tests can
// migrate an in-memory database without a live Postgres.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Gym{},
		&model.Equipment{},
		&model.UserProfile{},
		&model.UsageSession{},
		&model.Reservation{},
		&model.PushSubscription{},
	)
}

// applyInvariantDDL adds partial unique indexes that back up the store's
// in-transaction checks: one open session per user, one open session per
// machine, one NOTIFIED entry per machine, and one active queue entry per
// (user, machine). The per-user session check in particular takes no row
// lock (user identity lives outside this database), so the index is the
// only guard against two concurrent starts on different machines. Postgres
// only; it runs on every Init.
func applyInvariantDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_session_per_user " +
			"ON usage_sessions (user_id) WHERE end_time IS NULL;",

		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_session_per_equipment " +
			"ON usage_sessions (equipment_id) WHERE end_time IS NULL;",

		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_notified_per_equipment " +
			"ON reservations (equipment_id) WHERE status = 'NOTIFIED';",

		"CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_entry_per_user_equipment " +
			"ON reservations (user_id, equipment_id) WHERE status IN ('WAITING', 'NOTIFIED');",

		// Keeps sweeper batch selection an index scan.
		"CREATE INDEX IF NOT EXISTS idx_reservations_notified_at " +
			"ON reservations (notified_at) WHERE status = 'NOTIFIED';",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
