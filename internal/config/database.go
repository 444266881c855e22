package config

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"radhiant_ops/internal/models"
)

// openEntryIndex backs the "one open time entry per user" rule. Partial unique
// indexes are supported by both Postgres and SQLite.
const openEntryIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_one_open_per_user
	ON time_entries (user_id) WHERE sign_out_time IS NULL`

// InitDB opens the configured database and, when enabled, migrates the schema.
func InitDB(s DBSettings, gormLog gormlogger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(s.Driver) {
	case "postgres", "":
		dialector = postgres.Open(s.PostgresDSN())
	case "sqlite":
		dsn := s.DSN
		if dsn == "" {
			dsn = "radhiant.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", s.Driver)
	}

	cfg := &gorm.Config{TranslateError: true}
	if gormLog != nil {
		cfg.Logger = gormLog
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// one writer at a time, otherwise sqlite answers "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		if s.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(s.MaxOpenConns)
		}
		if s.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(s.MaxIdleConns)
		}
		if s.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(s.ConnMaxLifetime)
		}
	}

	if s.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate applies the GORM schema plus the indexes GORM tags cannot express.
// Production Postgres uses the goose migrations instead.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Truck{},
		&models.UserTruckAssignment{},
		&models.TimeEntry{},
		&models.Booking{},
		&models.OutboxEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	if err := db.Exec(openEntryIndex).Error; err != nil {
		return fmt.Errorf("creating open entry index: %w", err)
	}
	return nil
}

// SeedTrucks inserts any configured truck that does not exist yet.
func SeedTrucks(db *gorm.DB, ids []string) error {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		truck := models.Truck{ID: id, Name: id}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&truck).Error; err != nil {
			return fmt.Errorf("seeding truck %s: %w", id, err)
		}
	}
	return nil
}
