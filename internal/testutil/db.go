// Package testutil builds throwaway databases for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"radhiant_ops/internal/config"
	"radhiant_ops/internal/models"
)

var seq atomic.Int64

// Trucks is the fleet seeded into every test database.
var Trucks = []string{"RAD-1", "RAD-2", "RAD-3", "RAD-4", "RAD-5", "RAD-6", "RAD-7"}

// NewDB opens a private in-memory SQLite database with the full schema and
// seeded trucks. Each call gets its own database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	require.NoError(t, config.SeedTrucks(db, Trucks))
	return db
}

// CreateUser inserts an active user. An empty hash leaves the password unset.
func CreateUser(t *testing.T, db *gorm.DB, name string, role models.Role, hash string, trucks ...string) models.User {
	t.Helper()

	u := models.User{Name: name, Role: role, IsActive: true}
	if hash != "" {
		u.PasswordHash = &hash
	}
	require.NoError(t, db.Create(&u).Error)
	for _, truck := range trucks {
		require.NoError(t, db.Create(&models.UserTruckAssignment{UserID: u.ID, TruckID: truck}).Error)
	}
	return u
}
