package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"koydenal/internal/config"
	"koydenal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger(logger.Silent)})
	require.NoError(t, err)
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openTestDB(t)

	err := configurePool(db, &config.Config{DBMaxOpenConns: 10, DBMaxIdleConns: 2, DBConnMaxLifetimeMin: 15})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN_DefaultsSSLMode(t *testing.T) {
	dsn := DSN(&config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", dsn)
}

func TestMigrate_AppliesEmbeddedMigrationsOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	status, err := Status(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, status)
	for _, m := range status {
		assert.True(t, m.Applied, "migration %d should be applied", m.Version)
	}

	var count int64
	require.NoError(t, db.Model(&MigrationLog{}).Count(&count).Error)
	assert.Equal(t, int64(len(status)), count)

	assert.True(t, db.Migrator().HasTable(&models.Listing{}))
	assert.True(t, db.Migrator().HasTable(&models.AdminAction{}))
}

func TestPersistentModels_IncludesWorkflowTables(t *testing.T) {
	var hasListing, hasAudit bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *models.Listing:
			hasListing = true
		case *models.AdminAction:
			hasAudit = true
		}
	}
	assert.True(t, hasListing)
	assert.True(t, hasAudit)
}

func TestGormLogger_SlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	l := &slogGormLogger{
		logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		Config: logger.Config{SlowThreshold: 100 * time.Millisecond, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true},
	}
	ctx := context.Background()
	stmt := func() (string, int64) { return "select * from listings", 3 }

	l.Trace(ctx, time.Now(), stmt, nil)
	assert.Zero(t, buf.Len(), "fast statements stay quiet at warn level")

	l.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len())

	l.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "GORM slow query")
	assert.Contains(t, buf.String(), `"statement":"SELECT"`)

	buf.Reset()
	l.Trace(ctx, time.Now(), stmt, errors.New("deadlock detected"))
	assert.Contains(t, buf.String(), "GORM query error")
}

func TestTruncateSQL(t *testing.T) {
	long := strings.Repeat("x", maxLoggedSQL+10)
	assert.Len(t, truncateSQL(long), maxLoggedSQL+len("...(truncated)"))
	assert.Equal(t, "select 1", truncateSQL("select 1"))
}
