package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/phoneauth/internal/models"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, ParseLogLevel("silent"))
	assert.Equal(t, logger.Error, ParseLogLevel("ERROR"))
	assert.Equal(t, logger.Info, ParseLogLevel("info"))
	assert.Equal(t, logger.Warn, ParseLogLevel("warn"))
	assert.Equal(t, logger.Warn, ParseLogLevel("verbose"))
}

func TestEnsureDatabase_SkipsNonURLDSN(t *testing.T) {
	assert.NoError(t, ensureDatabase("host=localhost user=postgres dbname=auth"))
	assert.NoError(t, ensureDatabase("postgres://localhost:5432"))
}

func TestMigrate_CreatesIdentityTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&models.Identity{}))
	assert.True(t, db.Migrator().HasColumn(&models.Identity{}, "otp_expires_at"))
	assert.True(t, db.Migrator().HasIndex(&models.Identity{}, "idx_identities_phone_number"))

	// Idempotent.
	require.NoError(t, Migrate(db))
}
