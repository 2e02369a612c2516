package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3002, c.ServerPort)
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "./data", c.DataDir)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:5174"}, c.FrontendURLs)
	assert.Equal(t, DevelopmentJWTSecret, c.JWTSecret)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, 5*time.Second, c.LockTimeout)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, 0.1, c.StampRangeKm)
	assert.Equal(t, "", c.CatalogPath)
	assert.Equal(t, "0 4 * * *", c.BackupCron)
	assert.Equal(t, 7, c.BackupRetain)
	assert.True(t, c.BackupsEnabled())
	assert.False(t, c.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATA_DIR", "/var/lib/stamprally")
	t.Setenv("FRONTEND_URL", "https://rally.example.com")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("STAMP_RANGE_KM", "0.25")
	t.Setenv("BACKUP_CRON", "off")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, c.ServerPort)
	assert.Equal(t, "/var/lib/stamprally", c.DataDir)
	assert.Equal(t, []string{"https://rally.example.com"}, c.FrontendURLs)
	assert.Equal(t, 250*time.Millisecond, c.LockTimeout)
	assert.Equal(t, 0.25, c.StampRangeKm)
	assert.False(t, c.BackupsEnabled())
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.IsProduction())
	assert.Equal(t, "s3cret", c.JWTSecret)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PORT", "3002")
	t.Setenv("STAMP_RANGE_KM", "-1")
	_, err = Load()
	assert.Error(t, err)
}
