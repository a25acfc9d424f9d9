package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "estate", User: "postgres", Password: "secret"},
		Server:   ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
		Security: SecurityConfig{PasswordMinLength: 8, BcryptCost: 12},
		JWT: JWTConfig{
			SecretKey:       "0123456789abcdef0123456789abcdef",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: time.Hour,
			CompanyTokenTTL: time.Hour,
			Issuer:          "estate-registry",
			Audience:        "estate-registry-api",
		},
		Logging:    LoggingConfig{Level: "info", Output: "stdout"},
		Allocation: AllocationConfig{MaxRetries: 3, RetryBackoff: 10 * time.Millisecond, LockMode: LockModeRowLock},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	require.NoError(t, ValidateProductionConfig(validConfig()))

	tests := []struct {
		name    string
		mutate  func(cfg *ProductionConfig)
		message string
	}{
		{name: "short secret", mutate: func(c *ProductionConfig) { c.JWT.SecretKey = "short" }, message: "JWT_SECRET_KEY"},
		{name: "unknown lock mode", mutate: func(c *ProductionConfig) { c.Allocation.LockMode = "advisory" }, message: "ALLOC_LOCK_MODE"},
		{name: "negative retries", mutate: func(c *ProductionConfig) { c.Allocation.MaxRetries = -1 }, message: "ALLOC_MAX_RETRIES"},
		{name: "bad log level", mutate: func(c *ProductionConfig) { c.Logging.Level = "trace" }, message: "LOG_LEVEL"},
		{name: "half admin bootstrap", mutate: func(c *ProductionConfig) { c.Admin.Username = "root" }, message: "ADMIN_USERNAME"},
		{name: "missing db password", mutate: func(c *ProductionConfig) { c.Database.Password = "" }, message: "DB_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadEnvFileKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ALLOC_LOCK_MODE=optimistic\nALLOC_MAX_RETRIES=7\n"), 0o600))

	t.Setenv("ALLOC_MAX_RETRIES", "2")
	// registered with Setenv so the variable is restored after the test
	t.Setenv("ALLOC_LOCK_MODE", "")
	require.NoError(t, os.Unsetenv("ALLOC_LOCK_MODE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "optimistic", getEnvString("ALLOC_LOCK_MODE", LockModeRowLock))
	assert.Equal(t, 2, getEnvInt("ALLOC_MAX_RETRIES", 3))

	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_ALLOC_BACKOFF", "50ms")
	t.Setenv("TEST_ORIGINS", " a.com, ,b.com ")
	t.Setenv("TEST_BROKEN_INT", "x")

	assert.Equal(t, 50*time.Millisecond, getEnvDuration("TEST_ALLOC_BACKOFF", time.Second))
	assert.Equal(t, []string{"a.com", "b.com"}, getEnvStringSlice("TEST_ORIGINS", nil))
	assert.Equal(t, 4, getEnvInt("TEST_BROKEN_INT", 4))
	assert.True(t, getEnvBool("TEST_UNSET_BOOL", true))
}

func TestDatabaseDSN(t *testing.T) {
	dsn := validConfig().Database.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=estate")
	assert.Contains(t, dsn, "TimeZone=UTC")
}
