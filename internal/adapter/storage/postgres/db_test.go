package postgres

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"purposepay/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	body, err := fs.ReadFile(migrationsFS, files[0])
	require.NoError(t, err)
	sql := string(body)

	assert.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	assert.Contains(t, sql, "-- +goose Down")
	for _, table := range []string{"wallets", "vouchers", "redemptions", "vendors", "vendor_finances", "ledger_entries", "idempotency_logs", "audit_logs"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}

func TestMigrations_VoucherInvariantConstraints(t *testing.T) {
	body, err := fs.ReadFile(migrationsFS, "migrations/00001_init.sql")
	require.NoError(t, err)
	sql := string(body)

	assert.Contains(t, sql, "escrow_balance >= 0 AND escrow_balance <= remaining_balance AND remaining_balance <= initial_amount")
	assert.Contains(t, sql, "remaining_balance > 0 OR status = 'LOCKED'")
	assert.Contains(t, sql, "code              VARCHAR(14)   NOT NULL UNIQUE")
}

func TestMigrations_VendorContactColumns(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)

	body, err := fs.ReadFile(migrationsFS, "migrations/00002_vendor_contact.sql")
	require.NoError(t, err)
	sql := string(body)

	for _, col := range []string{"city", "gps_code", "phone_number"} {
		assert.Contains(t, sql, "ADD COLUMN IF NOT EXISTS "+col+" ", col)
		assert.Contains(t, sql, "DROP COLUMN IF EXISTS "+col, col)
	}
	assert.Contains(t, sql, "lower(city)")
}

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "db", Port: 5432, User: "ppay", Password: "secret", DBName: "purposepay", SSLMode: "disable",
		MaxConns: 8, MinConns: 2, ConnMaxLifetime: time.Hour,
	}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(8), poolCfg.MaxConns)
	assert.Equal(t, int32(2), poolCfg.MinConns)
	assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
	assert.Equal(t, "purposepay", poolCfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "db", poolCfg.ConnConfig.Host)
}

func TestPoolConfig_MinAboveMaxIgnored(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", DBName: "d", SSLMode: "disable", MaxConns: 2, MinConns: 5}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(2), poolCfg.MaxConns)
	assert.Equal(t, int32(0), poolCfg.MinConns)
}
