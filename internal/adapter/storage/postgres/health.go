package postgres

import (
	"context"
	"errors"
	"time"
)

const (
	healthTimeout = 2 * time.Second

	// ledger_entries only exists once the initial migration has run.
	schemaProbe = `SELECT to_regclass('public.ledger_entries') IS NOT NULL`
)

// ErrSchemaMissing is reported by /health when migrations have not run.
var ErrSchemaMissing = errors.New("ledger schema not migrated")

// HealthCheck pings the pool and the presence of the ledger schema.
type HealthCheck struct {
	pool    Pool
	timeout time.Duration
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool, timeout: healthTimeout}
}

func (h *HealthCheck) Name() string { return "postgresql" }

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var migrated bool
	if err := h.pool.QueryRow(ctx, schemaProbe).Scan(&migrated); err != nil {
		return classify("health check", err)
	}
	if !migrated {
		return ErrSchemaMissing
	}
	return nil
}
