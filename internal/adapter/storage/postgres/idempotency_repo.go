package postgres

import (
	"context"
	"errors"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const (
	insertIdempotencyLog = `INSERT INTO idempotency_logs (key, resource_id, response_json, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`

	selectIdempotencyLog = `SELECT resource_id, response_json, created_at
		FROM idempotency_logs WHERE key = $1`
)

// IdempotencyRepo keeps the first response recorded for each scoped key.
// The row is written in the same transaction as the mutation it describes.
type IdempotencyRepo struct {
	pool Pool
}

func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create records entry. A concurrent writer holding the same key blocks the
// insert until it commits; the insert then affects no rows and Create
// reports ports.ErrIdempotencyConflict without aborting tx.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.IdempotencyLog) error {
	if entry.Key == "" {
		return errors.New("insert idempotency log: empty key")
	}

	tag, err := tx.Exec(ctx, insertIdempotencyLog, entry.Key, entry.ResourceID, entry.ResponseJSON, entry.CreatedAt)
	if err != nil {
		return classify("insert idempotency log", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrIdempotencyConflict
	}
	return nil
}

// Get returns nil, nil for an unused key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	entry := &domain.IdempotencyLog{Key: key}
	err := r.pool.QueryRow(ctx, selectIdempotencyLog, key).
		Scan(&entry.ResourceID, &entry.ResponseJSON, &entry.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, classify("get idempotency log", err)
	}
	return entry, nil
}
