package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

func utcNow() time.Time { return time.Now().UTC() }

// storageError converts a repository failure into an AppError. Lock failures
// are retryable and surface as 503. A column overflow is the caller's amount.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, ports.ErrLockUnavailable):
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, ports.ErrAmountOutOfRange):
		appErr := apperror.ErrBalanceLimit()
		appErr.Err = fmt.Errorf("%s: %w", op, err)
		return appErr
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

// idempotency implements the two-layer replay check: Redis first, then the
// idempotency_logs table. The log row is written inside the mutating
// transaction and mirrored to Redis after commit.
type idempotency struct {
	repo  ports.IdempotencyRepository
	cache ports.IdempotencyCache // nil when Redis is disabled
	log   zerolog.Logger
}

// lookup returns the recorded response for key, or nil.
func (i idempotency) lookup(ctx context.Context, key string) ([]byte, error) {
	if i.cache != nil {
		cached, err := i.cache.Get(ctx, key)
		if err != nil {
			i.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return cached, nil
		}
	}

	entry, err := i.repo.Get(ctx, key)
	if err != nil {
		return nil, storageError("db idempotency check", err)
	}
	if entry == nil {
		return nil, nil
	}
	return entry.ResponseJSON, nil
}

// record writes the response for key in tx and returns its JSON form.
// A concurrent writer of the same key yields ports.ErrIdempotencyConflict.
func (i idempotency) record(ctx context.Context, tx pgx.Tx, key string, resourceID uuid.UUID, resp any, now time.Time) ([]byte, error) {
	respJSON, err := json.Marshal(resp)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	entry := &domain.IdempotencyLog{
		Key:          key,
		ResourceID:   resourceID,
		ResponseJSON: respJSON,
		CreatedAt:    now,
	}
	if err := i.repo.Create(ctx, tx, entry); err != nil {
		if errors.Is(err, ports.ErrIdempotencyConflict) {
			return nil, err
		}
		return nil, storageError("save idempotency log", err)
	}
	return respJSON, nil
}

// remember caches a committed response in Redis (best-effort).
func (i idempotency) remember(ctx context.Context, key string, respJSON []byte) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Set(ctx, key, respJSON, idempotencyTTL); err != nil {
		i.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

// replay decodes a recorded response into out.
func replay[T any](respJSON []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(respJSON, &out); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached response: %w", err))
	}
	return &out, nil
}

func requireRole(p domain.Principal, role domain.Role) error {
	if !p.Is(role) {
		return apperror.ErrForbidden()
	}
	return nil
}

// writeLedger journals entries in tx.
func writeLedger(ctx context.Context, repo ports.LedgerRepository, tx pgx.Tx, entries ...*domain.LedgerEntry) error {
	for _, e := range entries {
		if err := repo.Create(ctx, tx, e); err != nil {
			return storageError("write ledger entry", err)
		}
	}
	return nil
}
