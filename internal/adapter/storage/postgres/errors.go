package postgres

import (
	"errors"
	"fmt"

	"purposepay/internal/core/ports"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// classify wraps err with op, translating PostgreSQL lock failures into
// ports.ErrLockUnavailable so services can answer with a retryable error, and
// numeric overflow into ports.ErrAmountOutOfRange.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return fmt.Errorf("%s: %w: %s", op, ports.ErrLockUnavailable, pgErr.Message)
		case pgerrcode.NumericValueOutOfRange:
			return fmt.Errorf("%s: %w: %s", op, ports.ErrAmountOutOfRange, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
