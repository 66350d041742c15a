package postgres

import (
	"context"
	"fmt"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends a journal entry within a database transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, account_type, account_id, entry_type, amount, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.AccountType, e.AccountID, e.EntryType, e.Amount, e.ReferenceID, e.CreatedAt,
	)
	if err != nil {
		return classify("insert ledger entry", err)
	}
	return nil
}

// ListByAccount fetches the journal of one account, newest first.
func (r *LedgerRepo) ListByAccount(ctx context.Context, account domain.AccountType, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT id, account_type, account_id, entry_type, amount, reference_id, created_at
		FROM ledger_entries WHERE account_type = $1 AND account_id = $2 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, account, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.AccountType, &e.AccountID, &e.EntryType, &e.Amount, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}
