package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const voucherColumns = `id, customer_id, code, category, initial_amount, remaining_balance,
	escrow_balance, status, expires_at, created_at, updated_at`

// VoucherRepo implements ports.VoucherRepository.
type VoucherRepo struct {
	pool Pool
}

// NewVoucherRepo creates a new VoucherRepo.
func NewVoucherRepo(pool Pool) *VoucherRepo {
	return &VoucherRepo{pool: pool}
}

// Create inserts a voucher within a database transaction.
// A code collision leaves the transaction usable and returns ports.ErrDuplicateCode.
func (r *VoucherRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Voucher) error {
	query := `INSERT INTO vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		v.ID, v.CustomerID, v.Code, v.Category,
		v.InitialAmount, v.RemainingBalance, v.EscrowBalance, v.Status,
		v.ExpiresAt, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicateCode
		}
		return classify("insert voucher", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrDuplicateCode
	}
	return nil
}

// GetByID fetches a voucher by UUID (non-locking read).
func (r *VoucherRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`

	v, err := scanVoucher(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get voucher by id: %w", err)
	}
	return v, nil
}

// GetByIDForUpdate fetches a voucher by UUID with pessimistic locking.
// This MUST be called within a transaction.
func (r *VoucherRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1 FOR UPDATE`

	v, err := scanVoucher(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("get voucher for update", err)
	}
	return v, nil
}

// GetByCodeForUpdate fetches a voucher by its public code with pessimistic locking.
// This MUST be called within a transaction.
func (r *VoucherRepo) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*domain.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1 FOR UPDATE`

	v, err := scanVoucher(tx.QueryRow(ctx, query, code))
	if err != nil {
		return nil, classify("get voucher by code for update", err)
	}
	return v, nil
}

// Update persists balances and status within a transaction.
func (r *VoucherRepo) Update(ctx context.Context, tx pgx.Tx, v *domain.Voucher) error {
	query := `UPDATE vouchers
		SET remaining_balance = $1, escrow_balance = $2, status = $3, updated_at = $4
		WHERE id = $5`

	tag, err := tx.Exec(ctx, query, v.RemainingBalance, v.EscrowBalance, v.Status, v.UpdatedAt, v.ID)
	if err != nil {
		return classify("update voucher", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("voucher not found: %s", v.ID)
	}
	return nil
}

// List fetches a customer's vouchers, newest first.
func (r *VoucherRepo) List(ctx context.Context, params ports.VoucherListParams) ([]domain.Voucher, error) {
	conditions := []string{"customer_id = $1"}
	args := []any{params.CustomerID}

	if params.Status != nil {
		args = append(args, *params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Category != nil {
		args = append(args, *params.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if params.Code != "" {
		args = append(args, params.Code)
		conditions = append(conditions, fmt.Sprintf("strpos(code, $%d) > 0", len(args)))
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	vouchers := []domain.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voucher row: %w", err)
		}
		vouchers = append(vouchers, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voucher rows: %w", err)
	}
	return vouchers, nil
}

func scanVoucher(row pgx.Row) (*domain.Voucher, error) {
	v := &domain.Voucher{}
	err := row.Scan(
		&v.ID, &v.CustomerID, &v.Code, &v.Category,
		&v.InitialAmount, &v.RemainingBalance, &v.EscrowBalance, &v.Status,
		&v.ExpiresAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}
