package postgres

import (
	"context"
	"errors"
	"fmt"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const redemptionSelect = `SELECT r.id, r.voucher_id, r.vendor_id, v.code, r.amount, r.status,
	r.cancel_reason, r.created_at, r.resolved_at
	FROM redemptions r JOIN vouchers v ON v.id = r.voucher_id`

// RedemptionRepo implements ports.RedemptionRepository.
type RedemptionRepo struct {
	pool Pool
}

// NewRedemptionRepo creates a new RedemptionRepo.
func NewRedemptionRepo(pool Pool) *RedemptionRepo {
	return &RedemptionRepo{pool: pool}
}

// Create inserts a redemption request within a database transaction.
func (r *RedemptionRepo) Create(ctx context.Context, tx pgx.Tx, red *domain.Redemption) error {
	query := `INSERT INTO redemptions (id, voucher_id, vendor_id, amount, status, cancel_reason, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		red.ID, red.VoucherID, red.VendorID, red.Amount,
		red.Status, red.CancelReason, red.CreatedAt, red.ResolvedAt,
	)
	if err != nil {
		return classify("insert redemption", err)
	}
	return nil
}

// GetByID fetches a redemption request (non-locking read).
func (r *RedemptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Redemption, error) {
	red, err := scanRedemption(r.pool.QueryRow(ctx, redemptionSelect+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get redemption by id: %w", err)
	}
	return red, nil
}

// GetByIDForUpdate fetches a redemption request and locks its row.
// This MUST be called within a transaction, after the owning voucher is locked.
func (r *RedemptionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Redemption, error) {
	red, err := scanRedemption(tx.QueryRow(ctx, redemptionSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id))
	if err != nil {
		return nil, classify("get redemption for update", err)
	}
	return red, nil
}

// ListPendingByVoucherForUpdate locks every PENDING request on a voucher.
func (r *RedemptionRepo) ListPendingByVoucherForUpdate(ctx context.Context, tx pgx.Tx, voucherID uuid.UUID) ([]domain.Redemption, error) {
	query := redemptionSelect + ` WHERE r.voucher_id = $1 AND r.status = $2 ORDER BY r.created_at FOR UPDATE OF r`

	rows, err := tx.Query(ctx, query, voucherID, domain.RedemptionStatusPending)
	if err != nil {
		return nil, classify("lock pending redemptions", err)
	}
	return collectRedemptions(rows)
}

// UpdateStatus persists a status transition within a transaction.
func (r *RedemptionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, red *domain.Redemption) error {
	query := `UPDATE redemptions SET status = $1, cancel_reason = $2, resolved_at = $3 WHERE id = $4`

	tag, err := tx.Exec(ctx, query, red.Status, red.CancelReason, red.ResolvedAt, red.ID)
	if err != nil {
		return classify("update redemption status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("redemption not found: %s", red.ID)
	}
	return nil
}

// ListByVoucher fetches every request on a voucher, newest first.
func (r *RedemptionRepo) ListByVoucher(ctx context.Context, voucherID uuid.UUID) ([]domain.Redemption, error) {
	rows, err := r.pool.Query(ctx, redemptionSelect+` WHERE r.voucher_id = $1 ORDER BY r.created_at DESC`, voucherID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by voucher: %w", err)
	}
	return collectRedemptions(rows)
}

// ListPendingByCustomer fetches the pending requests across a customer's vouchers.
func (r *RedemptionRepo) ListPendingByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Redemption, error) {
	query := redemptionSelect + ` WHERE v.customer_id = $1 AND r.status = $2 ORDER BY r.created_at DESC`

	rows, err := r.pool.Query(ctx, query, customerID, domain.RedemptionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending redemptions: %w", err)
	}
	return collectRedemptions(rows)
}

// ListByVendor fetches a vendor's requests, optionally filtered by status and
// by a fragment of the voucher code.
func (r *RedemptionRepo) ListByVendor(ctx context.Context, params ports.VendorRedemptionParams) ([]domain.Redemption, error) {
	query := redemptionSelect + ` WHERE r.vendor_id = $1`
	args := []any{params.VendorID}
	if params.Status != nil {
		args = append(args, *params.Status)
		query += fmt.Sprintf(` AND r.status = $%d`, len(args))
	}
	if params.Code != "" {
		args = append(args, params.Code)
		query += fmt.Sprintf(` AND strpos(v.code, $%d) > 0`, len(args))
	}
	query += ` ORDER BY r.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vendor redemptions: %w", err)
	}
	return collectRedemptions(rows)
}

func collectRedemptions(rows pgx.Rows) ([]domain.Redemption, error) {
	defer rows.Close()

	out := []domain.Redemption{}
	for rows.Next() {
		red, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption row: %w", err)
		}
		out = append(out, *red)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate redemption rows", err)
	}
	return out, nil
}

func scanRedemption(row pgx.Row) (*domain.Redemption, error) {
	red := &domain.Redemption{}
	err := row.Scan(
		&red.ID, &red.VoucherID, &red.VendorID, &red.VoucherCode, &red.Amount,
		&red.Status, &red.CancelReason, &red.CreatedAt, &red.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return red, nil
}
