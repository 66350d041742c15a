package postgres

import (
	"context"
	"errors"
	"fmt"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const vendorColumns = `id, user_id, business_name, category, city, gps_code, phone_number, status, created_at`

// VendorRepo implements ports.VendorRepository over the onboarding-owned vendors table.
type VendorRepo struct {
	pool Pool
}

// NewVendorRepo creates a new VendorRepo.
func NewVendorRepo(pool Pool) *VendorRepo {
	return &VendorRepo{pool: pool}
}

// GetByID fetches a vendor by its UUID.
func (r *VendorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get vendor by id: %w", err)
	}
	return v, nil
}

// GetByUserID fetches the vendor profile of an authenticated user.
func (r *VendorRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("get vendor by user id: %w", err)
	}
	return v, nil
}

// ListApproved fetches the approved vendors of a category, by name. The city
// filter compares case-insensitively.
func (r *VendorRepo) ListApproved(ctx context.Context, category domain.Category, city string) ([]domain.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE category = $1 AND status = $2`
	args := []any{category, domain.VendorStatusApproved}
	if city != "" {
		query += ` AND lower(city) = lower($3)`
		args = append(args, city)
	}
	query += ` ORDER BY business_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approved vendors: %w", err)
	}
	defer rows.Close()

	vendors := []domain.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vendor row: %w", err)
		}
		vendors = append(vendors, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor rows: %w", err)
	}
	return vendors, nil
}

func scanVendor(row pgx.Row) (*domain.Vendor, error) {
	v := &domain.Vendor{}
	err := row.Scan(
		&v.ID, &v.UserID, &v.BusinessName, &v.Category,
		&v.City, &v.GPSCode, &v.PhoneNumber, &v.Status, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// VendorFinanceRepo implements ports.VendorFinanceRepository.
type VendorFinanceRepo struct {
	pool Pool
}

// NewVendorFinanceRepo creates a new VendorFinanceRepo.
func NewVendorFinanceRepo(pool Pool) *VendorFinanceRepo {
	return &VendorFinanceRepo{pool: pool}
}

// Provision creates a zero balance for the vendor unless one exists.
func (r *VendorFinanceRepo) Provision(ctx context.Context, vendorID uuid.UUID) error {
	query := `INSERT INTO vendor_finances (vendor_id, balance, updated_at)
		VALUES ($1, 0, NOW()) ON CONFLICT (vendor_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, vendorID); err != nil {
		return fmt.Errorf("provision vendor finance: %w", err)
	}
	return nil
}

// GetByVendorID fetches a vendor's payable balance (non-locking read).
func (r *VendorFinanceRepo) GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*domain.VendorFinance, error) {
	query := `SELECT vendor_id, balance, updated_at FROM vendor_finances WHERE vendor_id = $1`

	f, err := scanFinance(r.pool.QueryRow(ctx, query, vendorID))
	if err != nil {
		return nil, fmt.Errorf("get vendor finance: %w", err)
	}
	return f, nil
}

// GetByVendorIDForUpdate fetches a vendor's payable balance with pessimistic locking.
// This MUST be called within a transaction.
func (r *VendorFinanceRepo) GetByVendorIDForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.VendorFinance, error) {
	query := `SELECT vendor_id, balance, updated_at FROM vendor_finances WHERE vendor_id = $1 FOR UPDATE`

	f, err := scanFinance(tx.QueryRow(ctx, query, vendorID))
	if err != nil {
		return nil, classify("get vendor finance for update", err)
	}
	return f, nil
}

// UpdateBalance sets a vendor's payable balance within a transaction.
func (r *VendorFinanceRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE vendor_finances SET balance = $1, updated_at = NOW() WHERE vendor_id = $2`

	tag, err := tx.Exec(ctx, query, balance, vendorID)
	if err != nil {
		return classify("update vendor balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vendor finance not found: %s", vendorID)
	}
	return nil
}

func scanFinance(row pgx.Row) (*domain.VendorFinance, error) {
	f := &domain.VendorFinance{}
	if err := row.Scan(&f.VendorID, &f.Balance, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}
