package ports

import (
	"context"
	"errors"
	"time"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrDuplicateCode is returned by VoucherRepository.Create when the voucher code is taken.
var ErrDuplicateCode = errors.New("voucher code already exists")

// ErrLockUnavailable is returned when the storage layer gave up acquiring a row
// lock (deadlock, serialization failure, lock timeout). The call may be retried.
var ErrLockUnavailable = errors.New("row lock unavailable")

// ErrAmountOutOfRange is returned when a stored amount would overflow its
// NUMERIC(12,2) column.
var ErrAmountOutOfRange = errors.New("amount out of range")

// ErrIdempotencyConflict is returned by IdempotencyRepository.Create when a
// concurrent request already recorded the same key.
var ErrIdempotencyConflict = errors.New("idempotency key already recorded")

// WalletRepository defines persistence operations for customer wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error)
	// EnsureForUpdate provisions the customer's wallet if missing and returns it row-locked.
	EnsureForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error)
	GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// VoucherRepository defines persistence operations for vouchers.
type VoucherRepository interface {
	Create(ctx context.Context, tx pgx.Tx, voucher *domain.Voucher) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Voucher, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Voucher, error)
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*domain.Voucher, error)
	// Update persists the mutable columns: balances, status and updated_at.
	Update(ctx context.Context, tx pgx.Tx, voucher *domain.Voucher) error
	List(ctx context.Context, params VoucherListParams) ([]domain.Voucher, error)
}

// VoucherListParams holds filters for listing a customer's vouchers.
type VoucherListParams struct {
	CustomerID uuid.UUID
	Status     *domain.VoucherStatus
	Category   *domain.Category
	Code       string // code fragment, upper case; empty matches all
}

// RedemptionRepository defines persistence operations for redemption requests.
type RedemptionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, redemption *domain.Redemption) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Redemption, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Redemption, error)
	// ListPendingByVoucherForUpdate locks every PENDING request of the voucher.
	ListPendingByVoucherForUpdate(ctx context.Context, tx pgx.Tx, voucherID uuid.UUID) ([]domain.Redemption, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, redemption *domain.Redemption) error
	ListByVoucher(ctx context.Context, voucherID uuid.UUID) ([]domain.Redemption, error)
	ListPendingByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Redemption, error)
	ListByVendor(ctx context.Context, params VendorRedemptionParams) ([]domain.Redemption, error)
}

// VendorRedemptionParams holds filters for a vendor's redemption history.
type VendorRedemptionParams struct {
	VendorID uuid.UUID
	Status   *domain.RedemptionStatus
	Code     string // voucher code fragment, upper case; empty matches all
}

// VendorRepository reads vendor profiles maintained by the onboarding service.
type VendorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Vendor, error)
	// ListApproved returns approved vendors of category by name. A non-empty
	// city narrows the list, ignoring case.
	ListApproved(ctx context.Context, category domain.Category, city string) ([]domain.Vendor, error)
}

// VendorFinanceRepository defines persistence for vendor payable balances.
type VendorFinanceRepository interface {
	// Provision creates a zero balance row if none exists. Idempotent.
	Provision(ctx context.Context, vendorID uuid.UUID) error
	GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*domain.VendorFinance, error)
	GetByVendorIDForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.VendorFinance, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, balance decimal.Decimal) error
}

// LedgerRepository persists the immutable money-movement journal.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByAccount(ctx context.Context, account domain.AccountType, accountID uuid.UUID) ([]domain.LedgerEntry, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Clock returns the current time. Services take one so expiry can be tested.
type Clock func() time.Time
