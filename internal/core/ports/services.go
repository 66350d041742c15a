package ports

import (
	"context"
	"time"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// Principal converts the claims into the identity passed to services.
func (c *TokenClaims) Principal() domain.Principal {
	return domain.Principal{UserID: c.UserID, Role: c.Role}
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// PaymentGateway is the seam to an external payment processor.
type PaymentGateway interface {
	// Charge collects amount from the customer. The returned reference is opaque.
	Charge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, reference string) (string, error)
	// Authorize confirms a voucher purchase with the processor before activation.
	Authorize(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, reference string) (string, error)
	// Disburse pays amount out to a vendor.
	Disburse(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, reference string) (string, error)
	// Refund returns a completed charge to the customer.
	Refund(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, chargeRef string) (string, error)
}

// AuditService records successful write operations.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// WalletService manages customer wallet balances.
type WalletService interface {
	Deposit(ctx context.Context, req DepositRequest) (*domain.Wallet, error)
	GetWallet(ctx context.Context, principal domain.Principal) (*domain.Wallet, error)
}

// DepositRequest holds validated input for a wallet deposit.
type DepositRequest struct {
	Principal      domain.Principal
	Amount         decimal.Decimal
	IdempotencyKey string // optional
}

// VoucherService manages the voucher lifecycle.
type VoucherService interface {
	Create(ctx context.Context, req CreateVoucherRequest) (*domain.Voucher, error)
	Activate(ctx context.Context, principal domain.Principal, voucherID uuid.UUID) (*domain.Voucher, error)
	Get(ctx context.Context, principal domain.Principal, voucherID uuid.UUID) (*VoucherDetail, error)
	List(ctx context.Context, principal domain.Principal, filter VoucherFilter) ([]domain.Voucher, error)
}

// CreateVoucherRequest holds validated input for voucher creation.
type CreateVoucherRequest struct {
	Principal      domain.Principal
	Category       domain.Category
	Amount         decimal.Decimal
	IdempotencyKey string // optional
}

// VoucherFilter narrows a voucher listing.
type VoucherFilter struct {
	Status   *domain.VoucherStatus
	Category *domain.Category
	Code     string // matches vouchers whose code contains it
}

// VoucherDetail is a voucher together with its redemption requests.
type VoucherDetail struct {
	Voucher     domain.Voucher      `json:"voucher"`
	Redemptions []domain.Redemption `json:"redemptions"`
}

// RedemptionService handles vendor claims and customer decisions on them.
type RedemptionService interface {
	Request(ctx context.Context, req RedemptionRequest) (*domain.Redemption, error)
	Confirm(ctx context.Context, principal domain.Principal, redemptionID uuid.UUID) (*domain.Redemption, error)
	Cancel(ctx context.Context, principal domain.Principal, redemptionID uuid.UUID) (*domain.Redemption, error)
	Get(ctx context.Context, principal domain.Principal, redemptionID uuid.UUID) (*domain.Redemption, error)
	ListPending(ctx context.Context, principal domain.Principal) ([]domain.Redemption, error)
}

// RedemptionRequest holds validated input for a vendor redemption claim.
type RedemptionRequest struct {
	Principal   domain.Principal
	VoucherCode string
	Amount      decimal.Decimal
}

// VendorService exposes vendor-side finance operations.
type VendorService interface {
	History(ctx context.Context, principal domain.Principal, filter RedemptionFilter) ([]domain.Redemption, error)
	Balance(ctx context.Context, principal domain.Principal) (*domain.VendorFinance, error)
	Payout(ctx context.Context, principal domain.Principal, amount decimal.Decimal) (*domain.VendorFinance, error)
	ProvisionFinance(ctx context.Context, vendorID uuid.UUID) error
	ListApproved(ctx context.Context, category domain.Category, city string) ([]domain.Vendor, error)
}

// RedemptionFilter narrows a vendor's redemption history.
type RedemptionFilter struct {
	Status *domain.RedemptionStatus
	Code   string // matches requests whose voucher code contains it
}
