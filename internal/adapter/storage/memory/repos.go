package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Wallets ---

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

// NewWalletRepo creates a WalletRepo on store.
func NewWalletRepo(store *Store) *WalletRepo { return &WalletRepo{s: store} }

func (r *WalletRepo) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[customerID]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (r *WalletRepo) EnsureForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	err := r.s.write(tx, func() (func(), error) {
		if _, ok := r.s.wallets[customerID]; ok {
			return nil, nil
		}
		r.s.wallets[customerID] = domain.NewWallet(customerID, time.Now().UTC())
		return func() { delete(r.s.wallets, customerID) }, nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByCustomerID(ctx, customerID)
}

func (r *WalletRepo) GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	if err := r.s.inTx(tx); err != nil {
		return nil, err
	}
	return r.GetByCustomerID(ctx, customerID)
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	return r.s.write(tx, func() (func(), error) {
		if balance.IsNegative() {
			return nil, fmt.Errorf("wallet %s: balance would be negative", walletID)
		}
		if balance.GreaterThan(domain.MaxAmount) {
			return nil, fmt.Errorf("wallet %s: %w", walletID, ports.ErrAmountOutOfRange)
		}
		for _, w := range r.s.wallets {
			if w.ID != walletID {
				continue
			}
			prev, prevAt := w.Balance, w.UpdatedAt
			w.Balance, w.UpdatedAt = balance, time.Now().UTC()
			return func() { w.Balance, w.UpdatedAt = prev, prevAt }, nil
		}
		return nil, fmt.Errorf("wallet not found: %s", walletID)
	})
}

// --- Vouchers ---

// VoucherRepo implements ports.VoucherRepository.
type VoucherRepo struct{ s *Store }

// NewVoucherRepo creates a VoucherRepo on store.
func NewVoucherRepo(store *Store) *VoucherRepo { return &VoucherRepo{s: store} }

func (r *VoucherRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Voucher) error {
	return r.s.write(tx, func() (func(), error) {
		if _, taken := r.s.codes[v.Code]; taken {
			return nil, ports.ErrDuplicateCode
		}
		if err := v.CheckInvariant(); err != nil {
			return nil, fmt.Errorf("voucher check constraint: %w", err)
		}
		c := *v
		r.s.vouchers[v.ID] = &c
		r.s.codes[v.Code] = v.ID
		return func() {
			delete(r.s.vouchers, v.ID)
			delete(r.s.codes, v.Code)
		}, nil
	})
}

func (r *VoucherRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Voucher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.get(id), nil
}

func (r *VoucherRepo) get(id uuid.UUID) *domain.Voucher {
	v, ok := r.s.vouchers[id]
	if !ok {
		return nil
	}
	c := *v
	return &c
}

func (r *VoucherRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Voucher, error) {
	if err := r.s.inTx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *VoucherRepo) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*domain.Voucher, error) {
	if err := r.s.inTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.codes[code]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

// Update enforces the same balance constraints as the PostgreSQL schema.
func (r *VoucherRepo) Update(ctx context.Context, tx pgx.Tx, v *domain.Voucher) error {
	return r.s.write(tx, func() (func(), error) {
		cur, ok := r.s.vouchers[v.ID]
		if !ok {
			return nil, fmt.Errorf("voucher not found: %s", v.ID)
		}
		if err := v.CheckInvariant(); err != nil {
			return nil, fmt.Errorf("voucher check constraint: %w", err)
		}
		prev := *cur
		cur.RemainingBalance = v.RemainingBalance
		cur.EscrowBalance = v.EscrowBalance
		cur.Status = v.Status
		cur.UpdatedAt = v.UpdatedAt
		return func() { *cur = prev }, nil
	})
}

func (r *VoucherRepo) List(ctx context.Context, params ports.VoucherListParams) ([]domain.Voucher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Voucher{}
	for _, v := range r.s.vouchers {
		if v.CustomerID != params.CustomerID {
			continue
		}
		if params.Status != nil && v.Status != *params.Status {
			continue
		}
		if params.Category != nil && v.Category != *params.Category {
			continue
		}
		if !strings.Contains(v.Code, params.Code) {
			continue
		}
		out = append(out, *v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Redemptions ---

// RedemptionRepo implements ports.RedemptionRepository.
type RedemptionRepo struct{ s *Store }

// NewRedemptionRepo creates a RedemptionRepo on store.
func NewRedemptionRepo(store *Store) *RedemptionRepo { return &RedemptionRepo{s: store} }

func (r *RedemptionRepo) Create(ctx context.Context, tx pgx.Tx, red *domain.Redemption) error {
	return r.s.write(tx, func() (func(), error) {
		if _, ok := r.s.vouchers[red.VoucherID]; !ok {
			return nil, fmt.Errorf("redemption %s: unknown voucher %s", red.ID, red.VoucherID)
		}
		c := *red
		r.s.redemptions[red.ID] = &c
		return func() { delete(r.s.redemptions, red.ID) }, nil
	})
}

// view copies a stored request and fills in the voucher code join.
// Callers hold s.mu.
func (r *RedemptionRepo) view(red *domain.Redemption) domain.Redemption {
	c := *red
	if v, ok := r.s.vouchers[red.VoucherID]; ok {
		c.VoucherCode = v.Code
	}
	return c
}

func (r *RedemptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Redemption, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	red, ok := r.s.redemptions[id]
	if !ok {
		return nil, nil
	}
	c := r.view(red)
	return &c, nil
}

func (r *RedemptionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Redemption, error) {
	if err := r.s.inTx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *RedemptionRepo) ListPendingByVoucherForUpdate(ctx context.Context, tx pgx.Tx, voucherID uuid.UUID) ([]domain.Redemption, error) {
	if err := r.s.inTx(tx); err != nil {
		return nil, err
	}
	out := r.filter(func(red *domain.Redemption) bool {
		return red.VoucherID == voucherID && red.Status == domain.RedemptionStatusPending
	})
	// Oldest first, matching the PostgreSQL lock order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RedemptionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, red *domain.Redemption) error {
	return r.s.write(tx, func() (func(), error) {
		cur, ok := r.s.redemptions[red.ID]
		if !ok {
			return nil, fmt.Errorf("redemption not found: %s", red.ID)
		}
		prev := *cur
		cur.Status = red.Status
		cur.CancelReason = red.CancelReason
		cur.ResolvedAt = red.ResolvedAt
		return func() { *cur = prev }, nil
	})
}

func (r *RedemptionRepo) ListByVoucher(ctx context.Context, voucherID uuid.UUID) ([]domain.Redemption, error) {
	return r.newestFirst(func(red *domain.Redemption) bool { return red.VoucherID == voucherID }), nil
}

func (r *RedemptionRepo) ListPendingByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Redemption, error) {
	r.s.mu.RLock()
	owned := make(map[uuid.UUID]bool)
	for id, v := range r.s.vouchers {
		if v.CustomerID == customerID {
			owned[id] = true
		}
	}
	r.s.mu.RUnlock()

	return r.newestFirst(func(red *domain.Redemption) bool {
		return owned[red.VoucherID] && red.Status == domain.RedemptionStatusPending
	}), nil
}

func (r *RedemptionRepo) ListByVendor(ctx context.Context, params ports.VendorRedemptionParams) ([]domain.Redemption, error) {
	out := r.newestFirst(func(red *domain.Redemption) bool {
		return red.VendorID == params.VendorID && (params.Status == nil || red.Status == *params.Status)
	})
	if params.Code == "" {
		return out, nil
	}
	kept := out[:0]
	for _, red := range out {
		if strings.Contains(red.VoucherCode, params.Code) {
			kept = append(kept, red)
		}
	}
	return kept, nil
}

func (r *RedemptionRepo) filter(keep func(*domain.Redemption) bool) []domain.Redemption {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Redemption{}
	for _, red := range r.s.redemptions {
		if keep(red) {
			out = append(out, r.view(red))
		}
	}
	return out
}

func (r *RedemptionRepo) newestFirst(keep func(*domain.Redemption) bool) []domain.Redemption {
	out := r.filter(keep)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// --- Vendors ---

// VendorRepo implements ports.VendorRepository.
type VendorRepo struct{ s *Store }

// NewVendorRepo creates a VendorRepo on store.
func NewVendorRepo(store *Store) *VendorRepo { return &VendorRepo{s: store} }

// Save inserts or replaces a vendor profile. Onboarding owns this data in
// production; the in-memory backend needs a way to seed it.
func (r *VendorRepo) Save(ctx context.Context, v *domain.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *v
	r.s.vendors[v.ID] = &c
	return nil
}

func (r *VendorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vendors[id]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (r *VendorRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.vendors {
		if v.UserID == userID {
			c := *v
			return &c, nil
		}
	}
	return nil, nil
}

func (r *VendorRepo) ListApproved(ctx context.Context, category domain.Category, city string) ([]domain.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Vendor{}
	for _, v := range r.s.vendors {
		if city != "" && !strings.EqualFold(v.City, city) {
			continue
		}
		if v.Category == category && v.IsApproved() {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessName < out[j].BusinessName })
	return out, nil
}

// --- Vendor finance ---

// VendorFinanceRepo implements ports.VendorFinanceRepository.
type VendorFinanceRepo struct{ s *Store }

// NewVendorFinanceRepo creates a VendorFinanceRepo on store.
func NewVendorFinanceRepo(store *Store) *VendorFinanceRepo { return &VendorFinanceRepo{s: store} }

func (r *VendorFinanceRepo) Provision(ctx context.Context, vendorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.vendors[vendorID]; !ok {
		return fmt.Errorf("provision vendor finance: unknown vendor %s", vendorID)
	}
	if _, ok := r.s.finances[vendorID]; !ok {
		r.s.finances[vendorID] = &domain.VendorFinance{VendorID: vendorID, Balance: decimal.Zero, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (r *VendorFinanceRepo) GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*domain.VendorFinance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.finances[vendorID]
	if !ok {
		return nil, nil
	}
	c := *f
	return &c, nil
}

func (r *VendorFinanceRepo) GetByVendorIDForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.VendorFinance, error) {
	if err := r.s.inTx(tx); err != nil {
		return nil, err
	}
	return r.GetByVendorID(ctx, vendorID)
}

func (r *VendorFinanceRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, balance decimal.Decimal) error {
	return r.s.write(tx, func() (func(), error) {
		f, ok := r.s.finances[vendorID]
		if !ok {
			return nil, fmt.Errorf("vendor finance not found: %s", vendorID)
		}
		if balance.IsNegative() {
			return nil, fmt.Errorf("vendor finance %s: balance would be negative", vendorID)
		}
		if balance.GreaterThan(domain.MaxAmount) {
			return nil, fmt.Errorf("vendor finance %s: %w", vendorID, ports.ErrAmountOutOfRange)
		}
		prev := *f
		f.Balance, f.UpdatedAt = balance, time.Now().UTC()
		return func() { *f = prev }, nil
	})
}

// --- Ledger ---

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct{ s *Store }

// NewLedgerRepo creates a LedgerRepo on store.
func NewLedgerRepo(store *Store) *LedgerRepo { return &LedgerRepo{s: store} }

func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	return r.s.write(tx, func() (func(), error) {
		r.s.ledger = append(r.s.ledger, *e)
		n := len(r.s.ledger) - 1
		return func() { r.s.ledger = r.s.ledger[:n] }, nil
	})
}

func (r *LedgerRepo) ListByAccount(ctx context.Context, account domain.AccountType, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.LedgerEntry{}
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		e := r.s.ledger[i]
		if e.AccountType == account && e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Idempotency ---

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct{ s *Store }

// NewIdempotencyRepo creates an IdempotencyRepo on store.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo { return &IdempotencyRepo{s: store} }

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	return r.s.write(tx, func() (func(), error) {
		if _, ok := r.s.idempotency[log.Key]; ok {
			return nil, ports.ErrIdempotencyConflict
		}
		c := *log
		r.s.idempotency[log.Key] = &c
		return func() { delete(r.s.idempotency, log.Key) }, nil
	})
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

// --- Audit ---

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

// NewAuditRepo creates an AuditRepo on store.
func NewAuditRepo(store *Store) *AuditRepo { return &AuditRepo{s: store} }

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}

// Entries returns a snapshot of the audit trail, oldest first.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.s.audit...)
}
