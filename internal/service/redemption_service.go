package service

import (
	"context"

	"purposepay/config"
	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RedemptionServiceImpl implements ports.RedemptionService.
type RedemptionServiceImpl struct {
	settlementEngine
	vendorRepo ports.VendorRepository
	rules      config.LedgerRules
	now        ports.Clock
}

// NewRedemptionService creates a new RedemptionServiceImpl.
func NewRedemptionService(
	voucherRepo ports.VoucherRepository,
	redemptionRepo ports.RedemptionRepository,
	vendorRepo ports.VendorRepository,
	financeRepo ports.VendorFinanceRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	rules config.LedgerRules,
	log zerolog.Logger,
) *RedemptionServiceImpl {
	return &RedemptionServiceImpl{
		settlementEngine: settlementEngine{
			voucherRepo:    voucherRepo,
			redemptionRepo: redemptionRepo,
			financeRepo:    financeRepo,
			ledgerRepo:     ledgerRepo,
			transactor:     transactor,
			log:            log,
		},
		vendorRepo: vendorRepo,
		rules:      rules,
		now:        utcNow,
	}
}

// Request reserves amount on the voucher identified by code and opens a
// PENDING redemption for the calling vendor.
func (s *RedemptionServiceImpl) Request(ctx context.Context, req ports.RedemptionRequest) (*domain.Redemption, error) {
	if err := requireRole(req.Principal, domain.RoleVendor); err != nil {
		return nil, err
	}
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	vendor, err := s.vendorRepo.GetByUserID(ctx, req.Principal.UserID)
	if err != nil {
		return nil, storageError("get vendor", err)
	}
	if vendor == nil {
		return nil, apperror.ErrForbidden()
	}
	if !vendor.IsApproved() {
		return nil, apperror.ErrVendorNotApproved()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	voucher, err := s.voucherRepo.GetByCodeForUpdate(ctx, dbTx, req.VoucherCode)
	if err != nil {
		return nil, storageError("lock voucher", err)
	}
	if voucher == nil {
		return nil, apperror.ErrNotFound("voucher")
	}
	if err := checkVoucherUsable(voucher); err != nil {
		return nil, err
	}

	now := s.now()
	if voucher.IsExpired(now) {
		_ = dbTx.Rollback(ctx)
		s.expireAfterRollback(ctx, voucher.ID, now)
		return nil, apperror.ErrVoucherExpired()
	}
	if req.Amount.LessThan(s.rules.MinRedemptionAmount) {
		return nil, apperror.ErrAmountTooLow(domain.FormatMoney(s.rules.MinRedemptionAmount))
	}
	if voucher.Category != vendor.Category {
		return nil, apperror.ErrCategoryMismatch(string(voucher.Category), string(vendor.Category))
	}
	if err := voucher.Reserve(req.Amount, now); err != nil {
		return nil, domainError(err)
	}

	red := domain.NewRedemption(voucher, vendor.ID, req.Amount, now)
	if err := s.redemptionRepo.Create(ctx, dbTx, red); err != nil {
		return nil, storageError("create redemption", err)
	}
	if err := s.voucherRepo.Update(ctx, dbTx, voucher); err != nil {
		return nil, storageError("update voucher", err)
	}
	if err := writeLedger(ctx, s.ledgerRepo, dbTx,
		domain.NewLedgerEntry(domain.AccountVoucher, voucher.ID, domain.EntryReserve, req.Amount, red.ID, now),
	); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit tx", err)
	}

	s.log.Info().
		Str("redemption_id", red.ID.String()).
		Str("voucher_id", voucher.ID.String()).
		Str("vendor_id", vendor.ID.String()).
		Str("amount", domain.FormatMoney(req.Amount)).
		Msg("redemption requested")

	return red, nil
}

// Confirm settles a pending request. Only the voucher owner may confirm.
func (s *RedemptionServiceImpl) Confirm(ctx context.Context, principal domain.Principal, redemptionID uuid.UUID) (*domain.Redemption, error) {
	if err := requireRole(principal, domain.RoleCustomer); err != nil {
		return nil, err
	}
	return s.confirm(ctx, principal.UserID, redemptionID, s.now())
}

// Cancel releases the escrow of a pending request. Only the voucher owner may cancel.
func (s *RedemptionServiceImpl) Cancel(ctx context.Context, principal domain.Principal, redemptionID uuid.UUID) (*domain.Redemption, error) {
	if err := requireRole(principal, domain.RoleCustomer); err != nil {
		return nil, err
	}

	peek, err := s.redemptionRepo.GetByID(ctx, redemptionID)
	if err != nil {
		return nil, storageError("get redemption", err)
	}
	if peek == nil {
		return nil, apperror.ErrNotFound("redemption request")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	voucher, err := s.voucherRepo.GetByIDForUpdate(ctx, dbTx, peek.VoucherID)
	if err != nil {
		return nil, storageError("lock voucher", err)
	}
	if voucher == nil || voucher.CustomerID != principal.UserID {
		return nil, apperror.ErrNotFound("redemption request")
	}
	red, err := s.redemptionRepo.GetByIDForUpdate(ctx, dbTx, redemptionID)
	if err != nil {
		return nil, storageError("lock redemption", err)
	}
	if red == nil {
		return nil, apperror.ErrNotFound("redemption request")
	}
	if red.IsTerminal() {
		return nil, apperror.ErrAlreadyTerminal()
	}

	now := s.now()
	if err := voucher.Release(red.Amount, now); err != nil {
		return nil, domainError(err)
	}
	if err := red.Cancel(domain.CancelReasonCustomer, now); err != nil {
		return nil, domainError(err)
	}
	if err := s.redemptionRepo.UpdateStatus(ctx, dbTx, red); err != nil {
		return nil, storageError("update redemption", err)
	}
	if err := s.voucherRepo.Update(ctx, dbTx, voucher); err != nil {
		return nil, storageError("update voucher", err)
	}
	if err := writeLedger(ctx, s.ledgerRepo, dbTx,
		domain.NewLedgerEntry(domain.AccountVoucher, voucher.ID, domain.EntryRelease, red.Amount, red.ID, now),
	); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit tx", err)
	}

	red.VoucherCode = voucher.Code
	s.log.Info().
		Str("redemption_id", red.ID.String()).
		Str("voucher_id", voucher.ID.String()).
		Str("amount", domain.FormatMoney(red.Amount)).
		Msg("redemption cancelled by customer")

	return red, nil
}

// Get returns a request to the customer who owns its voucher or to the
// vendor who raised it.
func (s *RedemptionServiceImpl) Get(ctx context.Context, principal domain.Principal, redemptionID uuid.UUID) (*domain.Redemption, error) {
	red, err := s.redemptionRepo.GetByID(ctx, redemptionID)
	if err != nil {
		return nil, storageError("get redemption", err)
	}
	if red == nil {
		return nil, apperror.ErrNotFound("redemption request")
	}

	switch {
	case principal.Is(domain.RoleCustomer):
		voucher, err := s.voucherRepo.GetByID(ctx, red.VoucherID)
		if err != nil {
			return nil, storageError("get voucher", err)
		}
		if voucher == nil || voucher.CustomerID != principal.UserID {
			return nil, apperror.ErrNotFound("redemption request")
		}
	case principal.Is(domain.RoleVendor):
		vendor, err := s.vendorRepo.GetByUserID(ctx, principal.UserID)
		if err != nil {
			return nil, storageError("get vendor", err)
		}
		if vendor == nil || vendor.ID != red.VendorID {
			return nil, apperror.ErrNotFound("redemption request")
		}
	default:
		return nil, apperror.ErrForbidden()
	}
	return red, nil
}

// ListPending returns the pending requests across the customer's vouchers, newest first.
func (s *RedemptionServiceImpl) ListPending(ctx context.Context, principal domain.Principal) ([]domain.Redemption, error) {
	if err := requireRole(principal, domain.RoleCustomer); err != nil {
		return nil, err
	}
	list, err := s.redemptionRepo.ListPendingByCustomer(ctx, principal.UserID)
	if err != nil {
		return nil, storageError("list pending redemptions", err)
	}
	return list, nil
}
