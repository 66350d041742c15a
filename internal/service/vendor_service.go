package service

import (
	"context"
	"fmt"
	"strings"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// VendorServiceImpl implements ports.VendorService.
type VendorServiceImpl struct {
	vendorRepo     ports.VendorRepository
	financeRepo    ports.VendorFinanceRepository
	redemptionRepo ports.RedemptionRepository
	ledgerRepo     ports.LedgerRepository
	gateway        ports.PaymentGateway
	transactor     ports.DBTransactor
	now            ports.Clock
	log            zerolog.Logger
}

// NewVendorService creates a new VendorServiceImpl.
func NewVendorService(
	vendorRepo ports.VendorRepository,
	financeRepo ports.VendorFinanceRepository,
	redemptionRepo ports.RedemptionRepository,
	ledgerRepo ports.LedgerRepository,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *VendorServiceImpl {
	return &VendorServiceImpl{
		vendorRepo:     vendorRepo,
		financeRepo:    financeRepo,
		redemptionRepo: redemptionRepo,
		ledgerRepo:     ledgerRepo,
		gateway:        gateway,
		transactor:     transactor,
		now:            utcNow,
		log:            log,
	}
}

// vendorFor resolves the calling vendor's profile. Only approved vendors get
// past it.
func (s *VendorServiceImpl) vendorFor(ctx context.Context, principal domain.Principal) (*domain.Vendor, error) {
	if err := requireRole(principal, domain.RoleVendor); err != nil {
		return nil, err
	}
	vendor, err := s.vendorRepo.GetByUserID(ctx, principal.UserID)
	if err != nil {
		return nil, storageError("get vendor", err)
	}
	if vendor == nil {
		return nil, apperror.ErrNotFound("vendor")
	}
	if !vendor.IsApproved() {
		return nil, apperror.ErrVendorNotApproved()
	}
	return vendor, nil
}

// History lists the vendor's redemption requests, newest first.
func (s *VendorServiceImpl) History(ctx context.Context, principal domain.Principal, filter ports.RedemptionFilter) ([]domain.Redemption, error) {
	vendor, err := s.vendorFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	list, err := s.redemptionRepo.ListByVendor(ctx, ports.VendorRedemptionParams{
		VendorID: vendor.ID,
		Status:   filter.Status,
		Code:     strings.ToUpper(strings.TrimSpace(filter.Code)),
	})
	if err != nil {
		return nil, storageError("list vendor redemptions", err)
	}
	return list, nil
}

// Balance returns the vendor's payable balance.
func (s *VendorServiceImpl) Balance(ctx context.Context, principal domain.Principal) (*domain.VendorFinance, error) {
	vendor, err := s.vendorFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	finance, err := s.financeRepo.GetByVendorID(ctx, vendor.ID)
	if err != nil {
		return nil, storageError("get vendor finance", err)
	}
	if finance == nil {
		return nil, apperror.ErrNotFound("vendor finance")
	}
	return finance, nil
}

// Payout debits amount from the vendor's payable balance and disburses it once
// the debit has committed. A disbursement the gateway refuses is credited back
// under a PAYOUT_REVERSAL entry.
func (s *VendorServiceImpl) Payout(ctx context.Context, principal domain.Principal, amount decimal.Decimal) (*domain.VendorFinance, error) {
	if err := requireRole(principal, domain.RoleVendor); err != nil {
		return nil, err
	}
	if !domain.ValidAmount(amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	vendor, err := s.vendorFor(ctx, principal)
	if err != nil {
		return nil, err
	}

	payoutID := uuid.New()
	finance, err := s.debitPayout(ctx, vendor.ID, amount, payoutID)
	if err != nil {
		return nil, err
	}

	disburseRef, err := s.gateway.Disburse(ctx, vendor.ID, amount, "payout:"+payoutID.String())
	if err != nil {
		s.reversePayout(ctx, vendor.ID, amount, payoutID)
		return nil, apperror.InternalError(fmt.Errorf("gateway disburse: %w", err))
	}

	s.log.Info().
		Str("vendor_id", vendor.ID.String()).
		Str("amount", domain.FormatMoney(amount)).
		Str("balance", domain.FormatMoney(finance.Balance)).
		Str("disburse_ref", disburseRef).
		Msg("vendor payout completed")

	return finance, nil
}

// debitPayout commits the balance debit and PAYOUT entry of a payout.
func (s *VendorServiceImpl) debitPayout(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) (*domain.VendorFinance, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	finance, err := s.financeRepo.GetByVendorIDForUpdate(ctx, dbTx, vendorID)
	if err != nil {
		return nil, storageError("lock vendor finance", err)
	}
	if finance == nil {
		return nil, apperror.ErrNotFound("vendor finance")
	}
	newBalance, err := domain.Debit(finance.Balance, amount)
	if err != nil {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := s.now()
	if err := s.financeRepo.UpdateBalance(ctx, dbTx, vendorID, newBalance); err != nil {
		return nil, storageError("update vendor finance", err)
	}
	if err := writeLedger(ctx, s.ledgerRepo, dbTx,
		domain.NewLedgerEntry(domain.AccountVendor, vendorID, domain.EntryPayout, amount, payoutID, now),
	); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit tx", err)
	}

	finance.Balance = newBalance
	finance.UpdatedAt = now
	return finance, nil
}

// reversePayout credits back a committed payout the gateway did not disburse.
// It runs detached from the request context; a failure is logged for
// reconciliation.
func (s *VendorServiceImpl) reversePayout(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	if err := s.creditReversal(ctx, vendorID, amount, payoutID); err != nil {
		s.log.Error().Err(err).
			Str("vendor_id", vendorID.String()).
			Str("payout_id", payoutID.String()).
			Str("amount", domain.FormatMoney(amount)).
			Msg("payout reversal failed, balance needs manual reconciliation")
		return
	}
	s.log.Warn().
		Str("vendor_id", vendorID.String()).
		Str("payout_id", payoutID.String()).
		Str("amount", domain.FormatMoney(amount)).
		Msg("payout not disbursed, balance restored")
}

func (s *VendorServiceImpl) creditReversal(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	finance, err := s.financeRepo.GetByVendorIDForUpdate(ctx, dbTx, vendorID)
	if err != nil {
		return fmt.Errorf("lock vendor finance: %w", err)
	}
	if finance == nil {
		return fmt.Errorf("vendor finance %s vanished", vendorID)
	}
	restored, err := domain.Credit(finance.Balance, amount)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.financeRepo.UpdateBalance(ctx, dbTx, vendorID, restored); err != nil {
		return fmt.Errorf("update vendor finance: %w", err)
	}
	if err := s.ledgerRepo.Create(ctx, dbTx,
		domain.NewLedgerEntry(domain.AccountVendor, vendorID, domain.EntryPayoutReversal, amount, payoutID, now),
	); err != nil {
		return fmt.Errorf("write ledger entry: %w", err)
	}
	return dbTx.Commit(ctx)
}

// ProvisionFinance creates the vendor's zero balance. It is called by the
// approval workflow and is safe to repeat.
func (s *VendorServiceImpl) ProvisionFinance(ctx context.Context, vendorID uuid.UUID) error {
	vendor, err := s.vendorRepo.GetByID(ctx, vendorID)
	if err != nil {
		return storageError("get vendor", err)
	}
	if vendor == nil {
		return apperror.ErrNotFound("vendor")
	}
	if err := s.financeRepo.Provision(ctx, vendorID); err != nil {
		return storageError("provision vendor finance", err)
	}
	s.log.Info().Str("vendor_id", vendorID.String()).Msg("vendor finance provisioned")
	return nil
}

// ListApproved returns the approved vendors of category, optionally only
// those in city.
func (s *VendorServiceImpl) ListApproved(ctx context.Context, category domain.Category, city string) ([]domain.Vendor, error) {
	c, ok := domain.ParseCategory(string(category))
	if !ok {
		return nil, apperror.ErrInvalidCategory()
	}
	list, err := s.vendorRepo.ListApproved(ctx, c, strings.TrimSpace(city))
	if err != nil {
		return nil, storageError("list approved vendors", err)
	}
	return list, nil
}
