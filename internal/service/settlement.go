package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Lock order, process-wide: voucher, then redemption rows, then vendor finance.

// settlementEngine moves money between vouchers and vendor balances and owns
// the cascade rules that end a voucher's life.
type settlementEngine struct {
	voucherRepo    ports.VoucherRepository
	redemptionRepo ports.RedemptionRepository
	financeRepo    ports.VendorFinanceRepository
	ledgerRepo     ports.LedgerRepository
	transactor     ports.DBTransactor
	log            zerolog.Logger
}

// confirm settles redemption id in favour of its vendor.
func (e *settlementEngine) confirm(ctx context.Context, customerID, redemptionID uuid.UUID, now time.Time) (*domain.Redemption, error) {
	// Optimistic read to learn which voucher to lock first.
	peek, err := e.redemptionRepo.GetByID(ctx, redemptionID)
	if err != nil {
		return nil, storageError("get redemption", err)
	}
	if peek == nil {
		return nil, apperror.ErrNotFound("redemption request")
	}

	dbTx, err := e.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	voucher, err := e.voucherRepo.GetByIDForUpdate(ctx, dbTx, peek.VoucherID)
	if err != nil {
		return nil, storageError("lock voucher", err)
	}
	if voucher == nil || voucher.CustomerID != customerID {
		return nil, apperror.ErrNotFound("redemption request")
	}

	red, err := e.redemptionRepo.GetByIDForUpdate(ctx, dbTx, redemptionID)
	if err != nil {
		return nil, storageError("lock redemption", err)
	}
	if red == nil {
		return nil, apperror.ErrNotFound("redemption request")
	}
	if red.IsTerminal() {
		return nil, apperror.ErrAlreadyTerminal()
	}
	if err := checkVoucherUsable(voucher); err != nil {
		return nil, err
	}
	if voucher.IsExpired(now) {
		_ = dbTx.Rollback(ctx)
		e.expireAfterRollback(ctx, voucher.ID, now)
		return nil, apperror.ErrVoucherExpired()
	}

	locked, err := voucher.Settle(red.Amount, now)
	if err != nil {
		return nil, domainError(err)
	}
	if err := red.Redeem(now); err != nil {
		return nil, apperror.ErrAlreadyTerminal()
	}
	if err := e.redemptionRepo.UpdateStatus(ctx, dbTx, red); err != nil {
		return nil, storageError("update redemption", err)
	}

	cancelled := 0
	if locked {
		cancelled, err = e.cancelPending(ctx, dbTx, voucher, domain.CancelReasonVoucherLocked, now)
		if err != nil {
			return nil, err
		}
	}

	finance, err := e.financeRepo.GetByVendorIDForUpdate(ctx, dbTx, red.VendorID)
	if err != nil {
		return nil, storageError("lock vendor finance", err)
	}
	if finance == nil {
		return nil, apperror.ErrNotFound("vendor finance")
	}
	if finance.Balance, err = domain.Credit(finance.Balance, red.Amount); err != nil {
		return nil, domainError(err)
	}
	finance.UpdatedAt = now

	if err := e.voucherRepo.Update(ctx, dbTx, voucher); err != nil {
		return nil, storageError("update voucher", err)
	}
	if err := e.financeRepo.UpdateBalance(ctx, dbTx, finance.VendorID, finance.Balance); err != nil {
		return nil, storageError("update vendor finance", err)
	}
	if err := writeLedger(ctx, e.ledgerRepo, dbTx,
		domain.NewLedgerEntry(domain.AccountVoucher, voucher.ID, domain.EntrySettleDebit, red.Amount, red.ID, now),
		domain.NewLedgerEntry(domain.AccountVendor, finance.VendorID, domain.EntrySettleCredit, red.Amount, red.ID, now),
	); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit tx", err)
	}

	red.VoucherCode = voucher.Code
	e.log.Info().
		Str("redemption_id", red.ID.String()).
		Str("voucher_id", voucher.ID.String()).
		Str("vendor_id", red.VendorID.String()).
		Str("amount", domain.FormatMoney(red.Amount)).
		Str("remaining", domain.FormatMoney(voucher.RemainingBalance)).
		Bool("voucher_locked", locked).
		Int("cascade_cancelled", cancelled).
		Msg("redemption settled")

	return red, nil
}

// cancelPending locks every PENDING request of voucher, releases its escrow
// and cancels it with reason. The caller persists the voucher.
func (e *settlementEngine) cancelPending(ctx context.Context, tx pgx.Tx, voucher *domain.Voucher, reason domain.CancelReason, now time.Time) (int, error) {
	pending, err := e.redemptionRepo.ListPendingByVoucherForUpdate(ctx, tx, voucher.ID)
	if err != nil {
		return 0, storageError("lock pending redemptions", err)
	}

	for i := range pending {
		red := &pending[i]
		release := red.Amount
		if release.GreaterThan(voucher.EscrowBalance) {
			e.log.Warn().
				Str("voucher_id", voucher.ID.String()).
				Str("redemption_id", red.ID.String()).
				Str("amount", domain.FormatMoney(red.Amount)).
				Str("escrow", domain.FormatMoney(voucher.EscrowBalance)).
				Msg("pending redemption exceeds voucher escrow, releasing what is left")
			release = voucher.EscrowBalance
		}
		if err := voucher.Release(release, now); err != nil {
			return 0, apperror.InternalError(fmt.Errorf("release escrow: %w", err))
		}
		if err := red.Cancel(reason, now); err != nil {
			return 0, apperror.InternalError(fmt.Errorf("cancel redemption %s: %w", red.ID, err))
		}
		if err := e.redemptionRepo.UpdateStatus(ctx, tx, red); err != nil {
			return 0, storageError("cancel redemption", err)
		}
		if release.IsPositive() {
			if err := writeLedger(ctx, e.ledgerRepo, tx,
				domain.NewLedgerEntry(domain.AccountVoucher, voucher.ID, domain.EntryRelease, release, red.ID, now),
			); err != nil {
				return 0, err
			}
		}
	}
	return len(pending), nil
}

// expire moves an overdue voucher to EXPIRED in its own transaction and
// cancels its pending requests. It is a no-op when another request got there
// first or the voucher is not actually overdue.
func (e *settlementEngine) expire(ctx context.Context, voucherID uuid.UUID, now time.Time) error {
	dbTx, err := e.transactor.Begin(ctx)
	if err != nil {
		return storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	voucher, err := e.voucherRepo.GetByIDForUpdate(ctx, dbTx, voucherID)
	if err != nil {
		return storageError("lock voucher", err)
	}
	if voucher == nil || voucher.IsTerminal() || !voucher.IsExpired(now) {
		return nil
	}

	cancelled, err := e.cancelPending(ctx, dbTx, voucher, domain.CancelReasonVoucherExpired, now)
	if err != nil {
		return err
	}
	if err := voucher.Expire(now); err != nil {
		return apperror.InternalError(fmt.Errorf("expire voucher: %w", err))
	}
	if err := e.voucherRepo.Update(ctx, dbTx, voucher); err != nil {
		return storageError("update voucher", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return storageError("commit tx", err)
	}

	e.log.Info().
		Str("voucher_id", voucher.ID.String()).
		Int("cascade_cancelled", cancelled).
		Msg("voucher expired")
	return nil
}

// expireAfterRollback runs expire once the failing operation has released its
// locks. The caller's VoucherExpired error stands even if this fails.
func (e *settlementEngine) expireAfterRollback(ctx context.Context, voucherID uuid.UUID, now time.Time) {
	if err := e.expire(ctx, voucherID, now); err != nil {
		e.log.Warn().Err(err).Str("voucher_id", voucherID.String()).Msg("failed to expire voucher")
	}
}

// checkVoucherUsable rejects vouchers that can no longer be spent.
func checkVoucherUsable(v *domain.Voucher) error {
	switch v.Status {
	case domain.VoucherStatusActive:
		return nil
	case domain.VoucherStatusExpired:
		return apperror.ErrVoucherExpired()
	default:
		return apperror.ErrVoucherNotActive()
	}
}

// domainError maps voucher state machine errors to AppErrors.
func domainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrVoucherNotActive):
		return apperror.ErrVoucherNotActive()
	case errors.Is(err, domain.ErrExceedsAvailable):
		return apperror.ErrAmountExceedsBalance()
	case errors.Is(err, domain.ErrInsufficientEscrow):
		return apperror.ErrInsufficientEscrow()
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperror.ErrInvalidState(err.Error())
	case errors.Is(err, domain.ErrRedemptionTerminal):
		return apperror.ErrAlreadyTerminal()
	case errors.Is(err, domain.ErrNegativeBalance):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrBalanceLimit):
		return apperror.ErrBalanceLimit()
	default:
		return apperror.InternalError(err)
	}
}
