package service

import (
	"context"
	"errors"
	"fmt"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	idem       idempotency
	gateway    ports.PaymentGateway
	transactor ports.DBTransactor
	now        ports.Clock
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl. idempCache may be nil.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		idem:       idempotency{repo: idempRepo, cache: idempCache, log: log},
		gateway:    gateway,
		transactor: transactor,
		now:        utcNow,
		log:        log,
	}
}

// Deposit credits the wallet, provisioning it on first use, and charges the
// customer through the gateway before committing. A charge whose commit then
// fails is refunded.
func (s *WalletServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.Wallet, error) {
	if err := requireRole(req.Principal, domain.RoleCustomer); err != nil {
		return nil, err
	}
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	customerID := req.Principal.UserID
	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(customerID, domain.IdempotencyScopeDeposit, req.IdempotencyKey)
		cached, err := s.idem.lookup(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return replay[domain.Wallet](cached)
		}
	}

	depositID := uuid.New()
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.EnsureForUpdate(ctx, dbTx, customerID)
	if err != nil {
		return nil, storageError("lock wallet", err)
	}

	now := s.now()
	if wallet.Balance, err = domain.Credit(wallet.Balance, req.Amount); err != nil {
		return nil, domainError(err)
	}
	wallet.UpdatedAt = now

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
		return nil, storageError("update wallet balance", err)
	}
	if err := writeLedger(ctx, s.ledgerRepo, dbTx,
		domain.NewLedgerEntry(domain.AccountWallet, wallet.ID, domain.EntryDeposit, req.Amount, depositID, now),
	); err != nil {
		return nil, err
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = s.idem.record(ctx, dbTx, idempKey, depositID, wallet, now)
		if errors.Is(err, ports.ErrIdempotencyConflict) {
			_ = dbTx.Rollback(ctx)
			return s.replayDeposit(ctx, idempKey)
		}
		if err != nil {
			return nil, err
		}
	}

	// Charged last: a declined charge rolls back every write above.
	chargeRef, err := s.gateway.Charge(ctx, customerID, req.Amount, "deposit:"+depositID.String())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("gateway charge: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.refund(ctx, customerID, req.Amount, chargeRef)
		return nil, storageError("commit tx", err)
	}
	if idempKey != "" {
		s.idem.remember(ctx, idempKey, respJSON)
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("customer_id", customerID.String()).
		Str("amount", domain.FormatMoney(req.Amount)).
		Str("charge_ref", chargeRef).
		Msg("wallet deposit completed")

	return wallet, nil
}

// refund returns a charge whose deposit failed to commit. A failed refund is
// logged for reconciliation.
func (s *WalletServiceImpl) refund(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, chargeRef string) {
	ctx = context.WithoutCancel(ctx)
	refundRef, err := s.gateway.Refund(ctx, customerID, amount, chargeRef)
	if err != nil {
		s.log.Error().Err(err).
			Str("customer_id", customerID.String()).
			Str("amount", domain.FormatMoney(amount)).
			Str("charge_ref", chargeRef).
			Msg("deposit refund failed, charge needs manual reconciliation")
		return
	}
	s.log.Warn().
		Str("customer_id", customerID.String()).
		Str("charge_ref", chargeRef).
		Str("refund_ref", refundRef).
		Msg("deposit not committed, charge refunded")
}

func (s *WalletServiceImpl) replayDeposit(ctx context.Context, idempKey string) (*domain.Wallet, error) {
	cached, err := s.idem.lookup(ctx, idempKey)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency log %q vanished after conflict", idempKey))
	}
	return replay[domain.Wallet](cached)
}

// GetWallet returns the customer's wallet. A customer who never deposited
// sees an empty balance.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, principal domain.Principal) (*domain.Wallet, error) {
	if err := requireRole(principal, domain.RoleCustomer); err != nil {
		return nil, err
	}
	wallet, err := s.walletRepo.GetByCustomerID(ctx, principal.UserID)
	if err != nil {
		return nil, storageError("get wallet", err)
	}
	if wallet == nil {
		return &domain.Wallet{CustomerID: principal.UserID, Balance: decimal.Zero}, nil
	}
	return wallet, nil
}
