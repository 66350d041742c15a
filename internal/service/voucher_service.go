package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"purposepay/config"
	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// VoucherServiceImpl implements ports.VoucherService.
type VoucherServiceImpl struct {
	walletRepo     ports.WalletRepository
	voucherRepo    ports.VoucherRepository
	redemptionRepo ports.RedemptionRepository
	ledgerRepo     ports.LedgerRepository
	idem           idempotency
	gateway        ports.PaymentGateway
	transactor     ports.DBTransactor
	expirer        *settlementEngine
	rules          config.LedgerRules
	now            ports.Clock
	log            zerolog.Logger
}

// NewVoucherService creates a new VoucherServiceImpl. idempCache may be nil.
func NewVoucherService(
	walletRepo ports.WalletRepository,
	voucherRepo ports.VoucherRepository,
	redemptionRepo ports.RedemptionRepository,
	ledgerRepo ports.LedgerRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	rules config.LedgerRules,
	log zerolog.Logger,
) *VoucherServiceImpl {
	return &VoucherServiceImpl{
		walletRepo:     walletRepo,
		voucherRepo:    voucherRepo,
		redemptionRepo: redemptionRepo,
		ledgerRepo:     ledgerRepo,
		idem:           idempotency{repo: idempRepo, cache: idempCache, log: log},
		gateway:        gateway,
		transactor:     transactor,
		expirer: &settlementEngine{
			voucherRepo:    voucherRepo,
			redemptionRepo: redemptionRepo,
			ledgerRepo:     ledgerRepo,
			transactor:     transactor,
			log:            log,
		},
		rules: rules,
		now:   utcNow,
		log:   log,
	}
}

// Create debits the customer's wallet and issues a PENDING_PAYMENT voucher
// funded with the same amount.
func (s *VoucherServiceImpl) Create(ctx context.Context, req ports.CreateVoucherRequest) (*domain.Voucher, error) {
	if err := requireRole(req.Principal, domain.RoleCustomer); err != nil {
		return nil, err
	}
	category, ok := domain.ParseCategory(string(req.Category))
	if !ok {
		return nil, apperror.ErrInvalidCategory()
	}
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Amount.LessThan(s.rules.MinVoucherAmount) {
		return nil, apperror.ErrAmountTooLow(domain.FormatMoney(s.rules.MinVoucherAmount))
	}

	customerID := req.Principal.UserID
	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(customerID, domain.IdempotencyScopeVoucher, req.IdempotencyKey)
		cached, err := s.idem.lookup(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return replay[domain.Voucher](cached)
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByCustomerIDForUpdate(ctx, dbTx, customerID)
	if err != nil {
		return nil, storageError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrInsufficientFunds()
	}
	newBalance, err := domain.Debit(wallet.Balance, req.Amount)
	if err != nil {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := s.now()
	voucher, err := s.insertWithFreshCode(ctx, dbTx, customerID, category, req, now)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return nil, storageError("update wallet balance", err)
	}
	if err := writeLedger(ctx, s.ledgerRepo, dbTx,
		domain.NewLedgerEntry(domain.AccountWallet, wallet.ID, domain.EntryVoucherPurchase, req.Amount, voucher.ID, now),
		domain.NewLedgerEntry(domain.AccountVoucher, voucher.ID, domain.EntryVoucherFunding, req.Amount, voucher.ID, now),
	); err != nil {
		return nil, err
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = s.idem.record(ctx, dbTx, idempKey, voucher.ID, voucher, now)
		if errors.Is(err, ports.ErrIdempotencyConflict) {
			// Another request with the same key committed first; its debit is the only one.
			_ = dbTx.Rollback(ctx)
			return s.replayCreate(ctx, idempKey)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit tx", err)
	}
	if idempKey != "" {
		s.idem.remember(ctx, idempKey, respJSON)
	}

	s.log.Info().
		Str("voucher_id", voucher.ID.String()).
		Str("customer_id", customerID.String()).
		Str("category", string(category)).
		Str("amount", domain.FormatMoney(req.Amount)).
		Msg("voucher created")

	return voucher, nil
}

// insertWithFreshCode retries code generation on collision.
func (s *VoucherServiceImpl) insertWithFreshCode(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, category domain.Category, req ports.CreateVoucherRequest, now time.Time) (*domain.Voucher, error) {
	for attempt := 1; attempt <= s.rules.CodeAttempts; attempt++ {
		code, err := domain.GenerateVoucherCode()
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		voucher := domain.NewVoucher(customerID, code, category, req.Amount, now, s.rules.VoucherTTL)
		err = s.voucherRepo.Create(ctx, tx, voucher)
		if err == nil {
			return voucher, nil
		}
		if !errors.Is(err, ports.ErrDuplicateCode) {
			return nil, storageError("create voucher", err)
		}
		s.log.Warn().Int("attempt", attempt).Msg("voucher code collision, regenerating")
	}
	return nil, apperror.InternalError(fmt.Errorf("no free voucher code after %d attempts", s.rules.CodeAttempts))
}

func (s *VoucherServiceImpl) replayCreate(ctx context.Context, idempKey string) (*domain.Voucher, error) {
	cached, err := s.idem.lookup(ctx, idempKey)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency log %q vanished after conflict", idempKey))
	}
	return replay[domain.Voucher](cached)
}

// Activate confirms payment with the gateway and moves the voucher to ACTIVE.
func (s *VoucherServiceImpl) Activate(ctx context.Context, principal domain.Principal, voucherID uuid.UUID) (*domain.Voucher, error) {
	if err := requireRole(principal, domain.RoleCustomer); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	voucher, err := s.voucherRepo.GetByIDForUpdate(ctx, dbTx, voucherID)
	if err != nil {
		return nil, storageError("lock voucher", err)
	}
	if voucher == nil || voucher.CustomerID != principal.UserID {
		return nil, apperror.ErrNotFound("voucher")
	}
	if voucher.Status != domain.VoucherStatusPendingPayment {
		return nil, apperror.ErrInvalidState(fmt.Sprintf("Voucher cannot be activated in status %s", voucher.Status))
	}

	now := s.now()
	if voucher.IsExpired(now) {
		_ = dbTx.Rollback(ctx)
		s.expirer.expireAfterRollback(ctx, voucher.ID, now)
		return nil, apperror.ErrVoucherExpired()
	}

	authRef, err := s.gateway.Authorize(ctx, voucher.CustomerID, voucher.InitialAmount, "voucher:"+voucher.Code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("gateway authorize: %w", err))
	}
	if err := voucher.Activate(now); err != nil {
		return nil, domainError(err)
	}
	if err := s.voucherRepo.Update(ctx, dbTx, voucher); err != nil {
		return nil, storageError("update voucher", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit tx", err)
	}

	s.log.Info().
		Str("voucher_id", voucher.ID.String()).
		Str("auth_ref", authRef).
		Msg("voucher activated")

	return voucher, nil
}

// Get returns an owned voucher with its redemption requests.
func (s *VoucherServiceImpl) Get(ctx context.Context, principal domain.Principal, voucherID uuid.UUID) (*ports.VoucherDetail, error) {
	if err := requireRole(principal, domain.RoleCustomer); err != nil {
		return nil, err
	}
	voucher, err := s.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return nil, storageError("get voucher", err)
	}
	if voucher == nil || voucher.CustomerID != principal.UserID {
		return nil, apperror.ErrNotFound("voucher")
	}
	redemptions, err := s.redemptionRepo.ListByVoucher(ctx, voucherID)
	if err != nil {
		return nil, storageError("list redemptions", err)
	}
	return &ports.VoucherDetail{Voucher: *voucher, Redemptions: redemptions}, nil
}

// List returns the customer's vouchers, newest first.
func (s *VoucherServiceImpl) List(ctx context.Context, principal domain.Principal, filter ports.VoucherFilter) ([]domain.Voucher, error) {
	if err := requireRole(principal, domain.RoleCustomer); err != nil {
		return nil, err
	}
	list, err := s.voucherRepo.List(ctx, ports.VoucherListParams{
		CustomerID: principal.UserID,
		Status:     filter.Status,
		Category:   filter.Category,
		Code:       strings.ToUpper(strings.TrimSpace(filter.Code)),
	})
	if err != nil {
		return nil, storageError("list vouchers", err)
	}
	return list, nil
}
