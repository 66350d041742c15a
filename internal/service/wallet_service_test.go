package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	walletRepo *mocks.MockWalletRepository
	ledgerRepo *mocks.MockLedgerRepository
	idempRepo  *mocks.MockIdempotencyRepository
	idempCache *mocks.MockIdempotencyCache
	gateway    *mocks.MockPaymentGateway
	transactor *mocks.MockDBTransactor
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		ledgerRepo: mocks.NewMockLedgerRepository(ctrl),
		idempRepo:  mocks.NewMockIdempotencyRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		gateway:    mocks.NewMockPaymentGateway(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	d.svc = NewWalletService(d.walletRepo, d.ledgerRepo, d.idempRepo, d.idempCache, d.gateway, d.transactor, zerolog.Nop())
	return d
}

func customer() domain.Principal {
	return domain.Principal{UserID: uuid.New(), Role: domain.RoleCustomer}
}

func TestWalletService_Deposit_Success(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{}
	walletID := uuid.New()

	d.gateway.EXPECT().Charge(ctx, p.UserID, decEq("50.25"), gomock.Any()).Return("sim_1", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(&domain.Wallet{
		ID: walletID, CustomerID: p.UserID, Balance: dec("100.00"),
	}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decEq("150.25")).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, domain.EntryDeposit, e.EntryType)
			assert.Equal(t, walletID, e.AccountID)
			return nil
		})

	wallet, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("50.25")})
	require.NoError(t, err)
	assert.Equal(t, "150.25", domain.FormatMoney(wallet.Balance))
	assert.True(t, tx.committed)
}

func TestWalletService_Deposit_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)

	for _, amt := range []string{"0", "-10", "10.001", "10000000000.00"} {
		_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{Principal: customer(), Amount: dec(amt)})
		assertAppError(t, err, "VAL_001")
	}
}

func TestWalletService_Deposit_UpToBalanceLimit(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{}
	walletID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(&domain.Wallet{ID: walletID, CustomerID: p.UserID, Balance: dec("0.01")}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decEq("9999999999.99")).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.gateway.EXPECT().Charge(ctx, p.UserID, decEq("9999999999.98"), gomock.Any()).Return("sim_max", nil)

	wallet, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("9999999999.98")})
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(domain.MaxAmount))
	assert.True(t, tx.committed)
}

func TestWalletService_Deposit_BalanceLimitIsNotCharged(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(&domain.Wallet{ID: uuid.New(), CustomerID: p.UserID, Balance: domain.MaxAmount}, nil)

	_, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("0.01")})
	assertAppError(t, err, "VAL_006")
	assert.True(t, tx.rolledBack)
}

func TestWalletService_Deposit_ChargeDeclinedRollsBack(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{}
	walletID := uuid.New()

	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(tx, nil),
		d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(&domain.Wallet{ID: walletID, CustomerID: p.UserID, Balance: dec("5")}, nil),
		d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decEq("25")).Return(nil),
		d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil),
		d.gateway.EXPECT().Charge(ctx, p.UserID, decEq("20"), gomock.Any()).Return("", assert.AnError),
	)

	_, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("20")})
	assertAppError(t, err, "SYS_001")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestWalletService_Deposit_CommitFailureRefundsCharge(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{commitErr: assert.AnError}
	walletID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(&domain.Wallet{ID: walletID, CustomerID: p.UserID, Balance: dec("0")}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decEq("40")).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	gomock.InOrder(
		d.gateway.EXPECT().Charge(ctx, p.UserID, decEq("40"), gomock.Any()).Return("sim_ch_9", nil),
		d.gateway.EXPECT().Refund(gomock.Any(), p.UserID, decEq("40"), "sim_ch_9").Return("sim_rf_9", nil),
	)

	_, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("40")})
	assertAppError(t, err, "SYS_001")
	assert.True(t, tx.rolledBack)
}

func TestWalletService_Deposit_VendorForbidden(t *testing.T) {
	d := setupWalletService(t)
	p := domain.Principal{UserID: uuid.New(), Role: domain.RoleVendor}

	_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{Principal: p, Amount: dec("10")})
	assertAppError(t, err, "AUTH_002")
}

func TestWalletService_Deposit_IdempotentRedisHit(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()

	cached := &domain.Wallet{ID: uuid.New(), CustomerID: p.UserID, Balance: dec("75.00")}
	cachedJSON, _ := json.Marshal(cached)
	key := domain.BuildIdempotencyKey(p.UserID, domain.IdempotencyScopeDeposit, "dep-1")
	d.idempCache.EXPECT().Get(ctx, key).Return(cachedJSON, nil)

	wallet, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("75"), IdempotencyKey: "dep-1"})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, wallet.ID)
	assert.True(t, wallet.Balance.Equal(dec("75")))
}

func TestWalletService_Deposit_RedisDownFallsBackToDB(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()

	cached := &domain.Wallet{ID: uuid.New(), CustomerID: p.UserID, Balance: dec("20.00")}
	cachedJSON, _ := json.Marshal(cached)
	key := domain.BuildIdempotencyKey(p.UserID, domain.IdempotencyScopeDeposit, "dep-2")
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, errors.New("connection refused"))
	d.idempRepo.EXPECT().Get(ctx, key).Return(&domain.IdempotencyLog{Key: key, ResponseJSON: cachedJSON}, nil)

	wallet, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("20"), IdempotencyKey: "dep-2"})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, wallet.ID)
}

func TestWalletService_Deposit_RecordsAndCaches(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(p.UserID, domain.IdempotencyScopeDeposit, "dep-3")

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil)
	d.gateway.EXPECT().Charge(ctx, p.UserID, gomock.Any(), gomock.Any()).Return("sim_2", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(domain.NewWallet(p.UserID, time.Now()), nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), decEq("10")).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, log *domain.IdempotencyLog) error {
			assert.Equal(t, key, log.Key)
			assert.Contains(t, string(log.ResponseJSON), `"balance":"10"`)
			return nil
		})
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), idempotencyTTL).Return(errors.New("redis down"))

	wallet, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("10"), IdempotencyKey: "dep-3"})
	require.NoError(t, err, "a failed cache write is best-effort")
	assert.True(t, wallet.Balance.Equal(dec("10")))
}

func TestWalletService_Deposit_ConcurrentKeyReplays(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(p.UserID, domain.IdempotencyScopeDeposit, "dep-4")

	winner := &domain.Wallet{ID: uuid.New(), CustomerID: p.UserID, Balance: dec("30.00")}
	winnerJSON, _ := json.Marshal(winner)

	gomock.InOrder(
		d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil),
		d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil),
	)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(&domain.Wallet{ID: winner.ID, Balance: dec("30.00")}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, winner.ID, decEq("60")).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrIdempotencyConflict)
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, key).Return(&domain.IdempotencyLog{Key: key, ResponseJSON: winnerJSON}, nil)

	wallet, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("30"), IdempotencyKey: "dep-4"})
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("30")), "the first request's result is replayed")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack, "the losing request is rolled back before it is charged")
}

func TestWalletService_Deposit_LockTimeout(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().EnsureForUpdate(ctx, tx, p.UserID).Return(nil, ports.ErrLockUnavailable)

	_, err := d.svc.Deposit(ctx, ports.DepositRequest{Principal: p, Amount: dec("10")})
	assertAppError(t, err, "SYS_002")
	assert.ErrorIs(t, err, ports.ErrLockUnavailable)
}

func TestWalletService_GetWallet_NoWalletYet(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	p := customer()

	d.walletRepo.EXPECT().GetByCustomerID(ctx, p.UserID).Return(nil, nil)

	wallet, err := d.svc.GetWallet(ctx, p)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
	assert.Equal(t, p.UserID, wallet.CustomerID)
}
