package postgres

import (
	"context"
	"testing"
	"time"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := domain.NewLedgerEntry(domain.AccountVoucher, uuid.New(), domain.EntryReserve,
		decimal.RequireFromString("150.00"), uuid.New(), time.Now().UTC().Truncate(time.Microsecond))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.AccountType, e.AccountID, e.EntryType, e.Amount, e.ReferenceID, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE account_type = .+ AND account_id = .+ ORDER BY created_at DESC").
		WithArgs(domain.AccountWallet, walletID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_type", "account_id", "entry_type", "amount", "reference_id", "created_at"}).
			AddRow(uuid.New(), domain.AccountWallet, walletID, domain.EntryVoucherPurchase, decimal.RequireFromString("200.00"), uuid.New(), now).
			AddRow(uuid.New(), domain.AccountWallet, walletID, domain.EntryDeposit, decimal.RequireFromString("500.00"), walletID, now.Add(-time.Minute)))

	entries, err := repo.ListByAccount(context.Background(), domain.AccountWallet, walletID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EntryVoucherPurchase, entries[0].EntryType)
	assert.Equal(t, domain.EntryDeposit, entries[1].EntryType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
