package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, customer_id, balance, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetByCustomerID fetches a customer's wallet (non-locking read).
func (r *WalletRepo) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE customer_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by customer id: %w", err)
	}
	return w, nil
}

// EnsureForUpdate provisions the customer's wallet if it does not exist yet and
// returns it with a row lock held. This MUST be called within a transaction.
func (r *WalletRepo) EnsureForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	fresh := domain.NewWallet(customerID, time.Now().UTC())
	insert := `INSERT INTO wallets (id, customer_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (customer_id) DO NOTHING`

	if _, err := tx.Exec(ctx, insert, fresh.ID, fresh.CustomerID, fresh.Balance, fresh.CreatedAt, fresh.UpdatedAt); err != nil {
		return nil, classify("provision wallet", err)
	}

	w, err := r.GetByCustomerIDForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("wallet for customer %s vanished after provisioning", customerID)
	}
	return w, nil
}

// GetByCustomerIDForUpdate fetches a wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE customer_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, classify("get wallet for update", err)
	}
	return w, nil
}

// UpdateBalance sets a wallet's balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, walletID)
	if err != nil {
		return classify("update wallet balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.CustomerID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
