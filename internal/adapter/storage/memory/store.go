// Package memory is a process-local storage backend. Transactions are fully
// serialised: Begin blocks until the previous transaction commits or rolls
// back, which gives every FOR UPDATE read the same exclusivity PostgreSQL
// row locks provide. Rollback replays an undo log.
//
// Non-locking reads do not wait for the running transaction and may observe
// its uncommitted writes.
package memory

import (
	"context"
	"errors"
	"sync"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds every table of the in-memory backend.
type Store struct {
	sem chan struct{} // one slot: the running transaction

	mu          sync.RWMutex
	wallets     map[uuid.UUID]*domain.Wallet // by customer id
	vouchers    map[uuid.UUID]*domain.Voucher
	codes       map[string]uuid.UUID
	redemptions map[uuid.UUID]*domain.Redemption
	vendors     map[uuid.UUID]*domain.Vendor
	finances    map[uuid.UUID]*domain.VendorFinance
	ledger      []domain.LedgerEntry
	idempotency map[string]*domain.IdempotencyLog
	audit       []domain.AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sem:         make(chan struct{}, 1),
		wallets:     make(map[uuid.UUID]*domain.Wallet),
		vouchers:    make(map[uuid.UUID]*domain.Voucher),
		codes:       make(map[string]uuid.UUID),
		redemptions: make(map[uuid.UUID]*domain.Redemption),
		vendors:     make(map[uuid.UUID]*domain.Vendor),
		finances:    make(map[uuid.UUID]*domain.VendorFinance),
		idempotency: make(map[string]*domain.IdempotencyLog),
	}
}

// Transactor implements ports.DBTransactor over a Store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor for store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin waits for exclusive access to the store.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case t.store.sem <- struct{}{}:
		return &memTx{store: t.store}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// memTx satisfies pgx.Tx for the repositories of this package. Only Commit
// and Rollback are implemented; the embedded nil interface panics on SQL use.
type memTx struct {
	pgx.Tx

	store *Store
	undo  []func()
	done  bool
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.undo = nil
	<-tx.store.sem
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true

	tx.store.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.store.mu.Unlock()
	tx.undo = nil

	<-tx.store.sem
	return nil
}

// write runs fn under the store lock and records how to revert it.
// fn returns the undo step, or nil when it changed nothing.
func (s *Store) write(tx pgx.Tx, fn func() (func(), error)) error {
	mtx, ok := tx.(*memTx)
	if !ok || mtx.store != s {
		return errForeignTx
	}
	if mtx.done {
		return pgx.ErrTxClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	undo, err := fn()
	if err != nil {
		return err
	}
	if undo != nil {
		mtx.undo = append(mtx.undo, undo)
	}
	return nil
}

// inTx checks that a locking read runs inside a live transaction of s.
func (s *Store) inTx(tx pgx.Tx) error {
	mtx, ok := tx.(*memTx)
	if !ok || mtx.store != s {
		return errForeignTx
	}
	if mtx.done {
		return pgx.ErrTxClosed
	}
	return nil
}

// HealthCheck implements ports.HealthChecker for the in-memory backend.
type HealthCheck struct{}

// Ping always succeeds.
func (HealthCheck) Ping(ctx context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }
