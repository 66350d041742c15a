package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType identifies which balance a ledger entry touches.
type AccountType string

const (
	AccountWallet  AccountType = "WALLET"
	AccountVoucher AccountType = "VOUCHER"
	AccountVendor  AccountType = "VENDOR"
)

// EntryType represents the kind of money movement.
type EntryType string

const (
	EntryDeposit         EntryType = "DEPOSIT"
	EntryVoucherPurchase EntryType = "VOUCHER_PURCHASE" // wallet debit
	EntryVoucherFunding  EntryType = "VOUCHER_FUNDING"  // voucher credit
	EntryReserve         EntryType = "RESERVE"
	EntryRelease         EntryType = "RELEASE"
	EntrySettleDebit     EntryType = "SETTLE_DEBIT"
	EntrySettleCredit    EntryType = "SETTLE_CREDIT"
	EntryPayout          EntryType = "PAYOUT"
	EntryPayoutReversal  EntryType = "PAYOUT_REVERSAL" // credit back of an undisbursed payout
)

// LedgerEntry is an immutable journal record of one balance movement.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	AccountType AccountType     `json:"account_type"`
	AccountID   uuid.UUID       `json:"account_id"`
	EntryType   EntryType       `json:"entry_type"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID uuid.UUID       `json:"reference_id"` // voucher or redemption the movement belongs to
	CreatedAt   time.Time       `json:"created_at"`
}

// NewLedgerEntry builds a journal entry stamped at now.
func NewLedgerEntry(account AccountType, accountID uuid.UUID, entry EntryType, amt decimal.Decimal, ref uuid.UUID, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:          uuid.New(),
		AccountType: account,
		AccountID:   accountID,
		EntryType:   entry,
		Amount:      amt,
		ReferenceID: ref,
		CreatedAt:   now,
	}
}
