package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherStatus represents the lifecycle state of a voucher.
type VoucherStatus string

const (
	VoucherStatusPendingPayment VoucherStatus = "PENDING_PAYMENT"
	VoucherStatusActive         VoucherStatus = "ACTIVE"
	VoucherStatusLocked         VoucherStatus = "LOCKED"
	VoucherStatusExpired        VoucherStatus = "EXPIRED"
)

const (
	VoucherCodePrefix = "PP-"
	voucherCodeLength = 11
	voucherAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	ErrInvalidTransition  = errors.New("voucher status transition not allowed")
	ErrVoucherNotActive   = errors.New("voucher is not active")
	ErrExceedsAvailable   = errors.New("amount exceeds available voucher balance")
	ErrInsufficientEscrow = errors.New("escrow does not cover amount")
)

// Voucher is a category-scoped, time-limited prepaid token.
//
// RemainingBalance is the spendable value left, EscrowBalance the part of it
// reserved by pending redemption requests. The invariant
// 0 <= EscrowBalance <= RemainingBalance <= InitialAmount holds after every
// mutation, and RemainingBalance == 0 implies LOCKED.
type Voucher struct {
	ID               uuid.UUID       `json:"id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	Code             string          `json:"code"`
	Category         Category        `json:"category"`
	InitialAmount    decimal.Decimal `json:"initial_amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	EscrowBalance    decimal.Decimal `json:"escrow_balance"`
	Status           VoucherStatus   `json:"status"`
	ExpiresAt        time.Time       `json:"expires_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewVoucher builds a voucher awaiting payment with its full amount spendable.
func NewVoucher(customerID uuid.UUID, code string, category Category, amount decimal.Decimal, now time.Time, ttl time.Duration) *Voucher {
	return &Voucher{
		ID:               uuid.New(),
		CustomerID:       customerID,
		Code:             code,
		Category:         category,
		InitialAmount:    amount,
		RemainingBalance: amount,
		EscrowBalance:    decimal.Zero,
		Status:           VoucherStatusPendingPayment,
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// GenerateVoucherCode returns PP- followed by 11 random uppercase alphanumerics.
func GenerateVoucherCode() (string, error) {
	buf := make([]byte, voucherCodeLength)
	limit := big.NewInt(int64(len(voucherAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating voucher code: %w", err)
		}
		buf[i] = voucherAlphabet[n.Int64()]
	}
	return VoucherCodePrefix + string(buf), nil
}

// IsTerminal returns true for LOCKED and EXPIRED vouchers.
func (v *Voucher) IsTerminal() bool {
	return v.Status == VoucherStatusLocked || v.Status == VoucherStatusExpired
}

// IsExpired reports whether the voucher's expiry lies before now.
func (v *Voucher) IsExpired(now time.Time) bool {
	return v.ExpiresAt.Before(now)
}

// Available is the part of the remaining balance not yet reserved.
func (v *Voucher) Available() decimal.Decimal {
	return v.RemainingBalance.Sub(v.EscrowBalance)
}

// Activate moves a paid voucher from PENDING_PAYMENT to ACTIVE.
func (v *Voucher) Activate(now time.Time) error {
	if v.Status != VoucherStatusPendingPayment {
		return ErrInvalidTransition
	}
	v.Status = VoucherStatusActive
	v.UpdatedAt = now
	return nil
}

// Expire moves a non-terminal voucher to EXPIRED.
func (v *Voucher) Expire(now time.Time) error {
	if v.IsTerminal() {
		return ErrInvalidTransition
	}
	v.Status = VoucherStatusExpired
	v.UpdatedAt = now
	return nil
}

// Reserve moves amt of the available balance into escrow.
func (v *Voucher) Reserve(amt decimal.Decimal, now time.Time) error {
	if v.Status != VoucherStatusActive {
		return ErrVoucherNotActive
	}
	if amt.GreaterThan(v.Available()) {
		return ErrExceedsAvailable
	}
	v.EscrowBalance = v.EscrowBalance.Add(amt)
	v.UpdatedAt = now
	return nil
}

// Release returns amt of escrow to the available balance.
func (v *Voucher) Release(amt decimal.Decimal, now time.Time) error {
	escrow, err := Debit(v.EscrowBalance, amt)
	if err != nil {
		return ErrInsufficientEscrow
	}
	v.EscrowBalance = escrow
	v.UpdatedAt = now
	return nil
}

// Settle pays amt out of escrow, reducing the remaining balance by the same
// amount. It reports whether the voucher is now exhausted and LOCKED.
func (v *Voucher) Settle(amt decimal.Decimal, now time.Time) (bool, error) {
	if v.Status != VoucherStatusActive {
		return false, ErrVoucherNotActive
	}
	if v.EscrowBalance.LessThan(amt) || v.RemainingBalance.LessThan(amt) {
		return false, ErrInsufficientEscrow
	}
	v.EscrowBalance = v.EscrowBalance.Sub(amt)
	v.RemainingBalance = v.RemainingBalance.Sub(amt)
	v.UpdatedAt = now
	if v.RemainingBalance.IsZero() {
		v.Status = VoucherStatusLocked
		return true, nil
	}
	return false, nil
}

// CheckInvariant verifies the balance ordering and the zero-balance lock rule.
func (v *Voucher) CheckInvariant() error {
	if v.EscrowBalance.IsNegative() {
		return fmt.Errorf("voucher %s: negative escrow %s", v.Code, v.EscrowBalance)
	}
	if v.EscrowBalance.GreaterThan(v.RemainingBalance) {
		return fmt.Errorf("voucher %s: escrow %s exceeds remaining %s", v.Code, v.EscrowBalance, v.RemainingBalance)
	}
	if v.RemainingBalance.GreaterThan(v.InitialAmount) {
		return fmt.Errorf("voucher %s: remaining %s exceeds initial %s", v.Code, v.RemainingBalance, v.InitialAmount)
	}
	if v.RemainingBalance.IsZero() && v.Status != VoucherStatusLocked {
		return fmt.Errorf("voucher %s: zero balance in status %s", v.Code, v.Status)
	}
	return nil
}
