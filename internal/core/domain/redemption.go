package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedemptionStatus represents the lifecycle state of a redemption request.
type RedemptionStatus string

const (
	RedemptionStatusPending   RedemptionStatus = "PENDING"
	RedemptionStatusRedeemed  RedemptionStatus = "REDEEMED"
	RedemptionStatusCancelled RedemptionStatus = "CANCELLED"
)

// CancelReason records who or what cancelled a redemption request.
type CancelReason string

const (
	CancelReasonCustomer       CancelReason = "CUSTOMER"
	CancelReasonVoucherLocked  CancelReason = "VOUCHER_LOCKED"
	CancelReasonVoucherExpired CancelReason = "VOUCHER_EXPIRED"
)

// ErrRedemptionTerminal is returned when a redeemed or cancelled request is mutated.
var ErrRedemptionTerminal = errors.New("redemption request is terminal")

// Redemption is a vendor's claim against a voucher, awaiting customer confirmation.
type Redemption struct {
	ID           uuid.UUID        `json:"id"`
	VoucherID    uuid.UUID        `json:"voucher_id"`
	VendorID     uuid.UUID        `json:"vendor_id"`
	VoucherCode  string           `json:"voucher_code,omitempty"` // read-side join, not persisted on the row
	Amount       decimal.Decimal  `json:"amount"`
	Status       RedemptionStatus `json:"status"`
	CancelReason *CancelReason    `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
}

// NewRedemption returns a pending request for amt.
func NewRedemption(voucher *Voucher, vendorID uuid.UUID, amt decimal.Decimal, now time.Time) *Redemption {
	return &Redemption{
		ID:          uuid.New(),
		VoucherID:   voucher.ID,
		VendorID:    vendorID,
		VoucherCode: voucher.Code,
		Amount:      amt,
		Status:      RedemptionStatusPending,
		CreatedAt:   now,
	}
}

// IsTerminal returns true once the request is REDEEMED or CANCELLED.
func (r *Redemption) IsTerminal() bool {
	return r.Status != RedemptionStatusPending
}

// Redeem marks the request as paid out.
func (r *Redemption) Redeem(now time.Time) error {
	if r.IsTerminal() {
		return ErrRedemptionTerminal
	}
	r.Status = RedemptionStatusRedeemed
	r.ResolvedAt = &now
	return nil
}

// Cancel marks the request as cancelled for reason.
func (r *Redemption) Cancel(reason CancelReason, now time.Time) error {
	if r.IsTerminal() {
		return ErrRedemptionTerminal
	}
	r.Status = RedemptionStatusCancelled
	r.CancelReason = &reason
	r.ResolvedAt = &now
	return nil
}
