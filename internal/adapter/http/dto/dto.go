package dto

import "github.com/shopspring/decimal"

// Amounts are accepted either as JSON strings ("150.00") or numbers and are
// range-checked by the services, so they carry no binding tag.

// DepositRequest is the request body for a wallet deposit.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CreateVoucherRequest is the request body for voucher creation.
type CreateVoucherRequest struct {
	Category string          `json:"category" binding:"required,category"`
	Amount   decimal.Decimal `json:"amount"`
}

// RedemptionRequest is the request body for a vendor redemption claim.
type RedemptionRequest struct {
	VoucherCode string          `json:"voucher_code" binding:"required,voucher_code"`
	Amount      decimal.Decimal `json:"amount"`
}

// PayoutRequest is the request body for a vendor payout.
type PayoutRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// VoucherListQuery holds the optional filters of GET /vouchers. Code matches
// any part of the voucher code.
type VoucherListQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=PENDING_PAYMENT ACTIVE LOCKED EXPIRED"`
	Category string `form:"category" binding:"omitempty,category"`
	Code     string `form:"code" binding:"omitempty,code_fragment"`
}

// RedemptionHistoryQuery holds the optional filters of GET /vendor/redemptions.
type RedemptionHistoryQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING REDEEMED CANCELLED"`
	Code   string `form:"code" binding:"omitempty,code_fragment"`
}

// ApprovedVendorsQuery holds the optional filter of GET /vendors/approved/:category.
type ApprovedVendorsQuery struct {
	City string `form:"city" binding:"omitempty,max=100"`
}

// WalletResponse is the response body for wallet reads and deposits.
type WalletResponse struct {
	CustomerID string `json:"customer_id"`
	Balance    string `json:"balance"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// VoucherResponse is the public view of a voucher.
type VoucherResponse struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	Category         string `json:"category"`
	InitialAmount    string `json:"initial_amount"`
	RemainingBalance string `json:"remaining_balance"`
	EscrowBalance    string `json:"escrow_balance"`
	AvailableBalance string `json:"available_balance"`
	Status           string `json:"status"`
	ExpiresAt        string `json:"expires_at"`
	CreatedAt        string `json:"created_at"`
}

// RedemptionResponse is the public view of a redemption request.
type RedemptionResponse struct {
	ID           string  `json:"id"`
	VoucherID    string  `json:"voucher_id"`
	VoucherCode  string  `json:"voucher_code,omitempty"`
	VendorID     string  `json:"vendor_id"`
	Amount       string  `json:"amount"`
	Status       string  `json:"status"`
	CancelReason *string `json:"cancel_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ResolvedAt   *string `json:"resolved_at,omitempty"`
}

// VoucherDetailResponse is a voucher with its redemption requests.
type VoucherDetailResponse struct {
	Voucher     VoucherResponse      `json:"voucher"`
	Redemptions []RedemptionResponse `json:"redemptions"`
}

// VendorBalanceResponse is the response body for vendor balance and payouts.
type VendorBalanceResponse struct {
	VendorID  string `json:"vendor_id"`
	Balance   string `json:"balance"`
	UpdatedAt string `json:"updated_at"`
}

// VendorResponse is the public listing view of an approved vendor.
type VendorResponse struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	Category     string `json:"category"`
	City         string `json:"city"`
	GPSCode      string `json:"gps_code"`
	PhoneNumber  string `json:"phone_number"`
}
