package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VendorStatus is the approval state set by the onboarding workflow.
type VendorStatus string

const (
	VendorStatusPending  VendorStatus = "PENDING"
	VendorStatusApproved VendorStatus = "APPROVED"
	VendorStatusRejected VendorStatus = "REJECTED"
)

// Vendor is the read model of a vendor profile owned by onboarding.
type Vendor struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	BusinessName string       `json:"business_name"`
	Category     Category     `json:"category"`
	City         string       `json:"city"`
	GPSCode      string       `json:"gps_code"`
	PhoneNumber  string       `json:"phone_number"`
	Status       VendorStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// IsApproved returns true if the vendor may redeem vouchers.
func (v *Vendor) IsApproved() bool {
	return v.Status == VendorStatusApproved
}

// VendorFinance is a vendor's payable balance, credited only by settlement.
type VendorFinance struct {
	VendorID  uuid.UUID       `json:"vendor_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}
