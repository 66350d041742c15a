package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is a customer's deposit-funded balance, the only source of funds for vouchers.
type Wallet struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewWallet returns an empty wallet for the customer.
func NewWallet(customerID uuid.UUID, now time.Time) *Wallet {
	return &Wallet{
		ID:         uuid.New(),
		CustomerID: customerID,
		Balance:    decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
