package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every amount.
const MoneyScale = 2

// MaxAmount is the largest value a NUMERIC(12,2) balance column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

var (
	// ErrNegativeBalance is returned when a debit would take a balance below zero.
	ErrNegativeBalance = errors.New("balance would become negative")
	// ErrBalanceLimit is returned when a credit would take a balance above MaxAmount.
	ErrBalanceLimit = errors.New("balance would exceed the maximum amount")
)

// ValidAmount reports whether amt is strictly positive, representable at
// currency scale and no larger than MaxAmount.
func ValidAmount(amt decimal.Decimal) bool {
	return amt.IsPositive() && amt.Equal(amt.Round(MoneyScale)) && amt.LessThanOrEqual(MaxAmount)
}

// Credit returns balance + amt, refusing to exceed MaxAmount.
func Credit(balance, amt decimal.Decimal) (decimal.Decimal, error) {
	sum := balance.Add(amt)
	if sum.GreaterThan(MaxAmount) {
		return balance, ErrBalanceLimit
	}
	return sum, nil
}

// Debit returns balance - amt, refusing to produce a negative balance.
func Debit(balance, amt decimal.Decimal) (decimal.Decimal, error) {
	if balance.LessThan(amt) {
		return balance, ErrNegativeBalance
	}
	return balance.Sub(amt), nil
}

// FormatMoney renders an amount with exactly MoneyScale fractional digits.
func FormatMoney(amt decimal.Decimal) string {
	return amt.StringFixed(MoneyScale)
}
