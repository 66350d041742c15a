package domain

import (
	"time"

	"github.com/google/uuid"
)

// Idempotency scopes.
const (
	IdempotencyScopeVoucher = "voucher"
	IdempotencyScopeDeposit = "deposit"
)

// IdempotencyLog stores the result of a mutating call so a retry replays it.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "customer_id:scope:client_key"
	ResourceID   uuid.UUID `json:"resource_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildIdempotencyKey constructs the standard key format.
func BuildIdempotencyKey(customerID uuid.UUID, scope, clientKey string) string {
	return customerID.String() + ":" + scope + ":" + clientKey
}
