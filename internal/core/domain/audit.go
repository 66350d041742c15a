package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionDeposit           AuditAction = "DEPOSIT"
	AuditActionVoucherCreate     AuditAction = "VOUCHER_CREATE"
	AuditActionVoucherActivate   AuditAction = "VOUCHER_ACTIVATE"
	AuditActionRedemptionRequest AuditAction = "REDEMPTION_REQUEST"
	AuditActionRedemptionConfirm AuditAction = "REDEMPTION_CONFIRM"
	AuditActionRedemptionCancel  AuditAction = "REDEMPTION_CANCEL"
	AuditActionPayout            AuditAction = "PAYOUT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
