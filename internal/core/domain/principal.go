package domain

import "github.com/google/uuid"

// Role is the authenticated caller's role claim.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleVendor   Role = "VENDOR"
	RoleAdmin    Role = "ADMIN"
)

// Principal is the authenticated identity passed explicitly into every operation.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// Is reports whether the principal holds role.
func (p Principal) Is(role Role) bool {
	return p.UserID != uuid.Nil && p.Role == role
}
