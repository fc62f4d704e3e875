package model

import "time"

// Role determines what a user may do in the chore workflow.
type Role string

const (
	RoleParent    Role = "parent"
	RoleKid       Role = "kid"
	RoleSystem    Role = "system"
	RoleUnmapped  Role = "unmapped"
	RoleClaimOnly Role = "claim_only"
)

// CanApprove reports whether the role may approve or reject claims.
// The system role approves through the auto-approval sweep.
func (r Role) CanApprove() bool {
	return r == RoleParent || r == RoleSystem
}

// CanClaim reports whether the role may claim chore instances.
func (r Role) CanClaim() bool {
	return r == RoleKid || r == RoleClaimOnly
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleKid, RoleSystem, RoleUnmapped, RoleClaimOnly:
		return true
	}
	return false
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Points    int       `json:"points"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
