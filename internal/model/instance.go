package model

import "time"

// InstanceStatus is the lifecycle state of a chore instance.
type InstanceStatus string

const (
	StatusAssigned       InstanceStatus = "assigned"
	StatusClaimed        InstanceStatus = "claimed"
	StatusClaimingClosed InstanceStatus = "claiming_closed"
	StatusApproved       InstanceStatus = "approved"
	StatusRejected       InstanceStatus = "rejected"
	StatusMissed         InstanceStatus = "missed"
)

// Terminal reports whether no further transitions are possible.
func (s InstanceStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusMissed
}

// ChoreInstance is one dated occurrence of a chore. DueDate is nil for
// "anytime" instances.
type ChoreInstance struct {
	ID      int64          `json:"id"`
	ChoreID int64          `json:"chore_id"`
	DueDate *time.Time     `json:"due_date"`
	Status  InstanceStatus `json:"status"`

	AssignedTo *int64 `json:"assigned_to"`

	ClaimedBy   *int64     `json:"claimed_by"`
	ClaimedAt   *time.Time `json:"claimed_at"`
	ClaimedLate bool       `json:"claimed_late"`

	ApprovedBy    *int64     `json:"approved_by"`
	ApprovedAt    *time.Time `json:"approved_at"`
	PointsAwarded *int       `json:"points_awarded"`

	RejectedBy      *int64     `json:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `json:"rejection_reason"`

	// Work-together instances: when claiming was closed and by whom.
	// ClaimingClosedBy is nil when the system auto-closed after the last
	// eligible claimant claimed.
	ClaimingClosedAt *time.Time `json:"claiming_closed_at"`
	ClaimingClosedBy *int64     `json:"claiming_closed_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClaimStatus is the lifecycle state of a single work-together claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// InstanceClaim records one claimant's contribution to a work-together
// instance. At most one claim exists per (instance, user).
type InstanceClaim struct {
	ID         int64       `json:"id"`
	InstanceID int64       `json:"instance_id"`
	UserID     int64       `json:"user_id"`
	Status     ClaimStatus `json:"status"`
	ClaimedAt  time.Time   `json:"claimed_at"`
	ClaimedLate bool       `json:"claimed_late"`

	PointsAwarded *int       `json:"points_awarded"`
	ApprovedBy    *int64     `json:"approved_by"`
	ApprovedAt    *time.Time `json:"approved_at"`

	RejectedBy      *int64     `json:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `json:"rejection_reason"`
}
