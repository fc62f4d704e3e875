package model

import "time"

type Reward struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
	// CooldownDays, when set, is the minimum number of days between
	// successive claims of this reward by the same user.
	CooldownDays *int `json:"cooldown_days"`
	// MaxClaims, when set, caps the number of non-rejected claims per user.
	MaxClaims *int      `json:"max_claims"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RewardClaimStatus is the lifecycle state of a reward claim.
type RewardClaimStatus string

const (
	RewardClaimPending  RewardClaimStatus = "pending"
	RewardClaimApproved RewardClaimStatus = "approved"
	RewardClaimRejected RewardClaimStatus = "rejected"
	RewardClaimExpired  RewardClaimStatus = "expired"
)

// RewardClaim records a user's redemption of a reward. The cost is
// debited when the claim is created; rejection and expiry refund it.
type RewardClaim struct {
	ID       int64             `json:"id"`
	RewardID int64             `json:"reward_id"`
	UserID   int64             `json:"user_id"`
	Status   RewardClaimStatus `json:"status"`
	// PointsSpent is the reward cost at claim time.
	PointsSpent int `json:"points_spent"`

	ApprovedBy *int64     `json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`

	RejectedBy      *int64     `json:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `json:"rejection_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
