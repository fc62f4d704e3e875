package model

import "time"

// AssignmentType controls who an instance belongs to.
type AssignmentType string

const (
	// AssignmentIndividual: each instance is owned by exactly one user.
	AssignmentIndividual AssignmentType = "individual"
	// AssignmentShared: any assigned user (or any kid, when unassigned)
	// may claim the instance.
	AssignmentShared AssignmentType = "shared"
)

type Chore struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	// LatePoints, when set, replaces Points for claims made after the
	// due date but within the grace window.
	LatePoints *int `json:"late_points"`
	// Recurrence holds the JSON-encoded recurrence pattern. Empty means
	// a one-off chore occurring at StartDate.
	Recurrence string     `json:"recurrence"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`

	AssignmentType    AssignmentType `json:"assignment_type"`
	AllowWorkTogether bool           `json:"allow_work_together"`

	RequiresApproval      bool `json:"requires_approval"`
	AutoApproveAfterHours *int `json:"auto_approve_after_hours"`

	EarlyClaimDays  int `json:"early_claim_days"`
	GracePeriodDays int `json:"grace_period_days"`

	IsActive  bool      `json:"is_active"`
	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkTogether reports whether claims on this chore's instances are
// recorded per claimant rather than on the instance itself.
func (c Chore) WorkTogether() bool {
	return c.AssignmentType == AssignmentShared && c.AllowWorkTogether
}

// ChoreAssignment links a chore to a user eligible to claim it.
type ChoreAssignment struct {
	ID      int64 `json:"id"`
	ChoreID int64 `json:"chore_id"`
	UserID  int64 `json:"user_id"`
}
