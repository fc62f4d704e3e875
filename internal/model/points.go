package model

import "time"

// PointsEntry is one append-only ledger row. Entries are never updated
// or deleted; the user's stored balance must always equal the sum of
// their deltas.
type PointsEntry struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Delta  int    `json:"points_delta"`
	Reason string `json:"reason"`

	InstanceID    *int64 `json:"instance_id"`
	ClaimID       *int64 `json:"claim_id"`
	RewardClaimID *int64 `json:"reward_claim_id"`

	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BalanceReport is the result of comparing a stored balance against the
// ledger sum. A mismatch is diagnostic only; it is logged and surfaced,
// never silently repaired.
type BalanceReport struct {
	UserID        int64 `json:"user_id"`
	StoredBalance int   `json:"stored_balance"`
	LedgerBalance int   `json:"ledger_balance"`
}

// Balanced reports whether the stored balance matches the ledger.
func (r BalanceReport) Balanced() bool {
	return r.StoredBalance == r.LedgerBalance
}
