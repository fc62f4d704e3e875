package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/choretab/choretab/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *RewardStore) WithTx(tx *sql.Tx) *RewardStore {
	return &RewardStore{db: tx}
}

const rewardCols = `id, name, description, cost, cooldown_days, max_claims, is_active, created_at, updated_at`

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var cooldown, maxClaims sql.NullInt64

	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.Cost, &cooldown, &maxClaims, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if cooldown.Valid {
		v := int(cooldown.Int64)
		r.CooldownDays = &v
	}
	if maxClaims.Valid {
		v := int(maxClaims.Int64)
		r.MaxClaims = &v
	}
	return &r, nil
}

func (s *RewardStore) Create(r model.Reward) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (name, description, cost, cooldown_days, max_claims, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, r.Description, r.Cost, nullInt(r.CooldownDays), nullInt(r.MaxClaims), true,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListActive() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards WHERE is_active = 1 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Deactivate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE rewards SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate reward: %w", err)
	}
	return nil
}

// --- Reward claim methods ---

const rewardClaimCols = `id, reward_id, user_id, status, points_spent, approved_by, approved_at,
	rejected_by, rejected_at, rejection_reason, created_at, updated_at`

func scanRewardClaim(scanner interface{ Scan(...any) error }) (*model.RewardClaim, error) {
	var c model.RewardClaim
	var approvedBy, rejectedBy sql.NullInt64
	var approvedAt, rejectedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.RewardID, &c.UserID, &c.Status, &c.PointsSpent,
		&approvedBy, &approvedAt, &rejectedBy, &rejectedAt, &c.RejectionReason,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedBy.Valid {
		c.ApprovedBy = &approvedBy.Int64
	}
	if approvedAt.Valid {
		c.ApprovedAt = &approvedAt.Time
	}
	if rejectedBy.Valid {
		c.RejectedBy = &rejectedBy.Int64
	}
	if rejectedAt.Valid {
		c.RejectedAt = &rejectedAt.Time
	}
	return &c, nil
}

func (s *RewardStore) CreateClaim(rewardID, userID int64, pointsSpent int, at time.Time) (*model.RewardClaim, error) {
	result, err := s.db.Exec(
		`INSERT INTO reward_claims (reward_id, user_id, status, points_spent, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rewardID, userID, string(model.RewardClaimPending), pointsSpent, at, at,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward claim: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetClaimByID(id)
}

func (s *RewardStore) GetClaimByID(id int64) (*model.RewardClaim, error) {
	row := s.db.QueryRow(`SELECT `+rewardClaimCols+` FROM reward_claims WHERE id = ?`, id)
	c, err := scanRewardClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward claim: %w", err)
	}
	return c, nil
}

func (s *RewardStore) ApproveClaim(id, approverID int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_claims SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.RewardClaimApproved), approverID, at, at, id, string(model.RewardClaimPending),
	)
	if err != nil {
		return false, fmt.Errorf("approve reward claim: %w", err)
	}
	return oneRow(result)
}

func (s *RewardStore) RejectClaim(id, rejecterID int64, at time.Time, reason string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_claims SET status = ?, rejected_by = ?, rejected_at = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.RewardClaimRejected), rejecterID, at, reason, at, id, string(model.RewardClaimPending),
	)
	if err != nil {
		return false, fmt.Errorf("reject reward claim: %w", err)
	}
	return oneRow(result)
}

func (s *RewardStore) ExpireClaim(id int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_claims SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.RewardClaimExpired), at, id, string(model.RewardClaimPending),
	)
	if err != nil {
		return false, fmt.Errorf("expire reward claim: %w", err)
	}
	return oneRow(result)
}

// CountLiveClaims counts the user's claims that still count against a
// per-user claim limit (rejected and expired claims do not).
func (s *RewardStore) CountLiveClaims(rewardID, userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reward_claims WHERE reward_id = ? AND user_id = ? AND status IN (?, ?)`,
		rewardID, userID, string(model.RewardClaimPending), string(model.RewardClaimApproved),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reward claims: %w", err)
	}
	return n, nil
}

// LastLiveClaimAt returns when the user last claimed the reward, ignoring
// rejected and expired claims. Nil when they never have. Selects the row
// rather than MAX(created_at): the aggregate loses the column's time
// affinity and scans back as a string.
func (s *RewardStore) LastLiveClaimAt(rewardID, userID int64) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRow(
		`SELECT created_at FROM reward_claims WHERE reward_id = ? AND user_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		rewardID, userID, string(model.RewardClaimPending), string(model.RewardClaimApproved),
	).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last reward claim: %w", err)
	}
	return &at, nil
}

// ListPendingOlderThan returns pending claims created at or before the
// cutoff, for the expiry sweep.
func (s *RewardStore) ListPendingOlderThan(cutoff time.Time) ([]model.RewardClaim, error) {
	rows, err := s.db.Query(
		`SELECT `+rewardClaimCols+` FROM reward_claims WHERE status = ? AND created_at <= ? ORDER BY created_at ASC`,
		string(model.RewardClaimPending), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending reward claims: %w", err)
	}
	defer rows.Close()

	var claims []model.RewardClaim
	for rows.Next() {
		c, err := scanRewardClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}
