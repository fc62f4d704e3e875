package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/choretab/choretab/internal/model"
)

type InstanceStore struct {
	db DBTX
}

func NewInstanceStore(db DBTX) *InstanceStore {
	return &InstanceStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *InstanceStore) WithTx(tx *sql.Tx) *InstanceStore {
	return &InstanceStore{db: tx}
}

const instanceCols = `id, chore_id, due_date, status, assigned_to, claimed_by, claimed_at, claimed_late,
	approved_by, approved_at, points_awarded, rejected_by, rejected_at, rejection_reason,
	claiming_closed_at, claiming_closed_by, created_at, updated_at`

func scanInstance(scanner interface{ Scan(...any) error }) (*model.ChoreInstance, error) {
	var i model.ChoreInstance
	var dueDate, claimedAt, approvedAt, rejectedAt, closedAt sql.NullTime
	var assignedTo, claimedBy, approvedBy, rejectedBy, closedBy, pointsAwarded sql.NullInt64

	err := scanner.Scan(
		&i.ID, &i.ChoreID, &dueDate, &i.Status, &assignedTo, &claimedBy, &claimedAt,
		&i.ClaimedLate, &approvedBy, &approvedAt, &pointsAwarded, &rejectedBy,
		&rejectedAt, &i.RejectionReason, &closedAt, &closedBy, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		i.DueDate = &dueDate.Time
	}
	if assignedTo.Valid {
		i.AssignedTo = &assignedTo.Int64
	}
	if claimedBy.Valid {
		i.ClaimedBy = &claimedBy.Int64
	}
	if claimedAt.Valid {
		i.ClaimedAt = &claimedAt.Time
	}
	if approvedBy.Valid {
		i.ApprovedBy = &approvedBy.Int64
	}
	if approvedAt.Valid {
		i.ApprovedAt = &approvedAt.Time
	}
	if pointsAwarded.Valid {
		v := int(pointsAwarded.Int64)
		i.PointsAwarded = &v
	}
	if rejectedBy.Valid {
		i.RejectedBy = &rejectedBy.Int64
	}
	if rejectedAt.Valid {
		i.RejectedAt = &rejectedAt.Time
	}
	if closedAt.Valid {
		i.ClaimingClosedAt = &closedAt.Time
	}
	if closedBy.Valid {
		i.ClaimingClosedBy = &closedBy.Int64
	}
	return &i, nil
}

func (s *InstanceStore) Create(choreID int64, dueDate *time.Time, assignedTo *int64) (*model.ChoreInstance, error) {
	result, err := s.db.Exec(
		`INSERT INTO chore_instances (chore_id, due_date, status, assigned_to) VALUES (?, ?, ?, ?)`,
		choreID, nullTime(dueDate), string(model.StatusAssigned), nullInt64(assignedTo),
	)
	if err != nil {
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InstanceStore) GetByID(id int64) (*model.ChoreInstance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM chore_instances WHERE id = ?`, id)
	i, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return i, nil
}

func (s *InstanceStore) ListByChore(choreID int64) ([]model.ChoreInstance, error) {
	return s.list(`SELECT `+instanceCols+` FROM chore_instances WHERE chore_id = ? ORDER BY due_date ASC, id ASC`, choreID)
}

func (s *InstanceStore) ListByStatus(status model.InstanceStatus) ([]model.ChoreInstance, error) {
	return s.list(`SELECT `+instanceCols+` FROM chore_instances WHERE status = ? ORDER BY due_date ASC, id ASC`, string(status))
}

func (s *InstanceStore) list(query string, args ...any) ([]model.ChoreInstance, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChoreInstance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}

// ExistsForDueDate reports whether the chore already has an instance for
// the given due date (nil matches "anytime" instances). Generation relies
// on this for idempotency.
func (s *InstanceStore) ExistsForDueDate(choreID int64, dueDate *time.Time) (bool, error) {
	var query string
	args := []any{choreID}
	if dueDate == nil {
		query = `SELECT COUNT(*) FROM chore_instances WHERE chore_id = ? AND due_date IS NULL`
	} else {
		query = `SELECT COUNT(*) FROM chore_instances WHERE chore_id = ? AND due_date = ?`
		args = append(args, *dueDate)
	}

	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("count instances: %w", err)
	}
	return n > 0, nil
}

// The mutators below enforce transitions with status-checked UPDATEs:
// the WHERE clause carries the required current status, and zero rows
// affected means the caller lost the race or the transition is illegal.

func (s *InstanceStore) Claim(id, userID int64, at time.Time, late bool) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, claimed_by = ?, claimed_at = ?, claimed_late = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusClaimed), userID, at, late, at, id, string(model.StatusAssigned),
	)
	if err != nil {
		return false, fmt.Errorf("claim instance: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) Unclaim(id, userID int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, claimed_by = NULL, claimed_at = NULL, claimed_late = 0, updated_at = ?
		WHERE id = ? AND status = ? AND claimed_by = ?`,
		string(model.StatusAssigned), at, id, string(model.StatusClaimed), userID,
	)
	if err != nil {
		return false, fmt.Errorf("unclaim instance: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) Approve(id, approverID int64, at time.Time, points int) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, approved_by = ?, approved_at = ?, points_awarded = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusApproved), approverID, at, points, at, id, string(model.StatusClaimed),
	)
	if err != nil {
		return false, fmt.Errorf("approve instance: %w", err)
	}
	return oneRow(result)
}

// Reject returns a claimed instance to assigned. Claim fields are cleared
// so another eligible user can claim it; the rejection metadata is kept
// for audit.
func (s *InstanceStore) Reject(id, rejecterID int64, at time.Time, reason string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, claimed_by = NULL, claimed_at = NULL, claimed_late = 0,
			rejected_by = ?, rejected_at = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusAssigned), rejecterID, at, reason, at, id, string(model.StatusClaimed),
	)
	if err != nil {
		return false, fmt.Errorf("reject instance: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) MarkMissed(id int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusMissed), at, id, string(model.StatusAssigned),
	)
	if err != nil {
		return false, fmt.Errorf("mark missed: %w", err)
	}
	return oneRow(result)
}

// CloseClaiming moves a work-together instance to claiming_closed.
// closedBy is nil when the system auto-closed.
func (s *InstanceStore) CloseClaiming(id int64, closedBy *int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, claiming_closed_at = ?, claiming_closed_by = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusClaimingClosed), at, nullInt64(closedBy), at, id, string(model.StatusAssigned),
	)
	if err != nil {
		return false, fmt.Errorf("close claiming: %w", err)
	}
	return oneRow(result)
}

// Settle moves a claiming_closed instance to its terminal aggregate status
// once every claim has been resolved.
func (s *InstanceStore) Settle(id int64, status model.InstanceStatus, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), at, id, string(model.StatusClaimingClosed),
	)
	if err != nil {
		return false, fmt.Errorf("settle instance: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) Reassign(id, newUserID int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET assigned_to = ?, updated_at = ? WHERE id = ? AND status = ?`,
		newUserID, at, id, string(model.StatusAssigned),
	)
	if err != nil {
		return false, fmt.Errorf("reassign instance: %w", err)
	}
	return oneRow(result)
}

// Reset reopens an approved one-off instance. Claim and approval fields
// are cleared; previously posted ledger entries are left alone.
func (s *InstanceStore) Reset(id int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, claimed_by = NULL, claimed_at = NULL, claimed_late = 0,
			approved_by = NULL, approved_at = NULL, points_awarded = NULL,
			rejected_by = NULL, rejected_at = NULL, rejection_reason = '', updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusAssigned), at, id, string(model.StatusApproved),
	)
	if err != nil {
		return false, fmt.Errorf("reset instance: %w", err)
	}
	return oneRow(result)
}

// DeleteSupersedable removes future instances that are still assigned and
// untouched: no claimer and no work-together claims recorded. Used when a
// chore's pattern or assignments change.
func (s *InstanceStore) DeleteSupersedable(choreID int64, after time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM chore_instances
		WHERE chore_id = ? AND status = ? AND claimed_by IS NULL AND due_date > ?
			AND id NOT IN (SELECT instance_id FROM instance_claims)`,
		choreID, string(model.StatusAssigned), after,
	)
	if err != nil {
		return 0, fmt.Errorf("delete supersedable instances: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func oneRow(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// --- Work-together claim methods ---

const claimCols = `id, instance_id, user_id, status, claimed_at, claimed_late, points_awarded,
	approved_by, approved_at, rejected_by, rejected_at, rejection_reason`

func scanClaim(scanner interface{ Scan(...any) error }) (*model.InstanceClaim, error) {
	var c model.InstanceClaim
	var approvedAt, rejectedAt sql.NullTime
	var approvedBy, rejectedBy, pointsAwarded sql.NullInt64

	err := scanner.Scan(
		&c.ID, &c.InstanceID, &c.UserID, &c.Status, &c.ClaimedAt, &c.ClaimedLate,
		&pointsAwarded, &approvedBy, &approvedAt, &rejectedBy, &rejectedAt, &c.RejectionReason,
	)
	if err != nil {
		return nil, err
	}

	if pointsAwarded.Valid {
		v := int(pointsAwarded.Int64)
		c.PointsAwarded = &v
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

// CreateClaim inserts a work-together claim. The UNIQUE(instance_id, user_id)
// constraint makes a duplicate claim surface as a unique violation.
func (s *InstanceStore) CreateClaim(instanceID, userID int64, at time.Time, late bool) (*model.InstanceClaim, error) {
	result, err := s.db.Exec(
		`INSERT INTO instance_claims (instance_id, user_id, status, claimed_at, claimed_late) VALUES (?, ?, ?, ?, ?)`,
		instanceID, userID, string(model.ClaimPending), at, late,
	)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetClaimByID(id)
}

func (s *InstanceStore) GetClaimByID(id int64) (*model.InstanceClaim, error) {
	row := s.db.QueryRow(`SELECT `+claimCols+` FROM instance_claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (s *InstanceStore) ListClaims(instanceID int64) ([]model.InstanceClaim, error) {
	rows, err := s.db.Query(
		`SELECT `+claimCols+` FROM instance_claims WHERE instance_id = ? ORDER BY claimed_at ASC, id ASC`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []model.InstanceClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

func (s *InstanceStore) ApproveClaim(id, approverID int64, at time.Time, points int) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE instance_claims SET status = ?, approved_by = ?, approved_at = ?, points_awarded = ?
		WHERE id = ? AND status = ?`,
		string(model.ClaimApproved), approverID, at, points, id, string(model.ClaimPending),
	)
	if err != nil {
		return false, fmt.Errorf("approve claim: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) RejectClaim(id, rejecterID int64, at time.Time, reason string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE instance_claims SET status = ?, rejected_by = ?, rejected_at = ?, rejection_reason = ?
		WHERE id = ? AND status = ?`,
		string(model.ClaimRejected), rejecterID, at, reason, id, string(model.ClaimPending),
	)
	if err != nil {
		return false, fmt.Errorf("reject claim: %w", err)
	}
	return oneRow(result)
}
