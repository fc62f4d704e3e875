package store

import (
	"database/sql"
	"fmt"

	"github.com/choretab/choretab/internal/model"
)

// PointsStore appends and reads the points_history ledger. Rows are never
// updated or deleted.
type PointsStore struct {
	db DBTX
}

func NewPointsStore(db DBTX) *PointsStore {
	return &PointsStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *PointsStore) WithTx(tx *sql.Tx) *PointsStore {
	return &PointsStore{db: tx}
}

const pointsCols = `id, user_id, points_delta, reason, instance_id, claim_id, reward_claim_id, created_by, created_at`

func scanPointsEntry(scanner interface{ Scan(...any) error }) (*model.PointsEntry, error) {
	var e model.PointsEntry
	var instanceID, claimID, rewardClaimID, createdBy sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.UserID, &e.Delta, &e.Reason,
		&instanceID, &claimID, &rewardClaimID, &createdBy, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if instanceID.Valid {
		e.InstanceID = &instanceID.Int64
	}
	if claimID.Valid {
		e.ClaimID = &claimID.Int64
	}
	if rewardClaimID.Valid {
		e.RewardClaimID = &rewardClaimID.Int64
	}
	if createdBy.Valid {
		e.CreatedBy = &createdBy.Int64
	}
	return &e, nil
}

func (s *PointsStore) Append(e model.PointsEntry) (*model.PointsEntry, error) {
	result, err := s.db.Exec(
		`INSERT INTO points_history (user_id, points_delta, reason, instance_id, claim_id, reward_claim_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Delta, e.Reason,
		nullInt64(e.InstanceID), nullInt64(e.ClaimID), nullInt64(e.RewardClaimID),
		nullInt64(e.CreatedBy), e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert points entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+pointsCols+` FROM points_history WHERE id = ?`, id)
	entry, err := scanPointsEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get points entry: %w", err)
	}
	return entry, nil
}

// SumByUser totals the user's deltas independently of the stored balance.
func (s *PointsStore) SumByUser(userID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(points_delta), 0) FROM points_history WHERE user_id = ?`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum points deltas: %w", err)
	}
	return int(sum.Int64), nil
}

func (s *PointsStore) ListByUser(userID int64, limit int) ([]model.PointsEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+pointsCols+` FROM points_history WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list points entries: %w", err)
	}
	defer rows.Close()

	var entries []model.PointsEntry
	for rows.Next() {
		e, err := scanPointsEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan points entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
