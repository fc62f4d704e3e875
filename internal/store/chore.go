package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/choretab/choretab/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *ChoreStore) WithTx(tx *sql.Tx) *ChoreStore {
	return &ChoreStore{db: tx}
}

const choreCols = `id, name, description, points, late_points, recurrence, start_date, end_date,
	assignment_type, allow_work_together, requires_approval, auto_approve_after_hours,
	early_claim_days, grace_period_days, is_active, created_by, created_at, updated_at`

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var latePoints, autoApprove, createdBy sql.NullInt64
	var endDate sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.Name, &c.Description, &c.Points, &latePoints, &c.Recurrence,
		&c.StartDate, &endDate, &c.AssignmentType, &c.AllowWorkTogether,
		&c.RequiresApproval, &autoApprove, &c.EarlyClaimDays, &c.GracePeriodDays,
		&c.IsActive, &createdBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if latePoints.Valid {
		v := int(latePoints.Int64)
		c.LatePoints = &v
	}
	if autoApprove.Valid {
		v := int(autoApprove.Int64)
		c.AutoApproveAfterHours = &v
	}
	if createdBy.Valid {
		c.CreatedBy = &createdBy.Int64
	}
	if endDate.Valid {
		c.EndDate = &endDate.Time
	}
	return &c, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func (s *ChoreStore) Create(c model.Chore) (*model.Chore, error) {
	result, err := s.db.Exec(
		`INSERT INTO chores (name, description, points, late_points, recurrence, start_date, end_date,
			assignment_type, allow_work_together, requires_approval, auto_approve_after_hours,
			early_claim_days, grace_period_days, is_active, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.Points, nullInt(c.LatePoints), c.Recurrence,
		c.StartDate, nullTime(c.EndDate), string(c.AssignmentType), c.AllowWorkTogether,
		c.RequiresApproval, nullInt(c.AutoApproveAfterHours),
		c.EarlyClaimDays, c.GracePeriodDays, true, nullInt64(c.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) List() ([]model.Chore, error) {
	return s.list(`SELECT ` + choreCols + ` FROM chores ORDER BY name ASC`)
}

func (s *ChoreStore) ListActive() ([]model.Chore, error) {
	return s.list(`SELECT ` + choreCols + ` FROM chores WHERE is_active = 1 ORDER BY name ASC`)
}

func (s *ChoreStore) list(query string, args ...any) ([]model.Chore, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) Update(c model.Chore) (*model.Chore, error) {
	_, err := s.db.Exec(
		`UPDATE chores SET name = ?, description = ?, points = ?, late_points = ?, recurrence = ?,
			start_date = ?, end_date = ?, assignment_type = ?, allow_work_together = ?,
			requires_approval = ?, auto_approve_after_hours = ?, early_claim_days = ?,
			grace_period_days = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Description, c.Points, nullInt(c.LatePoints), c.Recurrence,
		c.StartDate, nullTime(c.EndDate), string(c.AssignmentType), c.AllowWorkTogether,
		c.RequiresApproval, nullInt(c.AutoApproveAfterHours), c.EarlyClaimDays,
		c.GracePeriodDays, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(c.ID)
}

// Deactivate soft-deletes a chore. Existing instances keep referencing it.
func (s *ChoreStore) Deactivate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE chores SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate chore: %w", err)
	}
	return nil
}

// Purge hard-deletes a chore and everything that references it: claims,
// instances, assignments, then the chore row. Points history survives; its
// links are soft references. Must run inside a transaction.
func (s *ChoreStore) Purge(id int64) error {
	steps := []struct {
		verb  string
		query string
	}{
		{"purge claims", `DELETE FROM instance_claims WHERE instance_id IN (SELECT id FROM chore_instances WHERE chore_id = ?)`},
		{"purge instances", `DELETE FROM chore_instances WHERE chore_id = ?`},
		{"purge assignments", `DELETE FROM chore_assignments WHERE chore_id = ?`},
		{"purge chore", `DELETE FROM chores WHERE id = ?`},
	}
	for _, step := range steps {
		if _, err := s.db.Exec(step.query, id); err != nil {
			return fmt.Errorf("%s: %w", step.verb, err)
		}
	}
	return nil
}

// --- Assignment methods ---

// SetAssignments replaces the chore's assignment set.
func (s *ChoreStore) SetAssignments(choreID int64, userIDs []int64) error {
	if _, err := s.db.Exec(`DELETE FROM chore_assignments WHERE chore_id = ?`, choreID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, uid := range userIDs {
		if _, err := s.db.Exec(
			`INSERT INTO chore_assignments (chore_id, user_id) VALUES (?, ?)`,
			choreID, uid,
		); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	return nil
}

// EnsureAssignment adds a user to the chore's assignment set if missing.
func (s *ChoreStore) EnsureAssignment(choreID, userID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO chore_assignments (chore_id, user_id) VALUES (?, ?)`,
		choreID, userID,
	)
	if err != nil {
		return fmt.Errorf("ensure assignment: %w", err)
	}
	return nil
}

// ListAssignees returns the IDs of users assigned to the chore.
func (s *ChoreStore) ListAssignees(choreID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM chore_assignments WHERE chore_id = ? ORDER BY user_id ASC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
