package workflow

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/choretab/choretab/internal/model"
	"github.com/choretab/choretab/internal/recurrence"
	"github.com/choretab/choretab/internal/store"
)

// GenerateForChore creates the next due instance for a chore as of the
// given day if one does not already exist. Generation is idempotent:
// running it repeatedly for the same date produces at most one instance
// per due date.
func (s *Service) GenerateForChore(choreID int64, asOf time.Time) (*model.ChoreInstance, error) {
	chore, err := s.getChore(choreID)
	if err != nil {
		return nil, err
	}
	return s.generate(chore, asOf)
}

func (s *Service) generate(chore *model.Chore, asOf time.Time) (*model.ChoreInstance, error) {
	if !chore.IsActive {
		return nil, nil
	}

	pattern, err := recurrence.Parse(chore.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("chore %d recurrence: %w", chore.ID, err)
	}

	dueDate, ok := s.nextDue(chore, pattern, asOf)
	if !ok {
		return nil, nil
	}
	if chore.EndDate != nil && dueDate.After(civil(*chore.EndDate)) {
		return nil, nil
	}

	duePtr := &dueDate

	assignedTo, err := s.singleAssignee(chore)
	if err != nil {
		return nil, err
	}

	// Exists-check and create run in one transaction so concurrent
	// generation passes cannot both materialize the same due date.
	var inst *model.ChoreInstance
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		instances := s.instances.WithTx(tx)
		exists, err := instances.ExistsForDueDate(chore.ID, duePtr)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		inst, err = instances.Create(chore.ID, duePtr, assignedTo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// nextDue picks the candidate due date for a chore as of a given day.
// One-off chores are due on their start date. Recurring chores walk the
// occurrence chain anchored at the chore start date, so a weekly chore
// generated on consecutive days lands on the same occurrence instead of
// drifting a fresh interval forward each day.
func (s *Service) nextDue(chore *model.Chore, pattern recurrence.Pattern, asOf time.Time) (time.Time, bool) {
	if !pattern.Recurring() {
		return civil(chore.StartDate), true
	}
	return recurrence.NextOnOrAfter(pattern, civil(chore.StartDate), civil(asOf))
}

// singleAssignee resolves the pre-assigned user for an individual chore
// with exactly one assignee. Shared chores and multi-assignee individual
// chores start unassigned.
func (s *Service) singleAssignee(chore *model.Chore) (*int64, error) {
	if chore.AssignmentType != model.AssignmentIndividual {
		return nil, nil
	}
	assignees, err := s.chores.ListAssignees(chore.ID)
	if err != nil {
		return nil, err
	}
	if len(assignees) == 1 {
		id := assignees[0]
		return &id, nil
	}
	return nil, nil
}

// GenerateAll runs generation across every active chore, returning the
// number of instances created. Individual chore failures are logged and
// skipped so one bad recurrence rule cannot stall the rest.
func (s *Service) GenerateAll() (int, error) {
	chores, err := s.chores.ListActive()
	if err != nil {
		return 0, fmt.Errorf("list active chores: %w", err)
	}

	asOf := s.today()
	created := 0
	for i := range chores {
		inst, err := s.generate(&chores[i], asOf)
		if err != nil {
			s.logger.Error("generate instance", "chore_id", chores[i].ID, "error", err)
			continue
		}
		if inst != nil {
			created++
		}
	}
	return created, nil
}

// RegenerateForChore discards pending unclaimed future instances of a
// chore and generates fresh ones. Used after a chore's recurrence or
// assignment changes. Claimed and past-due instances are preserved.
func (s *Service) RegenerateForChore(choreID int64) (*model.ChoreInstance, error) {
	chore, err := s.getChore(choreID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		_, err := s.instances.WithTx(tx).DeleteSupersedable(chore.ID, today)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("supersede instances for chore %d: %w", chore.ID, err)
	}
	return s.generate(chore, today)
}
