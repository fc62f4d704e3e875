package workflow

import (
	"database/sql"
	"fmt"

	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/metrics"
	"github.com/choretab/choretab/internal/model"
	"github.com/choretab/choretab/internal/recurrence"
	"github.com/choretab/choretab/internal/store"
)

// Claim records that a user asserts completion of an instance. For
// work-together chores this creates a per-claimant record instead of
// mutating the instance; see claimWorkTogether. Chores that do not
// require approval settle in the same transaction, credited by the
// system user.
func (s *Service) Claim(instanceID, userID int64) (*model.ChoreInstance, error) {
	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	chore, err := s.getChore(inst.ChoreID)
	if err != nil {
		return nil, err
	}
	user, err := s.getUser(userID)
	if err != nil {
		return nil, err
	}
	if !user.Role.CanClaim() {
		return nil, fmt.Errorf("role %q cannot claim: %w", user.Role, ErrForbidden)
	}

	if chore.WorkTogether() {
		return s.claimWorkTogether(inst, chore, user)
	}

	if inst.Status != model.StatusAssigned {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}

	switch chore.AssignmentType {
	case model.AssignmentIndividual:
		if inst.AssignedTo == nil || *inst.AssignedTo != userID {
			return nil, fmt.Errorf("instance %d not assigned to user %d: %w", inst.ID, userID, ErrForbidden)
		}
	case model.AssignmentShared:
		ok, err := s.canClaimShared(chore, user)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("user %d not eligible for chore %d: %w", userID, chore.ID, ErrForbidden)
		}
	}

	today := s.today()
	if err := checkClaimWindow(inst.DueDate, chore, today); err != nil {
		return nil, err
	}
	late := claimedLate(inst.DueDate, today)

	system, err := s.autoApprover(chore)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	points := awardPoints(chore, late, nil)
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		instances := s.instances.WithTx(tx)
		ok, err := instances.Claim(inst.ID, userID, now, late)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d already claimed: %w", inst.ID, ErrConflict)
		}
		if system == nil {
			return nil
		}

		ok, err = instances.Approve(inst.ID, system.ID, now, points)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		_, err = s.ledger.AdjustTx(tx, userID, points,
			fmt.Sprintf("chore approved: %s", chore.Name),
			&system.ID, ledger.Refs{InstanceID: &inst.ID}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getInstance(inst.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("claim").Inc()
	events := []event.Event{event.New(event.TypeInstanceClaimed, updated)}
	if system != nil {
		metrics.Transitions.WithLabelValues("approve").Inc()
		events = append(events,
			event.New(event.TypeInstanceApproved, updated),
			event.New(event.TypePointsAwarded, map[string]any{
				"user_id": userID, "points": points, "instance_id": inst.ID,
			}),
		)
	}
	s.emit(events...)
	return updated, nil
}

// Unclaim reverts the claimer's own claim. No ledger side effects.
func (s *Service) Unclaim(instanceID, userID int64) (*model.ChoreInstance, error) {
	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Status != model.StatusClaimed {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}
	if inst.ClaimedBy == nil || *inst.ClaimedBy != userID {
		return nil, fmt.Errorf("instance %d not claimed by user %d: %w", inst.ID, userID, ErrForbidden)
	}

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.instances.WithTx(tx).Unclaim(inst.ID, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("unclaim").Inc()
	return s.getInstance(inst.ID)
}

// Approve settles a claimed instance, awarding points to the claimer in
// the same transaction. override, when non-nil, wins over the chore's
// late and base point values.
func (s *Service) Approve(instanceID, approverID int64, override *int) (*model.ChoreInstance, error) {
	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	chore, err := s.getChore(inst.ChoreID)
	if err != nil {
		return nil, err
	}
	if chore.WorkTogether() {
		return nil, fmt.Errorf("work-together instance %d settles per claim: %w", inst.ID, ErrInvalidTransition)
	}
	if _, err := s.requireApprover(approverID); err != nil {
		return nil, err
	}
	if inst.Status != model.StatusClaimed || inst.ClaimedBy == nil {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}

	points := awardPoints(chore, inst.ClaimedLate, override)
	claimer := *inst.ClaimedBy

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.instances.WithTx(tx).Approve(inst.ID, approverID, now, points)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		_, err = s.ledger.AdjustTx(tx, claimer, points,
			fmt.Sprintf("chore approved: %s", chore.Name),
			&approverID, ledger.Refs{InstanceID: &inst.ID}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getInstance(inst.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("approve").Inc()
	s.emit(
		event.New(event.TypeInstanceApproved, updated),
		event.New(event.TypePointsAwarded, map[string]any{
			"user_id": claimer, "points": points, "instance_id": inst.ID,
		}),
	)
	return updated, nil
}

// Reject sends a claimed instance back to assigned so another eligible
// user can claim it. Claim fields are cleared; the rejection reason is
// kept for audit. No ledger side effects.
func (s *Service) Reject(instanceID, approverID int64, reason string) (*model.ChoreInstance, error) {
	if reason == "" {
		return nil, fmt.Errorf("rejection reason required: %w", ErrValidation)
	}

	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	chore, err := s.getChore(inst.ChoreID)
	if err != nil {
		return nil, err
	}
	if chore.WorkTogether() {
		return nil, fmt.Errorf("work-together instance %d settles per claim: %w", inst.ID, ErrInvalidTransition)
	}
	if _, err := s.requireApprover(approverID); err != nil {
		return nil, err
	}
	if inst.Status != model.StatusClaimed {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.instances.WithTx(tx).Reject(inst.ID, approverID, now, reason)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getInstance(inst.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("reject").Inc()
	s.emit(event.New(event.TypeInstanceRejected, updated))
	return updated, nil
}

// Reassign moves an individual chore's instance to another kid and makes
// sure the chore's assignment set includes them.
func (s *Service) Reassign(instanceID, newUserID, byParentID int64) (*model.ChoreInstance, error) {
	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	chore, err := s.getChore(inst.ChoreID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireApprover(byParentID); err != nil {
		return nil, err
	}
	if chore.AssignmentType != model.AssignmentIndividual {
		return nil, fmt.Errorf("chore %d is not individual: %w", chore.ID, ErrInvalidTransition)
	}
	if inst.Status != model.StatusAssigned {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}

	newUser, err := s.getUser(newUserID)
	if err != nil {
		return nil, err
	}
	if newUser.Role != model.RoleKid {
		return nil, fmt.Errorf("user %d has role %q, want kid: %w", newUserID, newUser.Role, ErrValidation)
	}

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.instances.WithTx(tx).Reassign(inst.ID, newUserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		return s.chores.WithTx(tx).EnsureAssignment(chore.ID, newUserID)
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("reassign").Inc()
	return s.getInstance(inst.ID)
}

// Reset reopens an approved one-off instance. Points already awarded are
// deliberately not reversed; the history keeps the original credit.
func (s *Service) Reset(instanceID, byParentID int64) (*model.ChoreInstance, error) {
	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	chore, err := s.getChore(inst.ChoreID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireApprover(byParentID); err != nil {
		return nil, err
	}
	pattern, err := recurrence.Parse(chore.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("chore %d recurrence: %w", chore.ID, err)
	}
	if pattern.Recurring() {
		return nil, fmt.Errorf("chore %d recurs, only one-off instances reset: %w", chore.ID, ErrInvalidTransition)
	}
	if inst.Status != model.StatusApproved {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.instances.WithTx(tx).Reset(inst.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("reset").Inc()
	return s.getInstance(inst.ID)
}

// MarkMissed is used by the missed sweep: an assigned, dated instance
// whose grace window has passed becomes terminally missed.
func (s *Service) MarkMissed(instanceID int64) (*model.ChoreInstance, error) {
	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Status != model.StatusAssigned {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}
	if inst.DueDate == nil {
		return nil, fmt.Errorf("anytime instance %d cannot be missed: %w", inst.ID, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.instances.WithTx(tx).MarkMissed(inst.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getInstance(inst.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("miss").Inc()
	s.emit(event.New(event.TypeInstanceMissed, updated))
	return updated, nil
}
