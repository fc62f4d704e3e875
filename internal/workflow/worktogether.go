package workflow

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/metrics"
	"github.com/choretab/choretab/internal/model"
	"github.com/choretab/choretab/internal/store"
)

// claimAward records one claimant's credit for post-commit events.
type claimAward struct {
	userID  int64
	claimID int64
	points  int
}

// claimWorkTogether adds a per-claimant record to a shared work-together
// instance. When every eligible claimant has claimed, claiming closes
// automatically with no closing user recorded. If the chore does not
// require approval, closing also approves every claim and settles the
// instance, credited by the system user.
func (s *Service) claimWorkTogether(inst *model.ChoreInstance, chore *model.Chore, user *model.User) (*model.ChoreInstance, error) {
	if inst.Status != model.StatusAssigned {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}

	ok, err := s.canClaimShared(chore, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %d not eligible for chore %d: %w", user.ID, chore.ID, ErrForbidden)
	}

	today := s.today()
	if err := checkClaimWindow(inst.DueDate, chore, today); err != nil {
		return nil, err
	}
	late := claimedLate(inst.DueDate, today)

	eligible, err := s.eligibleClaimants(chore)
	if err != nil {
		return nil, err
	}
	system, err := s.autoApprover(chore)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var autoClosed bool
	var settled model.InstanceStatus
	var awards []claimAward
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		instances := s.instances.WithTx(tx)

		if _, err := instances.CreateClaim(inst.ID, user.ID, now, late); err != nil {
			if store.IsUniqueViolation(err) {
				return fmt.Errorf("user %d already claimed instance %d: %w", user.ID, inst.ID, ErrConflict)
			}
			return err
		}

		claims, err := instances.ListClaims(inst.ID)
		if err != nil {
			return err
		}
		claimedBy := make(map[int64]struct{}, len(claims))
		for _, c := range claims {
			claimedBy[c.UserID] = struct{}{}
		}

		allClaimed := len(eligible) > 0
		for id := range eligible {
			if _, ok := claimedBy[id]; !ok {
				allClaimed = false
				break
			}
		}
		if allClaimed {
			ok, err := instances.CloseClaiming(inst.ID, nil, now)
			if err != nil {
				return err
			}
			autoClosed = ok
			if autoClosed && system != nil {
				settled, awards, err = s.approvePendingClaims(tx, chore, inst.ID, system.ID, now)
				if err != nil {
					return err
				}
			}
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
	metrics.Transitions.WithLabelValues("claim").Inc()
	events := []event.Event{event.New(event.TypeInstanceClaimed, updated)}
	if autoClosed {
		events = append(events, event.New(event.TypeClaimingClosed, updated))
	}
	events = append(events, awardEvents(updated, settled, awards)...)
	s.emit(events...)
	return updated, nil
}

// CloseClaiming lets a parent close claiming on a work-together instance
// before every eligible claimant has claimed. Closing an instance with no
// claims is not allowed.
func (s *Service) CloseClaiming(instanceID, parentID int64) (*model.ChoreInstance, error) {
	inst, err := s.getInstance(instanceID)
	if err != nil {
		return nil, err
	}
	chore, err := s.getChore(inst.ChoreID)
	if err != nil {
		return nil, err
	}
	if !chore.WorkTogether() {
		return nil, fmt.Errorf("chore %d is not work-together: %w", chore.ID, ErrInvalidTransition)
	}
	if _, err := s.requireApprover(parentID); err != nil {
		return nil, err
	}
	if inst.Status != model.StatusAssigned {
		return nil, fmt.Errorf("instance %d is %s: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}

	claims, err := s.instances.ListClaims(inst.ID)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, fmt.Errorf("instance %d has no claims to close: %w", inst.ID, ErrInvalidTransition)
	}

	system, err := s.autoApprover(chore)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var settled model.InstanceStatus
	var awards []claimAward
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.instances.WithTx(tx).CloseClaiming(inst.ID, &parentID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("instance %d changed: %w", inst.ID, ErrConflict)
		}
		if system != nil {
			settled, awards, err = s.approvePendingClaims(tx, chore, inst.ID, system.ID, now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getInstance(inst.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("close_claiming").Inc()
	events := []event.Event{event.New(event.TypeClaimingClosed, updated)}
	events = append(events, awardEvents(updated, settled, awards)...)
	s.emit(events...)
	return updated, nil
}

// approvePendingClaims approves every pending claim on a just-closed
// work-together instance and settles it, crediting each claimant at
// their own late rate. Runs inside the caller's transaction.
func (s *Service) approvePendingClaims(tx *sql.Tx, chore *model.Chore, instanceID, approverID int64, now time.Time) (model.InstanceStatus, []claimAward, error) {
	instances := s.instances.WithTx(tx)
	claims, err := instances.ListClaims(instanceID)
	if err != nil {
		return "", nil, err
	}

	var awards []claimAward
	for _, c := range claims {
		if c.Status != model.ClaimPending {
			continue
		}
		points := awardPoints(chore, c.ClaimedLate, nil)
		ok, err := instances.ApproveClaim(c.ID, approverID, now, points)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, fmt.Errorf("claim %d changed: %w", c.ID, ErrConflict)
		}
		if _, err := s.ledger.AdjustTx(tx, c.UserID, points,
			fmt.Sprintf("chore approved: %s", chore.Name),
			&approverID, ledger.Refs{InstanceID: &instanceID, ClaimID: &c.ID}, now); err != nil {
			return "", nil, err
		}
		awards = append(awards, claimAward{userID: c.UserID, claimID: c.ID, points: points})
	}

	settled, err := settleIfResolved(instances, instanceID, now)
	if err != nil {
		return "", nil, err
	}
	return settled, awards, nil
}

// awardEvents builds the post-commit events for auto-approved claims.
func awardEvents(inst *model.ChoreInstance, settled model.InstanceStatus, awards []claimAward) []event.Event {
	if len(awards) == 0 {
		return nil
	}
	events := make([]event.Event, 0, len(awards)+1)
	for _, a := range awards {
		events = append(events, event.New(event.TypePointsAwarded, map[string]any{
			"user_id": a.userID, "points": a.points, "instance_id": inst.ID, "claim_id": a.claimID,
		}))
	}
	if settled == model.StatusApproved {
		events = append(events, event.New(event.TypeInstanceApproved, inst))
	}
	return events
}

// ApproveClaim approves one claimant's contribution on a claiming-closed
// instance, crediting them in the same transaction. When it resolves the
// last open claim, the instance settles: approved if at least one claim
// was approved, rejected otherwise.
func (s *Service) ApproveClaim(claimID, approverID int64, override *int) (*model.InstanceClaim, error) {
	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	inst, err := s.getInstance(claim.InstanceID)
	if err != nil {
		return nil, err
	}
	chore, err := s.getChore(inst.ChoreID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireApprover(approverID); err != nil {
		return nil, err
	}
	if inst.Status != model.StatusClaimingClosed {
		return nil, fmt.Errorf("instance %d is %s, claiming must be closed: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}
	if claim.Status != model.ClaimPending {
		return nil, fmt.Errorf("claim %d is %s: %w", claim.ID, claim.Status, ErrInvalidTransition)
	}

	points := awardPoints(chore, claim.ClaimedLate, override)

	now := s.clock.Now().UTC()
	var settled model.InstanceStatus
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		instances := s.instances.WithTx(tx)

		ok, err := instances.ApproveClaim(claim.ID, approverID, now, points)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("claim %d changed: %w", claim.ID, ErrConflict)
		}

		if _, err := s.ledger.AdjustTx(tx, claim.UserID, points,
			fmt.Sprintf("chore approved: %s", chore.Name),
			&approverID, ledger.Refs{InstanceID: &inst.ID, ClaimID: &claim.ID}, now); err != nil {
			return err
		}

		settled, err = settleIfResolved(instances, inst.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getClaim(claim.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("approve_claim").Inc()
	events := []event.Event{
		event.New(event.TypePointsAwarded, map[string]any{
			"user_id": claim.UserID, "points": points, "instance_id": inst.ID, "claim_id": claim.ID,
		}),
	}
	if settled != "" {
		settledInst, err := s.getInstance(inst.ID)
		if err != nil {
			return nil, err
		}
		t := event.TypeInstanceApproved
		if settled == model.StatusRejected {
			t = event.TypeInstanceRejected
		}
		events = append(events, event.New(t, settledInst))
	}
	s.emit(events...)
	return updated, nil
}

// RejectClaim rejects one claimant's contribution. No ledger side
// effects; nothing was credited yet. Settles the instance when it was
// the last open claim.
func (s *Service) RejectClaim(claimID, approverID int64, reason string) (*model.InstanceClaim, error) {
	if reason == "" {
		return nil, fmt.Errorf("rejection reason required: %w", ErrValidation)
	}

	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	inst, err := s.getInstance(claim.InstanceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireApprover(approverID); err != nil {
		return nil, err
	}
	if inst.Status != model.StatusClaimingClosed {
		return nil, fmt.Errorf("instance %d is %s, claiming must be closed: %w", inst.ID, inst.Status, ErrInvalidTransition)
	}
	if claim.Status != model.ClaimPending {
		return nil, fmt.Errorf("claim %d is %s: %w", claim.ID, claim.Status, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	var settled model.InstanceStatus
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		instances := s.instances.WithTx(tx)

		ok, err := instances.RejectClaim(claim.ID, approverID, now, reason)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("claim %d changed: %w", claim.ID, ErrConflict)
		}

		settled, err = settleIfResolved(instances, inst.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getClaim(claim.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("reject_claim").Inc()
	if settled != "" {
		settledInst, err := s.getInstance(inst.ID)
		if err != nil {
			return nil, err
		}
		t := event.TypeInstanceApproved
		if settled == model.StatusRejected {
			t = event.TypeInstanceRejected
		}
		s.emit(event.New(t, settledInst))
	}
	return updated, nil
}

// settleIfResolved moves a claiming-closed instance to its terminal
// status once no claim remains pending: approved when at least one claim
// was approved, rejected when all were rejected. Returns the terminal
// status, or "" when claims are still open.
func settleIfResolved(instances *store.InstanceStore, instanceID int64, now time.Time) (model.InstanceStatus, error) {
	claims, err := instances.ListClaims(instanceID)
	if err != nil {
		return "", err
	}
	anyApproved := false
	for _, c := range claims {
		switch c.Status {
		case model.ClaimPending:
			return "", nil
		case model.ClaimApproved:
			anyApproved = true
		}
	}

	status := model.StatusRejected
	if anyApproved {
		status = model.StatusApproved
	}
	ok, err := instances.Settle(instanceID, status, now)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("instance %d changed during settle: %w", instanceID, ErrConflict)
	}
	return status, nil
}
