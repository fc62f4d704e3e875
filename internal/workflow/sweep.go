package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/choretab/choretab/internal/model"
)

// SweepMissed marks assigned, dated instances whose grace window has
// passed as missed. Work-together instances with claims on record are
// left for a parent to close. Returns how many instances were marked.
func (s *Service) SweepMissed() (int, error) {
	assigned, err := s.instances.ListByStatus(model.StatusAssigned)
	if err != nil {
		return 0, fmt.Errorf("list assigned instances: %w", err)
	}

	today := s.today()
	missed := 0
	for i := range assigned {
		inst := &assigned[i]
		if inst.DueDate == nil {
			continue
		}
		chore, err := s.getChore(inst.ChoreID)
		if err != nil {
			s.logger.Error("missed sweep: load chore", "instance_id", inst.ID, "error", err)
			continue
		}
		deadline := civil(*inst.DueDate).AddDate(0, 0, chore.GracePeriodDays)
		if !today.After(deadline) {
			continue
		}

		if chore.WorkTogether() {
			claims, err := s.instances.ListClaims(inst.ID)
			if err != nil {
				s.logger.Error("missed sweep: list claims", "instance_id", inst.ID, "error", err)
				continue
			}
			if len(claims) > 0 {
				continue
			}
		}

		if _, err := s.MarkMissed(inst.ID); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			s.logger.Error("missed sweep: mark missed", "instance_id", inst.ID, "error", err)
			continue
		}
		missed++
	}
	return missed, nil
}

// SweepAutoApprove approves claimed instances whose chore opted into
// auto-approval once the configured delay has elapsed. Approvals are
// attributed to the system user.
func (s *Service) SweepAutoApprove() (int, error) {
	system, err := s.users.SystemUser()
	if err != nil {
		return 0, fmt.Errorf("load system user: %w", err)
	}
	if system == nil {
		return 0, errors.New("system user missing")
	}

	claimed, err := s.instances.ListByStatus(model.StatusClaimed)
	if err != nil {
		return 0, fmt.Errorf("list claimed instances: %w", err)
	}

	now := s.clock.Now().UTC()
	approved := 0
	for i := range claimed {
		inst := &claimed[i]
		if inst.ClaimedAt == nil {
			continue
		}
		chore, err := s.getChore(inst.ChoreID)
		if err != nil {
			s.logger.Error("auto-approve sweep: load chore", "instance_id", inst.ID, "error", err)
			continue
		}
		if chore.AutoApproveAfterHours == nil {
			continue
		}
		ready := inst.ClaimedAt.Add(time.Duration(*chore.AutoApproveAfterHours) * time.Hour)
		if now.Before(ready) {
			continue
		}

		if _, err := s.Approve(inst.ID, system.ID, nil); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			s.logger.Error("auto-approve sweep: approve", "instance_id", inst.ID, "error", err)
			continue
		}
		approved++
	}
	return approved, nil
}

// SweepExpiredRewards expires reward claims that have sat pending longer
// than maxPending, refunding the points spent. Attributed to the system
// user.
func (s *Service) SweepExpiredRewards(maxPending time.Duration) (int, error) {
	system, err := s.users.SystemUser()
	if err != nil {
		return 0, fmt.Errorf("load system user: %w", err)
	}
	if system == nil {
		return 0, errors.New("system user missing")
	}

	cutoff := s.clock.Now().UTC().Add(-maxPending)
	stale, err := s.rewards.ListPendingOlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale reward claims: %w", err)
	}

	expired := 0
	for i := range stale {
		if _, err := s.ExpireRewardClaim(stale[i].ID, system.ID); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			s.logger.Error("reward expiry sweep", "reward_claim_id", stale[i].ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}
