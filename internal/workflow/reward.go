package workflow

import (
	"database/sql"
	"fmt"

	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/metrics"
	"github.com/choretab/choretab/internal/model"
	"github.com/choretab/choretab/internal/store"
)

// ClaimReward spends a user's points on a reward. Points are debited
// immediately so the balance reflects the hold while the claim awaits a
// parent's decision. Rejection or expiry refunds the debit.
func (s *Service) ClaimReward(rewardID, userID int64) (*model.RewardClaim, error) {
	reward, err := s.getReward(rewardID)
	if err != nil {
		return nil, err
	}
	user, err := s.getUser(userID)
	if err != nil {
		return nil, err
	}
	if !user.Role.CanClaim() {
		return nil, fmt.Errorf("user %d (%s) cannot claim rewards: %w", user.ID, user.Role, ErrForbidden)
	}
	if !reward.IsActive {
		return nil, fmt.Errorf("reward %d is inactive: %w", reward.ID, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	if reward.CooldownDays != nil {
		last, err := s.rewards.LastLiveClaimAt(reward.ID, user.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			next := civil(*last).AddDate(0, 0, *reward.CooldownDays)
			if s.today().Before(next) {
				return nil, fmt.Errorf("reward %d on cooldown until %s: %w",
					reward.ID, next.Format("2006-01-02"), ErrOutOfWindow)
			}
		}
	}
	if reward.MaxClaims != nil {
		count, err := s.rewards.CountLiveClaims(reward.ID, user.ID)
		if err != nil {
			return nil, err
		}
		if count >= *reward.MaxClaims {
			return nil, fmt.Errorf("reward %d claim limit reached: %w", reward.ID, ErrValidation)
		}
	}
	if user.Points < reward.Cost {
		return nil, fmt.Errorf("user %d has %d points, reward costs %d: %w",
			user.ID, user.Points, reward.Cost, ErrValidation)
	}

	var claim *model.RewardClaim
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		c, err := s.rewards.WithTx(tx).CreateClaim(reward.ID, user.ID, reward.Cost, now)
		if err != nil {
			return err
		}
		if _, err := s.ledger.AdjustTx(tx, user.ID, -reward.Cost,
			fmt.Sprintf("reward claimed: %s", reward.Name),
			&user.ID, ledger.Refs{RewardClaimID: &c.ID}, now); err != nil {
			return err
		}
		claim = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("claim_reward").Inc()
	s.emit(event.New(event.TypeRewardClaimed, claim))
	return claim, nil
}

// ApproveRewardClaim confirms a pending reward claim. The debit already
// happened at claim time, so approval touches no balances.
func (s *Service) ApproveRewardClaim(claimID, approverID int64) (*model.RewardClaim, error) {
	claim, err := s.getRewardClaim(claimID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireApprover(approverID); err != nil {
		return nil, err
	}
	if claim.Status != model.RewardClaimPending {
		return nil, fmt.Errorf("reward claim %d is %s: %w", claim.ID, claim.Status, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	ok, err := s.rewards.ApproveClaim(claim.ID, approverID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("reward claim %d changed: %w", claim.ID, ErrConflict)
	}

	updated, err := s.getRewardClaim(claim.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("approve_reward").Inc()
	s.emit(event.New(event.TypeRewardApproved, updated))
	return updated, nil
}

// RejectRewardClaim declines a pending reward claim and refunds the
// points spent, in one transaction.
func (s *Service) RejectRewardClaim(claimID, approverID int64, reason string) (*model.RewardClaim, error) {
	if reason == "" {
		return nil, fmt.Errorf("rejection reason required: %w", ErrValidation)
	}

	claim, err := s.getRewardClaim(claimID)
	if err != nil {
		return nil, err
	}
	reward, err := s.getReward(claim.RewardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireApprover(approverID); err != nil {
		return nil, err
	}
	if claim.Status != model.RewardClaimPending {
		return nil, fmt.Errorf("reward claim %d is %s: %w", claim.ID, claim.Status, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.rewards.WithTx(tx).RejectClaim(claim.ID, approverID, now, reason)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reward claim %d changed: %w", claim.ID, ErrConflict)
		}
		_, err = s.ledger.AdjustTx(tx, claim.UserID, claim.PointsSpent,
			fmt.Sprintf("reward claim rejected: %s", reward.Name),
			&approverID, ledger.Refs{RewardClaimID: &claim.ID}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getRewardClaim(claim.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("reject_reward").Inc()
	s.emit(event.New(event.TypeRewardRejected, updated))
	return updated, nil
}

// ExpireRewardClaim times out a pending claim and refunds the points.
// Called by the sweep job; the refund entry is attributed to the system
// user.
func (s *Service) ExpireRewardClaim(claimID, systemUserID int64) (*model.RewardClaim, error) {
	claim, err := s.getRewardClaim(claimID)
	if err != nil {
		return nil, err
	}
	reward, err := s.getReward(claim.RewardID)
	if err != nil {
		return nil, err
	}
	if claim.Status != model.RewardClaimPending {
		return nil, fmt.Errorf("reward claim %d is %s: %w", claim.ID, claim.Status, ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	err = store.Transact(s.db, func(tx *sql.Tx) error {
		ok, err := s.rewards.WithTx(tx).ExpireClaim(claim.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reward claim %d changed: %w", claim.ID, ErrConflict)
		}
		_, err = s.ledger.AdjustTx(tx, claim.UserID, claim.PointsSpent,
			fmt.Sprintf("reward claim expired: %s", reward.Name),
			&systemUserID, ledger.Refs{RewardClaimID: &claim.ID}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getRewardClaim(claim.ID)
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues("expire_reward").Inc()
	s.emit(event.New(event.TypeRewardExpired, updated))
	return updated, nil
}

func (s *Service) getReward(id int64) (*model.Reward, error) {
	r, err := s.rewards.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get reward %d: %w", id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("reward %d: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *Service) getRewardClaim(id int64) (*model.RewardClaim, error) {
	c, err := s.rewards.GetClaimByID(id)
	if err != nil {
		return nil, fmt.Errorf("get reward claim %d: %w", id, err)
	}
	if c == nil {
		return nil, fmt.Errorf("reward claim %d: %w", id, ErrNotFound)
	}
	return c, nil
}
