package workflow

import (
	"fmt"

	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/metrics"
)

// AdjustPoints is a manual balance correction by a parent, outside the
// chore and reward flows. A reason is required so the history row stays
// meaningful.
func (s *Service) AdjustPoints(userID, byParentID int64, delta int, reason string) (int, error) {
	if delta == 0 {
		return 0, fmt.Errorf("zero delta: %w", ErrValidation)
	}
	if reason == "" {
		return 0, fmt.Errorf("adjustment reason required: %w", ErrValidation)
	}
	if _, err := s.requireApprover(byParentID); err != nil {
		return 0, err
	}
	if _, err := s.getUser(userID); err != nil {
		return 0, err
	}

	balance, err := s.ledger.Adjust(userID, delta, reason, &byParentID, ledger.Refs{})
	if err != nil {
		return 0, err
	}

	metrics.Transitions.WithLabelValues("adjust_points").Inc()
	s.emit(event.New(event.TypePointsAdjusted, map[string]any{
		"user_id": userID, "delta": delta, "balance": balance, "reason": reason,
	}))
	return balance, nil
}
