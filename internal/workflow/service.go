// Package workflow owns the chore instance lifecycle: claiming, approval,
// rejection, the shared work-together variant, instance generation, and
// reward redemption. Every mutating operation runs as one transaction
// against the store; ledger postings commit or roll back with the state
// change that caused them. Domain events are emitted only after commit.
package workflow

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/choretab/choretab/internal/clock"
	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/metrics"
	"github.com/choretab/choretab/internal/model"
	"github.com/choretab/choretab/internal/store"
)

type Service struct {
	db     *sql.DB
	ledger *ledger.Ledger
	clock  clock.Clock
	sink   event.Sink
	logger *slog.Logger

	users     *store.UserStore
	chores    *store.ChoreStore
	instances *store.InstanceStore
	rewards   *store.RewardStore
}

func New(db *sql.DB, lgr *ledger.Ledger, clk clock.Clock, sink event.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = event.NopSink{}
	}
	return &Service{
		db:        db,
		ledger:    lgr,
		clock:     clk,
		sink:      sink,
		logger:    logger,
		users:     store.NewUserStore(db),
		chores:    store.NewChoreStore(db),
		instances: store.NewInstanceStore(db),
		rewards:   store.NewRewardStore(db),
	}
}

// civil normalizes a timestamp to its calendar date at midnight UTC, so
// dates from different locations compare by day.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) today() time.Time {
	return civil(s.clock.Today())
}

func (s *Service) getUser(id int64) (*model.User, error) {
	u, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *Service) getChore(id int64) (*model.Chore, error) {
	c, err := s.chores.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("chore %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *Service) getInstance(id int64) (*model.ChoreInstance, error) {
	i, err := s.instances.GetByID(id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, fmt.Errorf("instance %d: %w", id, ErrNotFound)
	}
	return i, nil
}

func (s *Service) getClaim(id int64) (*model.InstanceClaim, error) {
	c, err := s.instances.GetClaimByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("claim %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// autoApprover resolves the system user for chores that settle without
// parent review. Returns nil when the chore requires approval.
func (s *Service) autoApprover(chore *model.Chore) (*model.User, error) {
	if chore.RequiresApproval {
		return nil, nil
	}
	system, err := s.users.SystemUser()
	if err != nil {
		return nil, err
	}
	if system == nil {
		return nil, errors.New("system user missing")
	}
	return system, nil
}

// requireApprover loads the actor and checks approval capability.
func (s *Service) requireApprover(id int64) (*model.User, error) {
	u, err := s.getUser(id)
	if err != nil {
		return nil, err
	}
	if !u.Role.CanApprove() {
		return nil, fmt.Errorf("user %d cannot approve: %w", id, ErrForbidden)
	}
	return u, nil
}

// checkClaimWindow enforces the early/grace claim window for dated
// instances. Anytime instances (nil due date) are always claimable.
func checkClaimWindow(due *time.Time, chore *model.Chore, today time.Time) error {
	if due == nil {
		return nil
	}
	d := civil(*due)
	earliest := d.AddDate(0, 0, -chore.EarlyClaimDays)
	latest := d.AddDate(0, 0, chore.GracePeriodDays)
	if today.Before(earliest) || today.After(latest) {
		return fmt.Errorf("today %s not in [%s, %s]: %w",
			today.Format("2006-01-02"), earliest.Format("2006-01-02"), latest.Format("2006-01-02"), ErrOutOfWindow)
	}
	return nil
}

// claimedLate reports whether a claim made today counts as late. A claim
// is late when it lands after the due date; claims past the grace window
// never get this far because the window check rejects them.
func claimedLate(due *time.Time, today time.Time) bool {
	return due != nil && today.After(civil(*due))
}

// awardPoints resolves the points for an approval: explicit override,
// then the chore's late points when the claim was late, then the chore's
// base points.
func awardPoints(chore *model.Chore, late bool, override *int) int {
	if override != nil {
		return *override
	}
	if late && chore.LatePoints != nil {
		return *chore.LatePoints
	}
	return chore.Points
}

// canClaimShared checks shared-chore eligibility: membership in the
// chore's assignment set, or any kid when the chore has no assignments.
func (s *Service) canClaimShared(chore *model.Chore, user *model.User) (bool, error) {
	assignees, err := s.chores.ListAssignees(chore.ID)
	if err != nil {
		return false, err
	}
	if len(assignees) == 0 {
		return user.Role == model.RoleKid, nil
	}
	for _, id := range assignees {
		if id == user.ID {
			return true, nil
		}
	}
	return false, nil
}

// eligibleClaimants is the set of users whose claims close a
// work-together instance: the assignment set, or all kids when empty.
func (s *Service) eligibleClaimants(chore *model.Chore) (map[int64]struct{}, error) {
	assignees, err := s.chores.ListAssignees(chore.ID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(assignees))
	if len(assignees) > 0 {
		for _, id := range assignees {
			set[id] = struct{}{}
		}
		return set, nil
	}

	kids, err := s.users.ListByRole(model.RoleKid)
	if err != nil {
		return nil, err
	}
	for _, k := range kids {
		set[k.ID] = struct{}{}
	}
	return set, nil
}

// emit hands events to the sink after a successful commit and counts them.
func (s *Service) emit(events ...event.Event) {
	for _, e := range events {
		metrics.EventsEmitted.WithLabelValues(string(e.Type)).Inc()
		s.sink.Emit(e)
	}
}
