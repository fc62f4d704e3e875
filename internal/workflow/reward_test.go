package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/model"
)

func (f *fixture) reward(r model.Reward) *model.Reward {
	f.t.Helper()
	if r.Name == "" {
		r.Name = "Movie night"
	}
	if r.Cost == 0 {
		r.Cost = 10
	}
	r.IsActive = true
	created, err := f.rewards.Create(r)
	if err != nil {
		f.t.Fatal(err)
	}
	return created
}

func (f *fixture) givePoints(userID int64, points int) {
	f.t.Helper()
	if _, err := f.ledger.Adjust(userID, points, "starting balance", nil, ledger.Refs{}); err != nil {
		f.t.Fatal(err)
	}
}

func TestClaimRewardDebitsImmediately(t *testing.T) {
	f := setup(t)
	reward := f.reward(model.Reward{Cost: 10})
	f.givePoints(f.kid.ID, 25)

	claim, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("claim reward: %v", err)
	}
	if claim.Status != model.RewardClaimPending {
		t.Errorf("status = %q", claim.Status)
	}
	if claim.PointsSpent != 10 {
		t.Errorf("points spent = %d", claim.PointsSpent)
	}
	if f.balance(f.kid.ID) != 15 {
		t.Errorf("balance = %d, want 15 (debited at claim time)", f.balance(f.kid.ID))
	}

	entries := f.entries(f.kid.ID)
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].RewardClaimID == nil || *entries[0].RewardClaimID != claim.ID {
		t.Error("debit entry should reference the reward claim")
	}
	if !f.sink.has(event.TypeRewardClaimed) {
		t.Error("claim should emit an event")
	}
}

func TestClaimRewardRequirements(t *testing.T) {
	f := setup(t)
	reward := f.reward(model.Reward{Cost: 10})

	// Insufficient points.
	_, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("broke kid claim err = %v, want ErrValidation", err)
	}

	// Parents do not redeem rewards.
	f.givePoints(f.parent.ID, 100)
	_, err = f.svc.ClaimReward(reward.ID, f.parent.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("parent claim err = %v, want ErrForbidden", err)
	}

	// Inactive rewards cannot be claimed.
	if err := f.rewards.Deactivate(reward.ID); err != nil {
		t.Fatal(err)
	}
	f.givePoints(f.kid.ID, 100)
	_, err = f.svc.ClaimReward(reward.ID, f.kid.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("inactive claim err = %v, want ErrInvalidTransition", err)
	}
}

func TestClaimRewardCooldown(t *testing.T) {
	f := setup(t)
	cooldown := 7
	reward := f.reward(model.Reward{Cost: 5, CooldownDays: &cooldown})
	f.givePoints(f.kid.ID, 50)

	if _, err := f.svc.ClaimReward(reward.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if !errors.Is(err, ErrOutOfWindow) {
		t.Errorf("cooldown claim err = %v, want ErrOutOfWindow", err)
	}

	// Another user is unaffected.
	f.givePoints(f.kid2.ID, 50)
	if _, err := f.svc.ClaimReward(reward.ID, f.kid2.ID); err != nil {
		t.Errorf("other user claim: %v", err)
	}
}

func TestClaimRewardMaxClaims(t *testing.T) {
	f := setup(t)
	max := 1
	reward := f.reward(model.Reward{Cost: 5, MaxClaims: &max})
	f.givePoints(f.kid.ID, 50)

	if _, err := f.svc.ClaimReward(reward.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("over-limit claim err = %v, want ErrValidation", err)
	}
}

func TestRejectRewardClaimRefunds(t *testing.T) {
	f := setup(t)
	reward := f.reward(model.Reward{Cost: 10})
	f.givePoints(f.kid.ID, 20)

	claim, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if f.balance(f.kid.ID) != 10 {
		t.Fatalf("balance = %d", f.balance(f.kid.ID))
	}

	_, err = f.svc.RejectRewardClaim(claim.ID, f.parent.ID, "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("empty reason err = %v, want ErrValidation", err)
	}

	got, err := f.svc.RejectRewardClaim(claim.ID, f.parent.ID, "too expensive this week")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != model.RewardClaimRejected {
		t.Errorf("status = %q", got.Status)
	}
	if f.balance(f.kid.ID) != 20 {
		t.Errorf("balance = %d, want refund back to 20", f.balance(f.kid.ID))
	}

	// After rejection the claim no longer blocks max-claims or cooldown.
	cool := 7
	if _, err := f.rewards.Create(model.Reward{Name: "x", Cost: 1, CooldownDays: &cool, IsActive: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ClaimReward(reward.ID, f.kid.ID); err != nil {
		t.Errorf("re-claim after rejection: %v", err)
	}
}

func TestApproveRewardClaimKeepsDebit(t *testing.T) {
	f := setup(t)
	reward := f.reward(model.Reward{Cost: 10})
	f.givePoints(f.kid.ID, 20)

	claim, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.ApproveRewardClaim(claim.ID, f.kid2.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("kid approve err = %v, want ErrForbidden", err)
	}

	got, err := f.svc.ApproveRewardClaim(claim.ID, f.parent.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != model.RewardClaimApproved {
		t.Errorf("status = %q", got.Status)
	}
	// No second ledger movement on approval.
	if f.balance(f.kid.ID) != 10 {
		t.Errorf("balance = %d, want 10", f.balance(f.kid.ID))
	}

	// Terminal claims cannot transition again.
	_, err = f.svc.RejectRewardClaim(claim.ID, f.parent.ID, "too late")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reject approved err = %v, want ErrInvalidTransition", err)
	}
}

func TestExpireRewardClaimRefunds(t *testing.T) {
	f := setup(t)
	reward := f.reward(model.Reward{Cost: 10})
	f.givePoints(f.kid.ID, 20)

	claim, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if err != nil {
		t.Fatal(err)
	}

	system, err := f.users.SystemUser()
	if err != nil || system == nil {
		t.Fatalf("system user: %v %v", system, err)
	}

	got, err := f.svc.ExpireRewardClaim(claim.ID, system.ID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if got.Status != model.RewardClaimExpired {
		t.Errorf("status = %q", got.Status)
	}
	if f.balance(f.kid.ID) != 20 {
		t.Errorf("balance = %d, want refund to 20", f.balance(f.kid.ID))
	}
	if !f.sink.has(event.TypeRewardExpired) {
		t.Error("expiry should emit an event")
	}
}

func TestSweepExpiredRewards(t *testing.T) {
	f := setup(t)
	reward := f.reward(model.Reward{Cost: 5})
	f.givePoints(f.kid.ID, 50)

	// A stale pending claim, created 10 days ago.
	stale, err := f.rewards.CreateClaim(reward.ID, f.kid.ID, 5, testNow.Add(-10*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	// Debit it the way ClaimReward would have.
	if _, err := f.ledger.Adjust(f.kid.ID, -5, "reward claimed", nil, ledger.Refs{RewardClaimID: &stale.ID}); err != nil {
		t.Fatal(err)
	}
	// And a fresh one that must survive.
	fresh, err := f.svc.ClaimReward(reward.ID, f.kid.ID)
	if err != nil {
		t.Fatal(err)
	}

	expired, err := f.svc.SweepExpiredRewards(7 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}

	got, err := f.rewards.GetClaimByID(stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.RewardClaimExpired {
		t.Errorf("stale status = %q", got.Status)
	}
	freshGot, err := f.rewards.GetClaimByID(fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if freshGot.Status != model.RewardClaimPending {
		t.Errorf("fresh status = %q", freshGot.Status)
	}
	// 50 - 5 (stale) - 5 (fresh) + 5 (stale refund) = 45.
	if f.balance(f.kid.ID) != 45 {
		t.Errorf("balance = %d, want 45", f.balance(f.kid.ID))
	}
}
