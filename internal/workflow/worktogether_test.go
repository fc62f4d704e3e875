package workflow

import (
	"errors"
	"testing"

	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/model"
)

func (f *fixture) workTogetherChore(assignees ...int64) *model.Chore {
	f.t.Helper()
	chore := f.chore(model.Chore{
		Name:              "Rake leaves",
		Points:            6,
		AssignmentType:    model.AssignmentShared,
		AllowWorkTogether: true,
	})
	if len(assignees) > 0 {
		if err := f.chores.SetAssignments(chore.ID, assignees); err != nil {
			f.t.Fatal(err)
		}
	}
	return chore
}

func TestWorkTogetherWithoutReviewSettlesOnClose(t *testing.T) {
	f := setup(t)
	chore := f.selfServeChore(model.Chore{
		Name:              "Rake leaves",
		Points:            6,
		AssignmentType:    model.AssignmentShared,
		AllowWorkTogether: true,
	})
	if err := f.chores.SetAssignments(chore.ID, []int64{f.kid.ID, f.kid2.ID}); err != nil {
		t.Fatal(err)
	}
	inst := f.instance(chore.ID, nil, nil)

	// First claim leaves the instance open and credits nothing yet.
	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	if f.balance(f.kid.ID) != 0 {
		t.Error("no credit before claiming closes")
	}

	// Last claim auto-closes, approves every claim, and settles.
	got, err := f.svc.Claim(inst.ID, f.kid2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if f.balance(f.kid.ID) != 6 || f.balance(f.kid2.ID) != 6 {
		t.Errorf("balances = %d, %d, want 6 each", f.balance(f.kid.ID), f.balance(f.kid2.ID))
	}

	system, err := f.users.SystemUser()
	if err != nil {
		t.Fatal(err)
	}
	claims, err := f.instances.ListClaims(inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range claims {
		if c.Status != model.ClaimApproved {
			t.Errorf("claim %d status = %q, want approved", c.ID, c.Status)
		}
		if c.ApprovedBy == nil || *c.ApprovedBy != system.ID {
			t.Errorf("claim %d approved by = %v, want system user", c.ID, c.ApprovedBy)
		}
	}
	if !f.sink.has(event.TypeInstanceApproved) || !f.sink.has(event.TypePointsAwarded) {
		t.Errorf("events = %v, want approved and points", f.sink.types())
	}
}

func TestWorkTogetherWithoutReviewParentCloseSettles(t *testing.T) {
	f := setup(t)
	chore := f.selfServeChore(model.Chore{
		Name:              "Rake leaves",
		Points:            6,
		AssignmentType:    model.AssignmentShared,
		AllowWorkTogether: true,
	})
	if err := f.chores.SetAssignments(chore.ID, []int64{f.kid.ID, f.kid2.ID}); err != nil {
		t.Fatal(err)
	}
	inst := f.instance(chore.ID, nil, nil)

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}

	// Parent closes early: only the kid who claimed gets credited.
	got, err := f.svc.CloseClaiming(inst.ID, f.parent.ID)
	if err != nil {
		t.Fatalf("close claiming: %v", err)
	}
	if got.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if f.balance(f.kid.ID) != 6 {
		t.Errorf("claimant balance = %d, want 6", f.balance(f.kid.ID))
	}
	if f.balance(f.kid2.ID) != 0 {
		t.Error("non-claimant must not be credited")
	}
}

func TestWorkTogetherClaimKeepsInstanceOpen(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	got, err := f.svc.Claim(inst.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// One of two assignees claimed: instance stays assigned and open.
	if got.Status != model.StatusAssigned {
		t.Errorf("status = %q, want assigned", got.Status)
	}
	if got.ClaimedBy != nil {
		t.Error("work-together claims must not set claimed_by")
	}

	claims, err := f.instances.ListClaims(inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 1 || claims[0].UserID != f.kid.ID {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestWorkTogetherDuplicateClaimConflicts(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Claim(inst.ID, f.kid.ID)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate claim err = %v, want ErrConflict", err)
	}
}

func TestWorkTogetherAutoCloseOnLastClaim(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Claim(inst.ID, f.kid2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusClaimingClosed {
		t.Fatalf("status = %q, want claiming_closed", got.Status)
	}
	if got.ClaimingClosedAt == nil {
		t.Error("close time should be set")
	}
	// System auto-close records no closing user.
	if got.ClaimingClosedBy != nil {
		t.Errorf("auto-close closed_by = %v, want nil", got.ClaimingClosedBy)
	}
	if !f.sink.has(event.TypeClaimingClosed) {
		t.Error("auto-close should emit an event")
	}

	// Closed instances take no more claims.
	third := f.user("Zoe", model.RoleKid)
	if err := f.chores.EnsureAssignment(chore.ID, third.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Claim(inst.ID, third.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("claim after close err = %v, want ErrInvalidTransition", err)
	}
}

func TestCloseClaimingByParent(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	// Zero claims: nothing to close.
	_, err := f.svc.CloseClaiming(inst.ID, f.parent.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("close with no claims err = %v, want ErrInvalidTransition", err)
	}

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}

	// Kids cannot close.
	_, err = f.svc.CloseClaiming(inst.ID, f.kid.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("kid close err = %v, want ErrForbidden", err)
	}

	got, err := f.svc.CloseClaiming(inst.ID, f.parent.ID)
	if err != nil {
		t.Fatalf("close claiming: %v", err)
	}
	if got.Status != model.StatusClaimingClosed {
		t.Errorf("status = %q", got.Status)
	}
	// Parent close records the closer, unlike auto-close.
	if got.ClaimingClosedBy == nil || *got.ClaimingClosedBy != f.parent.ID {
		t.Errorf("closed by = %v, want %d", got.ClaimingClosedBy, f.parent.ID)
	}

	// Closing twice fails.
	_, err = f.svc.CloseClaiming(inst.ID, f.parent.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double close err = %v, want ErrInvalidTransition", err)
	}
}

func TestApproveClaimRequiresClosedInstance(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	claims, err := f.instances.ListClaims(inst.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.ApproveClaim(claims[0].ID, f.parent.ID, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("approve before close err = %v, want ErrInvalidTransition", err)
	}
}

func TestWorkTogetherSettleApproved(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Claim(inst.ID, f.kid2.ID); err != nil {
		t.Fatal(err)
	}

	claims, err := f.instances.ListClaims(inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 2 {
		t.Fatalf("claims = %d", len(claims))
	}

	var kidClaim, kid2Claim model.InstanceClaim
	for _, c := range claims {
		if c.UserID == f.kid.ID {
			kidClaim = c
		} else {
			kid2Claim = c
		}
	}

	// Approve one claim: instance still open for the other decision.
	approved, err := f.svc.ApproveClaim(kidClaim.ID, f.parent.ID, nil)
	if err != nil {
		t.Fatalf("approve claim: %v", err)
	}
	if approved.Status != model.ClaimApproved {
		t.Errorf("claim status = %q", approved.Status)
	}
	if f.balance(f.kid.ID) != 6 {
		t.Errorf("balance = %d, want 6", f.balance(f.kid.ID))
	}
	mid, err := f.instances.GetByID(inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if mid.Status != model.StatusClaimingClosed {
		t.Errorf("instance should stay claiming_closed, got %q", mid.Status)
	}

	// Reject the other: all claims resolved, one approved -> approved.
	if _, err := f.svc.RejectClaim(kid2Claim.ID, f.parent.ID, "did not help"); err != nil {
		t.Fatalf("reject claim: %v", err)
	}
	final, err := f.instances.GetByID(inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != model.StatusApproved {
		t.Errorf("settled status = %q, want approved", final.Status)
	}
	if f.balance(f.kid2.ID) != 0 {
		t.Error("rejected claimant must not be credited")
	}

	// Ledger entry references the individual claim.
	entries := f.entries(f.kid.ID)
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].ClaimID == nil || *entries[0].ClaimID != kidClaim.ID {
		t.Error("ledger entry should reference the claim")
	}
}

func TestWorkTogetherSettleRejected(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Claim(inst.ID, f.kid2.ID); err != nil {
		t.Fatal(err)
	}
	claims, err := f.instances.ListClaims(inst.ID)
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range claims {
		if _, err := f.svc.RejectClaim(c.ID, f.parent.ID, "nobody raked"); err != nil {
			t.Fatalf("reject claim %d: %v", c.ID, err)
		}
	}

	final, err := f.instances.GetByID(inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != model.StatusRejected {
		t.Errorf("settled status = %q, want rejected", final.Status)
	}
	if f.balance(f.kid.ID) != 0 || f.balance(f.kid2.ID) != 0 {
		t.Error("no claimant should be credited")
	}
}

func TestWorkTogetherPerClaimPointsOverride(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID, f.kid2.ID)
	inst := f.instance(chore.ID, nil, nil)

	if _, err := f.svc.Claim(inst.ID, f.kid.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Claim(inst.ID, f.kid2.ID); err != nil {
		t.Fatal(err)
	}
	claims, err := f.instances.ListClaims(inst.ID)
	if err != nil {
		t.Fatal(err)
	}

	override := 2
	for _, c := range claims {
		var o *int
		if c.UserID == f.kid2.ID {
			o = &override
		}
		if _, err := f.svc.ApproveClaim(c.ID, f.parent.ID, o); err != nil {
			t.Fatal(err)
		}
	}

	if f.balance(f.kid.ID) != 6 {
		t.Errorf("kid balance = %d, want chore points 6", f.balance(f.kid.ID))
	}
	if f.balance(f.kid2.ID) != 2 {
		t.Errorf("kid2 balance = %d, want override 2", f.balance(f.kid2.ID))
	}
}

func TestApproveRejectsWorkTogetherInstance(t *testing.T) {
	f := setup(t)
	chore := f.workTogetherChore(f.kid.ID)
	inst := f.instance(chore.ID, nil, nil)

	_, err := f.svc.Approve(inst.ID, f.parent.ID, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("instance-level approve err = %v, want ErrInvalidTransition", err)
	}
}
