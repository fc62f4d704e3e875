package store

import (
	"testing"
	"time"

	"github.com/choretab/choretab/internal/model"
)

func testChore(name string) model.Chore {
	return model.Chore{
		Name:            name,
		Description:     "test chore",
		Points:          5,
		StartDate:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		AssignmentType:  model.AssignmentIndividual,
		GracePeriodDays: 1,
		IsActive:        true,
	}
}

func TestChoreCRUD(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)

	c, err := cs.Create(testChore("Dishes"))
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if c.Name != "Dishes" || c.Points != 5 {
		t.Errorf("got %q/%d", c.Name, c.Points)
	}
	if !c.IsActive {
		t.Error("new chore should be active")
	}

	got, err := cs.GetByID(c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got == nil || got.ID != c.ID {
		t.Fatalf("get returned %+v", got)
	}

	got.Points = 8
	late := 3
	got.LatePoints = &late
	updated, err := cs.Update(*got)
	if err != nil {
		t.Fatalf("update chore: %v", err)
	}
	if updated.Points != 8 {
		t.Errorf("points = %d, want 8", updated.Points)
	}
	if updated.LatePoints == nil || *updated.LatePoints != 3 {
		t.Errorf("late points = %v, want 3", updated.LatePoints)
	}

	if err := cs.Deactivate(c.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := cs.ListActive()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("active chores = %d, want 0", len(active))
	}
	all, err := cs.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("deactivate should soft-delete, got %d chores", len(all))
	}
}

func TestChoreAssignments(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)
	us := NewUserStore(db)

	c, err := cs.Create(testChore("Trash"))
	if err != nil {
		t.Fatal(err)
	}
	a, err := us.Create("Ada", model.RoleKid)
	if err != nil {
		t.Fatal(err)
	}
	b, err := us.Create("Ben", model.RoleKid)
	if err != nil {
		t.Fatal(err)
	}

	if err := cs.SetAssignments(c.ID, []int64{a.ID, b.ID}); err != nil {
		t.Fatalf("set assignments: %v", err)
	}
	ids, err := cs.ListAssignees(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("assignees = %v, want 2", ids)
	}

	// Replaces rather than appends.
	if err := cs.SetAssignments(c.ID, []int64{b.ID}); err != nil {
		t.Fatal(err)
	}
	ids, err = cs.ListAssignees(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != b.ID {
		t.Errorf("assignees = %v, want [%d]", ids, b.ID)
	}

	// EnsureAssignment is idempotent.
	if err := cs.EnsureAssignment(c.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	ids, err = cs.ListAssignees(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("assignees after ensure = %v", ids)
	}
}

func TestChorePurgePreservesHistory(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)
	us := NewUserStore(db)
	is := NewInstanceStore(db)
	ps := NewPointsStore(db)

	c, err := cs.Create(testChore("Dishes"))
	if err != nil {
		t.Fatal(err)
	}
	kid, err := us.Create("Maya", model.RoleKid)
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.EnsureAssignment(c.ID, kid.ID); err != nil {
		t.Fatal(err)
	}

	due := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	inst, err := is.Create(c.ID, &due, &kid.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ps.Append(model.PointsEntry{
		UserID:     kid.ID,
		Delta:      5,
		Reason:     "chore approved: Dishes",
		InstanceID: &inst.ID,
	}); err != nil {
		t.Fatal(err)
	}

	if err := cs.Purge(c.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}

	gone, err := cs.GetByID(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gone != nil {
		t.Error("chore should be gone after purge")
	}
	instGone, err := is.GetByID(inst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if instGone != nil {
		t.Error("instances should be gone after purge")
	}

	// The audit trail outlives the chore.
	sum, err := ps.SumByUser(kid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum != 5 {
		t.Errorf("history sum = %d, want 5", sum)
	}
	entries, err := ps.ListByUser(kid.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].InstanceID == nil || *entries[0].InstanceID != inst.ID {
		t.Error("history entry should keep its soft reference")
	}
}

func TestChoreEndDateRoundTrip(t *testing.T) {
	cs := NewChoreStore(setupTestDB(t))

	c := testChore("Seasonal")
	end := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	c.EndDate = &end

	created, err := cs.Create(c)
	if err != nil {
		t.Fatal(err)
	}
	if created.EndDate == nil || !created.EndDate.Equal(end) {
		t.Errorf("end date = %v, want %v", created.EndDate, end)
	}
}
