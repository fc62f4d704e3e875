package store

import (
	"database/sql"
	"testing"

	"github.com/choretab/choretab/internal/database"
	"github.com/choretab/choretab/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserCreateAndGet(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("Maya", model.RoleKid)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Name != "Maya" || u.Role != model.RoleKid {
		t.Errorf("got %q/%q", u.Name, u.Role)
	}
	if u.Points != 0 {
		t.Errorf("new user points = %d, want 0", u.Points)
	}
	if u.HasPIN {
		t.Error("new user should not have a PIN")
	}

	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("get returned %+v", got)
	}

	missing, err := us.GetByID(9999)
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Errorf("missing user = %+v, want nil", missing)
	}
}

func TestUserCreateRejectsInvalidRole(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	if _, err := us.Create("X", model.Role("wizard")); err == nil {
		t.Error("invalid role should fail")
	}
}

func TestSystemUserSeeded(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	sys, err := us.SystemUser()
	if err != nil {
		t.Fatalf("system user: %v", err)
	}
	if sys == nil {
		t.Fatal("system user should be seeded by migrations")
	}
	if sys.Role != model.RoleSystem {
		t.Errorf("role = %q, want system", sys.Role)
	}
}

func TestListByRole(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	for _, u := range []struct {
		name string
		role model.Role
	}{{"Ada", model.RoleParent}, {"Ben", model.RoleKid}, {"Cal", model.RoleKid}} {
		if _, err := us.Create(u.name, u.role); err != nil {
			t.Fatal(err)
		}
	}

	kids, err := us.ListByRole(model.RoleKid)
	if err != nil {
		t.Fatalf("list kids: %v", err)
	}
	if len(kids) != 2 {
		t.Fatalf("got %d kids, want 2", len(kids))
	}
	if kids[0].Name != "Ben" || kids[1].Name != "Cal" {
		t.Errorf("kids = %q, %q", kids[0].Name, kids[1].Name)
	}
}

func TestAdjustPoints(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("Maya", model.RoleKid)
	if err != nil {
		t.Fatal(err)
	}

	balance, err := us.AdjustPoints(u.ID, 10)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}

	// Balances may go negative.
	balance, err = us.AdjustPoints(u.ID, -25)
	if err != nil {
		t.Fatalf("adjust negative: %v", err)
	}
	if balance != -15 {
		t.Errorf("balance = %d, want -15", balance)
	}

	if _, err := us.AdjustPoints(9999, 5); err != sql.ErrNoRows {
		t.Errorf("missing user adjust err = %v, want sql.ErrNoRows", err)
	}
}

func TestPINSetAndVerify(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("Ada", model.RoleParent)
	if err != nil {
		t.Fatal(err)
	}

	// No PIN set yet.
	ok, err := us.VerifyPIN(u.ID, "1234")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("verify should fail before a PIN is set")
	}

	if err := us.SetPIN(u.ID, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	ok, err = us.VerifyPIN(u.ID, "1234")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("correct PIN should verify")
	}

	ok, err = us.VerifyPIN(u.ID, "0000")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("wrong PIN should not verify")
	}

	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasPIN {
		t.Error("HasPIN should be true after SetPIN")
	}
}
