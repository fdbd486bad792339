package users

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"showtracker/internal/database"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(database.NewUserRepository(db.Connection()), log)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := setupService(t)

	user, err := svc.Register(t.Context(), "walter", "walter@example.com", "letmecook", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user id to be assigned")
	}
	if user.PreferredName != "walter" {
		t.Fatalf("expected preferred name to default to username, got %q", user.PreferredName)
	}
	if user.PasswordHash == "letmecook" {
		t.Fatal("password stored in plain text")
	}

	got, err := svc.Authenticate(t.Context(), "walter", "letmecook")
	if err != nil {
		t.Fatalf("authenticate by username failed: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, got.ID)
	}

	// Email works as the login too.
	if _, err := svc.Authenticate(t.Context(), "walter@example.com", "letmecook"); err != nil {
		t.Fatalf("authenticate by email failed: %v", err)
	}
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	svc := setupService(t)
	if _, err := svc.Register(t.Context(), "walter", "walter@example.com", "letmecook", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for name, login := range map[string]struct{ user, pass string }{
		"wrong password": {"walter", "wrong-password"},
		"unknown user":   {"gus", "letmecook"},
	} {
		if _, err := svc.Authenticate(t.Context(), login.user, login.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := setupService(t)

	cases := map[string]struct{ username, email, pass string }{
		"blank username": {"  ", "a@example.com", "longenough"},
		"bad email":      {"user", "not-an-email", "longenough"},
		"short password": {"user", "a@example.com", "short"},
	}
	for name, c := range cases {
		if _, err := svc.Register(t.Context(), c.username, c.email, c.pass, ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestRegisterDuplicates(t *testing.T) {
	svc := setupService(t)
	if _, err := svc.Register(t.Context(), "walter", "walter@example.com", "letmecook", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Register(t.Context(), "walter", "other@example.com", "longenough", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := svc.Register(t.Context(), "other", "walter@example.com", "longenough", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := setupService(t)
	user, err := svc.Register(t.Context(), "walter", "walter@example.com", "letmecook", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(t.Context(), "skyler", "skyler@example.com", "longenough", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	updated, err := svc.UpdateProfile(t.Context(), user.ID, "heisenberg@example.com", "Heisenberg")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Email != "heisenberg@example.com" || updated.PreferredName != "Heisenberg" {
		t.Fatalf("profile not updated: %+v", updated)
	}

	// Cannot take another user's email.
	if _, err := svc.UpdateProfile(t.Context(), user.ID, "skyler@example.com", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc := setupService(t)
	user, err := svc.Register(t.Context(), "walter", "walter@example.com", "letmecook", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := svc.ChangePassword(t.Context(), user.ID, "wrong", "newpassword"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := svc.ChangePassword(t.Context(), user.ID, "letmecook", "tiny"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if err := svc.ChangePassword(t.Context(), user.ID, "letmecook", "newpassword"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := svc.Authenticate(t.Context(), "walter", "newpassword"); err != nil {
		t.Fatalf("authenticate with new password failed: %v", err)
	}
	if _, err := svc.Authenticate(t.Context(), "walter", "letmecook"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := setupService(t)
	user, err := svc.Register(t.Context(), "walter", "walter@example.com", "letmecook", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := svc.Delete(t.Context(), user.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(t.Context(), user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(t.Context(), user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestEnsureAdminOnlyOnEmptyTable(t *testing.T) {
	svc := setupService(t)

	if err := svc.EnsureAdmin(t.Context()); err != nil {
		t.Fatalf("ensure admin failed: %v", err)
	}
	admin, err := svc.Authenticate(t.Context(), "admin", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected empty password to be rejected, got %v (user %v)", err, admin)
	}

	got, err := svc.Get(t.Context(), 1)
	if err != nil {
		t.Fatalf("admin lookup failed: %v", err)
	}
	if !got.IsAdmin {
		t.Fatal("bootstrap account is not an admin")
	}
	if bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("")) == nil {
		t.Fatal("bootstrap password is empty")
	}

	// Second run must not create another account.
	if err := svc.EnsureAdmin(t.Context()); err != nil {
		t.Fatalf("second ensure admin failed: %v", err)
	}
	if _, err := svc.Get(t.Context(), 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a single bootstrap account, got %v", err)
	}
}
