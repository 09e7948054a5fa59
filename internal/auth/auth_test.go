package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
	"github.com/matrix-ai/backend/pkg/apperr"
)

const testBcryptCost = 4

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("create sqlite client: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	return NewService(db, "test-secret", time.Hour, testBcryptCost)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Register("alice", "alice@example.com", "secret123", "Alice", "Smith")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Role != models.RoleUser {
		t.Errorf("Role = %q, want %q", user.Role, models.RoleUser)
	}
	if user.PasswordHash == "secret123" {
		t.Error("password stored in plain text")
	}

	token, logged, err := svc.Login("alice", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Error("Login() returned empty token")
	}
	if logged.LastLogin == nil {
		t.Error("LastLogin not stamped on login")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "ab", "a@example.com", "secret123"},
		{"short password", "alice", "a@example.com", "12345"},
		{"missing email", "alice", "", "secret123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(tt.username, tt.email, tt.password, "", "")
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("error = %v, want validation error", err)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Register("alice", "alice@example.com", "secret123", "", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := svc.Register("alice", "other@example.com", "secret123", "", "")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("duplicate register error = %v, want validation error", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Register("alice", "alice@example.com", "secret123", "", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, _, err := svc.Login("alice", "wrong-password")
	if !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("error = %v, want unauthenticated", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Login("nobody", "whatever")
	if !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("error = %v, want unauthenticated", err)
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	svc := newTestService(t)

	registered, err := svc.Register("alice", "alice@example.com", "secret123", "", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	token, _, err := svc.Login("alice", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("Authenticate() user = %s, want %s", user.ID, registered.ID)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc := newTestService(t)

	for _, token := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := svc.Authenticate(token); !apperr.Is(err, apperr.KindUnauthenticated) {
			t.Errorf("Authenticate(%q) error = %v, want unauthenticated", token, err)
		}
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("create sqlite client: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	svc := NewService(db, "test-secret", -time.Minute, testBcryptCost)

	if _, err := svc.Register("alice", "alice@example.com", "secret123", "", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	token, _, err := svc.Login("alice", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, err := svc.Authenticate(token); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("error = %v, want unauthenticated for expired token", err)
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	admin := &models.User{Role: models.RoleAdmin}
	analyst := &models.User{Role: models.RoleAnalyst}
	user := &models.User{Role: models.RoleUser}

	tests := []struct {
		name  string
		user  *models.User
		roles []string
		want  bool
	}{
		{"admin matches admin", admin, []string{models.RoleAdmin}, true},
		{"analyst matches admin or analyst", analyst, []string{models.RoleAdmin, models.RoleAnalyst}, true},
		{"user misses admin or analyst", user, []string{models.RoleAdmin, models.RoleAnalyst}, false},
		{"nil user never authorized", nil, []string{models.RoleUser}, false},
		{"empty role list never authorized", admin, nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Authorize(tt.user, tt.roles...); got != tt.want {
				t.Errorf("Authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorizeOwnerOrAdmin(t *testing.T) {
	t.Parallel()

	owner := &models.User{ID: "u1", Role: models.RoleUser}
	admin := &models.User{ID: "u2", Role: models.RoleAdmin}
	other := &models.User{ID: "u3", Role: models.RoleAnalyst}

	if !AuthorizeOwnerOrAdmin(owner, "u1") {
		t.Error("owner denied access to own resource")
	}
	if !AuthorizeOwnerOrAdmin(admin, "u1") {
		t.Error("admin denied access")
	}
	if AuthorizeOwnerOrAdmin(other, "u1") {
		t.Error("non-owner analyst granted access")
	}
	if AuthorizeOwnerOrAdmin(other, "") {
		t.Error("empty owner id granted access")
	}
}
