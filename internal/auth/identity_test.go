package auth

import (
	"context"
	"errors"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"BEARER   abc  ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil {
		t.Error("empty context should carry no identity")
	}

	id := &Identity{UserID: "usr-1", Role: RoleTenant}
	ctx = WithIdentity(ctx, id)
	if got := IdentityFromContext(ctx); got != id {
		t.Errorf("IdentityFromContext() = %+v, want %+v", got, id)
	}
}

func TestAuthenticator_Authenticate(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	codec := testCodec(t)
	authn := NewAuthenticator(codec, repo)
	ctx := context.Background()

	active := seedTestUser(t, db, "active@example.com", RoleOwner, true)
	inactive := seedTestUser(t, db, "inactive@example.com", RoleTenant, true)
	if err := repo.Deactivate(ctx, inactive.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	activePair, err := codec.IssuePair(active)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	inactiveAccess, err := codec.IssueAccess(inactive.ID, inactive.Role)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	ghostAccess, err := codec.IssueAccess("usr-ghost", RoleAdmin)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	id, err := authn.Authenticate(ctx, "Bearer "+activePair.AccessToken)
	if err != nil || id == nil {
		t.Fatalf("Authenticate(valid access) = (%v, %v), want identity", id, err)
	}
	if id.UserID != active.ID || id.Role != RoleOwner || id.User.Email != "active@example.com" {
		t.Errorf("identity = %+v, want the active owner", id)
	}

	rejected := map[string]string{
		"no header":       "",
		"refresh token":   "Bearer " + activePair.RefreshToken,
		"inactive user":   "Bearer " + inactiveAccess,
		"unknown subject": "Bearer " + ghostAccess,
		"garbage":         "Bearer garbage",
		"wrong scheme":    "Token " + activePair.AccessToken,
	}
	for name, header := range rejected {
		id, err := authn.Authenticate(ctx, header)
		if err != nil {
			t.Errorf("Authenticate(%s) error = %v, want nil", name, err)
		}
		if id != nil {
			t.Errorf("Authenticate(%s) = %+v, want no identity", name, id)
		}
	}
}

func TestAuthenticator_StorageFailure(t *testing.T) {
	db := testDB(t)
	codec := testCodec(t)
	authn := NewAuthenticator(codec, NewUserRepository(db))

	owner := seedTestUser(t, db, "owner@example.com", RoleOwner, true)
	access, err := codec.IssueAccess(owner.ID, owner.Role)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	if _, err := db.Exec("DROP TABLE users"); err != nil {
		t.Fatalf("dropping users table: %v", err)
	}

	id, err := authn.Authenticate(context.Background(), "Bearer "+access)
	if err == nil {
		t.Fatal("Authenticate() should report the failed lookup")
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Errorf("Authenticate() error = %v, must not look like a missing user", err)
	}
	if id != nil {
		t.Errorf("Authenticate() = %+v, want nil identity", id)
	}
}
