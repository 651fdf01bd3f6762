package auth

import (
	"context"
	"errors"
	"testing"
)

func newAdminFixture(t *testing.T) (*MemoryStore, *AdminService, *SessionService) {
	t.Helper()
	store := NewMemoryStore()
	signer, err := NewTokenSigner("test-secret")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	sessions := NewSessionService(store, signer)
	perms := NewPermissionService(store)
	return store, NewAdminService(store, perms, sessions, nil), sessions
}

func TestListUsersIncludesPermissions(t *testing.T) {
	ctx := context.Background()
	store, admin, _ := newAdminFixture(t)
	user := seedUser(t, store, "one@example.com")
	seedUser(t, store, "two@example.com")

	if _, err := admin.GrantPermission(ctx, user.ID, "kiosk-backend", nil, "root"); err != nil {
		t.Fatalf("GrantPermission failed: %v", err)
	}

	users, err := admin.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.Permissions == nil {
			t.Fatalf("permissions must never be nil for %s", u.Email)
		}
		if u.Email == "one@example.com" && len(u.Permissions) != 1 {
			t.Fatalf("expected 1 permission for %s, got %d", u.Email, len(u.Permissions))
		}
	}
}

func TestGetUserNotFound(t *testing.T) {
	ctx := context.Background()
	_, admin, _ := newAdminFixture(t)

	if _, err := admin.GetUser(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivationRevokesSessions(t *testing.T) {
	ctx := context.Background()
	store, admin, sessions := newAdminFixture(t)
	user := seedUser(t, store, "leaving@example.com")

	res, err := sessions.Create(ctx, user.ID, "", ClientMeta{})
	if err != nil {
		t.Fatalf("session create: %v", err)
	}

	inactive := false
	if _, err := admin.UpdateUser(ctx, user.ID, UserUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	if _, err := sessions.Validate(ctx, res.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestPromoteKeepsSessions(t *testing.T) {
	ctx := context.Background()
	store, admin, sessions := newAdminFixture(t)
	user := seedUser(t, store, "rising@example.com")

	res, err := sessions.Create(ctx, user.ID, "", ClientMeta{})
	if err != nil {
		t.Fatalf("session create: %v", err)
	}

	isAdmin := true
	updated, err := admin.UpdateUser(ctx, user.ID, UserUpdate{IsAdmin: &isAdmin})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if !updated.IsAdmin {
		t.Fatal("admin flag not set")
	}
	if _, err := sessions.Validate(ctx, res.Token); err != nil {
		t.Fatalf("promotion must not kill sessions: %v", err)
	}
}

func TestDefaultResourceCatalog(t *testing.T) {
	_, admin, _ := newAdminFixture(t)
	resources := admin.Resources()
	if len(resources) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(resources))
	}
	ids := map[string]bool{}
	for _, res := range resources {
		if res.ID == "" || res.Name == "" || res.URL == "" {
			t.Fatalf("incomplete catalog entry: %+v", res)
		}
		ids[res.ID] = true
	}
	for _, want := range []string{"matomo-analytics", "kiosk-backend", "inmapper-tools"} {
		if !ids[want] {
			t.Fatalf("catalog missing %q", want)
		}
	}
}
