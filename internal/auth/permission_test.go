package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newPermFixture(t *testing.T) (*MemoryStore, *PermissionService) {
	t.Helper()
	store := NewMemoryStore()
	return store, NewPermissionService(store)
}

func TestCheckUnknownUser(t *testing.T) {
	ctx := context.Background()
	_, svc := newPermFixture(t)

	d, err := svc.Check(ctx, "ghost", "kiosk-backend")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if d.HasAccess || d.Reason != "User not found" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestCheckDeactivatedUser(t *testing.T) {
	ctx := context.Background()
	store, svc := newPermFixture(t)
	user := seedUser(t, store, "off@example.com")
	inactive := false
	if _, err := store.Users(ctx).Update(ctx, user.ID, UserUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	d, err := svc.Check(ctx, user.ID, "kiosk-backend")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if d.HasAccess || d.Reason != "User is deactivated" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestCheckAdminBypass(t *testing.T) {
	ctx := context.Background()
	store, svc := newPermFixture(t)
	user := seedUser(t, store, "root@example.com")
	isAdmin := true
	if _, err := store.Users(ctx).Update(ctx, user.ID, UserUpdate{IsAdmin: &isAdmin}); err != nil {
		t.Fatalf("promote: %v", err)
	}

	// Any resource name passes, even one not in the catalog.
	d, err := svc.Check(ctx, user.ID, "completely-unknown-resource")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !d.HasAccess || d.Reason != "Admin access" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestGrantCheckRevoke(t *testing.T) {
	ctx := context.Background()
	store, svc := newPermFixture(t)
	user := seedUser(t, store, "member@example.com")

	d, _ := svc.Check(ctx, user.ID, "kiosk-backend")
	if d.HasAccess || d.Reason != "No permission granted" {
		t.Fatalf("expected no grant: %+v", d)
	}

	perm, err := svc.Grant(ctx, user.ID, "kiosk-backend", nil, "admin-1")
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if !perm.CanAccess || perm.GrantedBy != "admin-1" {
		t.Fatalf("unexpected grant: %+v", perm)
	}

	d, _ = svc.Check(ctx, user.ID, "kiosk-backend")
	if !d.HasAccess {
		t.Fatalf("expected access: %+v", d)
	}
	if d.Reason != "" {
		t.Fatalf("plain grant should carry no reason: %q", d.Reason)
	}

	if err := svc.Revoke(ctx, user.ID, "kiosk-backend"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	d, _ = svc.Check(ctx, user.ID, "kiosk-backend")
	if d.HasAccess || d.Reason != "No permission granted" {
		t.Fatalf("expected revoked: %+v", d)
	}

	// The row survives revocation; only the flag flips.
	row, err := store.Permissions(ctx).Find(ctx, user.ID, "kiosk-backend")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if row.CanAccess {
		t.Fatal("revoke should flip can_access to false")
	}
}

func TestRevokeWithoutGrant(t *testing.T) {
	ctx := context.Background()
	store, svc := newPermFixture(t)
	user := seedUser(t, store, "nobody@example.com")

	if err := svc.Revoke(ctx, user.ID, "kiosk-backend"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGrantUnknownUser(t *testing.T) {
	ctx := context.Background()
	_, svc := newPermFixture(t)

	if _, err := svc.Grant(ctx, "ghost", "kiosk-backend", nil, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiredGrantDeniesLazily(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	current := time.Now()
	svc := NewPermissionService(store,
		WithPermissionClock(func() time.Time { return current }))
	user := seedUser(t, store, "temp@example.com")

	expiry := current.Add(time.Hour)
	if _, err := svc.Grant(ctx, user.ID, "matomo-analytics", &expiry, "admin-1"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	d, _ := svc.Check(ctx, user.ID, "matomo-analytics")
	if !d.HasAccess {
		t.Fatalf("grant should be live before expiry: %+v", d)
	}

	current = current.Add(2 * time.Hour)
	d, _ = svc.Check(ctx, user.ID, "matomo-analytics")
	if d.HasAccess || d.Reason != "Permission expired" {
		t.Fatalf("expected expiry denial: %+v", d)
	}

	// Lazy expiry: the stored flag is untouched.
	row, err := store.Permissions(ctx).Find(ctx, user.ID, "matomo-analytics")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !row.CanAccess {
		t.Fatal("expiry must not mutate the stored grant")
	}
}

func TestGrantOverwritesExpiry(t *testing.T) {
	ctx := context.Background()
	store, svc := newPermFixture(t)
	user := seedUser(t, store, "renew@example.com")

	expiry := time.Now().Add(time.Hour)
	if _, err := svc.Grant(ctx, user.ID, "kiosk-backend", &expiry, "admin-1"); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	// Re-granting without an expiry clears it.
	perm, err := svc.Grant(ctx, user.ID, "kiosk-backend", nil, "admin-2")
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if perm.ExpiresAt != nil {
		t.Fatalf("expected cleared expiry, got %v", perm.ExpiresAt)
	}
	if perm.GrantedBy != "admin-2" {
		t.Fatalf("granted_by not updated: %q", perm.GrantedBy)
	}
}

func TestSetBulkLeavesExpiryUntouched(t *testing.T) {
	ctx := context.Background()
	store, svc := newPermFixture(t)
	user := seedUser(t, store, "bulk@example.com")

	expiry := time.Now().Add(time.Hour)
	if _, err := svc.Grant(ctx, user.ID, "kiosk-backend", &expiry, "admin-1"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	applied, err := svc.SetBulk(ctx, user.ID, []GrantInput{
		{Resource: "kiosk-backend", CanAccess: true},
		{Resource: "matomo-analytics", CanAccess: false},
	}, "admin-2")
	if err != nil {
		t.Fatalf("SetBulk failed: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied, got %d", len(applied))
	}

	row, err := store.Permissions(ctx).Find(ctx, user.ID, "kiosk-backend")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if row.ExpiresAt == nil || !row.ExpiresAt.Equal(expiry) {
		t.Fatalf("bulk set must not touch expiry: %v", row.ExpiresAt)
	}
	if row.GrantedBy != "admin-2" {
		t.Fatalf("granted_by not updated: %q", row.GrantedBy)
	}

	row, err = store.Permissions(ctx).Find(ctx, user.ID, "matomo-analytics")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if row.CanAccess {
		t.Fatal("bulk deny should create a denying row")
	}
}
