package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryUsersUniqueEmail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedUser(t, store, "same@example.com")

	err := store.Users(ctx).Create(ctx, &User{ID: "other", Email: "same@example.com", Name: "Other"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryCodesLatestUnusedOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	codes := store.Codes(ctx)

	now := time.Now()
	for i, id := range []string{"c1", "c2", "c3"} {
		err := codes.Create(ctx, &OneTimeCode{
			ID:        id,
			UserID:    "u1",
			Kind:      KindLogin,
			ExpiresAt: now.Add(5 * time.Minute),
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	latest, err := codes.LatestUnused(ctx, "u1", KindLogin)
	if err != nil {
		t.Fatalf("LatestUnused failed: %v", err)
	}
	if latest.ID != "c3" {
		t.Fatalf("expected newest code, got %s", latest.ID)
	}

	if err := codes.MarkUsed(ctx, "c3"); err != nil {
		t.Fatalf("MarkUsed failed: %v", err)
	}
	latest, err = codes.LatestUnused(ctx, "u1", KindLogin)
	if err != nil {
		t.Fatalf("LatestUnused after consume failed: %v", err)
	}
	if latest.ID != "c2" {
		t.Fatalf("expected c2, got %s", latest.ID)
	}

	// Kind filter.
	if _, err := codes.LatestUnused(ctx, "u1", KindVerify); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other kind, got %v", err)
	}
}

func TestMemoryDeleteStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	codes := store.Codes(ctx)
	now := time.Now()

	// expired
	_ = codes.Create(ctx, &OneTimeCode{ID: "old", UserID: "u1", Kind: KindLogin,
		ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)})
	// used long ago
	_ = codes.Create(ctx, &OneTimeCode{ID: "spent", UserID: "u1", Kind: KindLogin, IsUsed: true,
		ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-48 * time.Hour)})
	// live
	_ = codes.Create(ctx, &OneTimeCode{ID: "live", UserID: "u1", Kind: KindLogin,
		ExpiresAt: now.Add(time.Hour), CreatedAt: now})

	n, err := codes.DeleteStale(ctx, now, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteStale failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, err := codes.LatestUnused(ctx, "u1", KindLogin); err != nil {
		t.Fatalf("live code should remain: %v", err)
	}
}

func TestMemoryPermissionsUpsertKeyedByPair(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	perms := store.Permissions(ctx)

	p1, err := perms.UpsertAccess(ctx, "u1", "kiosk-backend", true, "a1")
	if err != nil {
		t.Fatalf("UpsertAccess failed: %v", err)
	}
	p2, err := perms.UpsertAccess(ctx, "u1", "kiosk-backend", false, "a2")
	if err != nil {
		t.Fatalf("second UpsertAccess failed: %v", err)
	}
	if p1.ID != p2.ID {
		t.Fatalf("upsert created a second row: %s vs %s", p1.ID, p2.ID)
	}
	if p2.CanAccess {
		t.Fatal("flag not updated")
	}

	list, err := perms.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 row, got %d", len(list))
	}
}
