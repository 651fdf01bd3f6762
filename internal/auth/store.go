package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Codes(ctx context.Context) CodeStore
	Sessions(ctx context.Context) SessionStore
	Permissions(ctx context.Context) PermissionStore
}

// UserUpdate mutates only the fields whose pointers are non-nil.
type UserUpdate struct {
	IsAdmin  *bool
	IsActive *bool
}

// UserStore manages accounts. Email uniqueness is enforced at creation:
// Create returns ErrConflict for a duplicate address.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*User, error)
	SetVerified(ctx context.Context, id string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

// CodeStore manages one-time codes.
type CodeStore interface {
	Create(ctx context.Context, c *OneTimeCode) error
	// LatestUnused returns the newest unused code of the given kind, or
	// ErrNotFound.
	LatestUnused(ctx context.Context, userID string, kind CodeKind) (*OneTimeCode, error)
	MarkUsed(ctx context.Context, id string) error
	// MarkAllUsed flags every unused code of the given kind for the user.
	MarkAllUsed(ctx context.Context, userID string, kind CodeKind) error
	IncrementAttempts(ctx context.Context, id string) error
	// DeleteStale removes codes expired before now or used and created
	// before usedBefore. Returns the number of rows removed.
	DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error)
}

// SessionStore manages session records.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	FindByToken(ctx context.Context, token string) (*Session, error)
	Revoke(ctx context.Context, id string) error
	// RevokeAllForUser flags every non-revoked session and returns the
	// count affected.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// PermissionStore manages resource grants keyed by (userID, resource).
type PermissionStore interface {
	// Upsert creates or fully overwrites the grant fields
	// (CanAccess, GrantedBy, ExpiresAt) for the pair.
	Upsert(ctx context.Context, p *Permission) error
	// UpsertAccess creates or overwrites only CanAccess and GrantedBy,
	// leaving any stored expiry untouched on update.
	UpsertAccess(ctx context.Context, userID, resource string, canAccess bool, grantedBy string) (*Permission, error)
	Find(ctx context.Context, userID, resource string) (*Permission, error)
	ListForUser(ctx context.Context, userID string) ([]*Permission, error)
	// SetAccess flips CanAccess on an existing row; ErrNotFound if none.
	SetAccess(ctx context.Context, userID, resource string, canAccess bool) error
	Delete(ctx context.Context, id string) error
}
