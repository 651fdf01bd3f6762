package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inmapper.dev/authgate/internal/ids"
)

// Decision is the outcome of a permission check.
type Decision struct {
	HasAccess bool   `json:"hasAccess"`
	Reason    string `json:"reason,omitempty"`
}

const (
	reasonUserNotFound = "User not found"
	reasonDeactivated  = "User is deactivated"
	reasonAdminAccess  = "Admin access"
	reasonNoGrant      = "No permission granted"
	reasonExpired      = "Permission expired"
)

// GrantInput is one (resource, canAccess) pair for bulk updates.
type GrantInput struct {
	Resource  string `json:"resource"`
	CanAccess bool   `json:"can_access"`
}

// PermissionService manages per-resource grants for non-admin users.
// Admins bypass per-resource checks entirely.
type PermissionService struct {
	store Store
	now   func() time.Time
}

// PermissionOption configures PermissionService.
type PermissionOption func(*PermissionService)

// WithPermissionClock overrides the time source (useful for tests).
func WithPermissionClock(fn func() time.Time) PermissionOption {
	return func(s *PermissionService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewPermissionService constructs the registry.
func NewPermissionService(store Store, opts ...PermissionOption) *PermissionService {
	s := &PermissionService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant upserts a permission keyed by (userID, resource). A grant always
// re-enables a previously revoked permission and overwrites grantedBy and
// expiresAt.
func (s *PermissionService) Grant(ctx context.Context, userID, resource string, expiresAt *time.Time, grantedBy string) (*Permission, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return nil, fmt.Errorf("%w: resource is required", ErrInvalidInput)
	}
	if _, err := s.store.Users(ctx).Find(ctx, userID); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	perm := &Permission{
		ID:        ids.New(),
		UserID:    userID,
		Resource:  resource,
		CanAccess: true,
		GrantedBy: grantedBy,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Permissions(ctx).Upsert(ctx, perm); err != nil {
		return nil, err
	}
	return s.store.Permissions(ctx).Find(ctx, userID, resource)
}

// Revoke flips canAccess to false on the existing row. Revoke never creates:
// ErrNotFound when no row exists for the pair.
func (s *PermissionService) Revoke(ctx context.Context, userID, resource string) error {
	err := s.store.Permissions(ctx).SetAccess(ctx, userID, resource, false)
	if isNotFound(err) {
		return fmt.Errorf("%w: permission", ErrNotFound)
	}
	return err
}

// Delete hard-deletes the row by id.
func (s *PermissionService) Delete(ctx context.Context, permissionID string) error {
	err := s.store.Permissions(ctx).Delete(ctx, permissionID)
	if isNotFound(err) {
		return fmt.Errorf("%w: permission", ErrNotFound)
	}
	return err
}

// SetBulk applies each (resource, canAccess) pair independently: created with
// the given canAccess when absent, otherwise canAccess and grantedBy are
// overwritten and any stored expiry is left alone. All-or-nothing is not
// guaranteed; pairs applied before a failure stay applied.
func (s *PermissionService) SetBulk(ctx context.Context, userID string, grants []GrantInput, grantedBy string) ([]GrantInput, error) {
	if _, err := s.store.Users(ctx).Find(ctx, userID); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	results := make([]GrantInput, 0, len(grants))
	for _, g := range grants {
		resource := strings.TrimSpace(g.Resource)
		if resource == "" {
			return results, fmt.Errorf("%w: resource is required", ErrInvalidInput)
		}
		perm, err := s.store.Permissions(ctx).UpsertAccess(ctx, userID, resource, g.CanAccess, grantedBy)
		if err != nil {
			return results, err
		}
		results = append(results, GrantInput{Resource: resource, CanAccess: perm.CanAccess})
	}
	return results, nil
}

// Check evaluates access for a user and resource. Each step short-circuits:
// the user must exist and be active, admins pass unconditionally, otherwise a
// row with canAccess=true is required. Expired grants are treated as absent;
// the stored flag is not mutated, expiry is evaluated lazily on each query.
func (s *PermissionService) Check(ctx context.Context, userID, resource string) (Decision, error) {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return Decision{Reason: reasonUserNotFound}, nil
		}
		return Decision{}, err
	}
	if !user.IsActive {
		return Decision{Reason: reasonDeactivated}, nil
	}
	if user.IsAdmin {
		return Decision{HasAccess: true, Reason: reasonAdminAccess}, nil
	}

	perm, err := s.store.Permissions(ctx).Find(ctx, userID, resource)
	if err != nil {
		if isNotFound(err) {
			return Decision{Reason: reasonNoGrant}, nil
		}
		return Decision{}, err
	}
	if !perm.CanAccess {
		return Decision{Reason: reasonNoGrant}, nil
	}
	if perm.ExpiresAt != nil && s.now().After(*perm.ExpiresAt) {
		return Decision{Reason: reasonExpired}, nil
	}
	return Decision{HasAccess: true}, nil
}
