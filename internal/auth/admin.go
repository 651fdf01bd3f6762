package auth

import (
	"context"
	"fmt"
	"time"
)

// Resource is one entry of the protected-tool catalog.
type Resource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// DefaultResources is the built-in catalog of gated internal tools.
var DefaultResources = []Resource{
	{ID: "matomo-analytics", Name: "Analytics Dashboard", URL: "https://analytics.inmapper.dev", Description: "Usage and routing statistics"},
	{ID: "kiosk-backend", Name: "Kiosk Manager", URL: "https://kiosk.inmapper.dev", Description: "Kiosk device management"},
	{ID: "inmapper-tools", Name: "inMapper Tools", URL: "https://tools.inmapper.dev", Description: "Map and QR utilities"},
}

// AdminUser is a user as presented on the admin surface, permissions
// attached.
type AdminUser struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	Name        string        `json:"name"`
	IsActive    bool          `json:"is_active"`
	IsVerified  bool          `json:"is_verified"`
	IsAdmin     bool          `json:"is_admin"`
	LastLoginAt *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Permissions []*Permission `json:"permissions"`
}

// AdminService is the user- and permission-management surface. Callers must
// have already resolved an admin actor; the capability check itself lives in
// the HTTP layer.
type AdminService struct {
	store     Store
	perms     *PermissionService
	sessions  *SessionService
	resources []Resource
}

// NewAdminService constructs the admin surface. A nil resources slice falls
// back to DefaultResources.
func NewAdminService(store Store, perms *PermissionService, sessions *SessionService, resources []Resource) *AdminService {
	if resources == nil {
		resources = DefaultResources
	}
	return &AdminService{store: store, perms: perms, sessions: sessions, resources: resources}
}

// ListUsers returns every account with its permissions, newest first.
func (a *AdminService) ListUsers(ctx context.Context) ([]*AdminUser, error) {
	users, err := a.store.Users(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*AdminUser, 0, len(users))
	for _, u := range users {
		au, err := a.withPermissions(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, au)
	}
	return out, nil
}

// GetUser returns one account with its permissions.
func (a *AdminService) GetUser(ctx context.Context, userID string) (*AdminUser, error) {
	user, err := a.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	return a.withPermissions(ctx, user)
}

// UpdateUser toggles the admin and active flags. Deactivating an account
// also revokes all of its sessions so existing tokens stop working at once.
func (a *AdminService) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	user, err := a.store.Users(ctx).Update(ctx, userID, upd)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	if upd.IsActive != nil && !*upd.IsActive {
		if _, err := a.sessions.RevokeAllForUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
	}
	return user, nil
}

// Resources returns the protected-tool catalog.
func (a *AdminService) Resources() []Resource { return a.resources }

// GrantPermission delegates to the registry.
func (a *AdminService) GrantPermission(ctx context.Context, userID, resource string, expiresAt *time.Time, grantedBy string) (*Permission, error) {
	return a.perms.Grant(ctx, userID, resource, expiresAt, grantedBy)
}

// RevokePermission delegates to the registry.
func (a *AdminService) RevokePermission(ctx context.Context, userID, resource string) error {
	return a.perms.Revoke(ctx, userID, resource)
}

// DeletePermission delegates to the registry.
func (a *AdminService) DeletePermission(ctx context.Context, permissionID string) error {
	return a.perms.Delete(ctx, permissionID)
}

// SetUserPermissions delegates to the registry's bulk upsert.
func (a *AdminService) SetUserPermissions(ctx context.Context, userID string, grants []GrantInput, grantedBy string) ([]GrantInput, error) {
	return a.perms.SetBulk(ctx, userID, grants, grantedBy)
}

// CheckPermission delegates to the registry.
func (a *AdminService) CheckPermission(ctx context.Context, userID, resource string) (Decision, error) {
	return a.perms.Check(ctx, userID, resource)
}

func (a *AdminService) withPermissions(ctx context.Context, u *User) (*AdminUser, error) {
	perms, err := a.store.Permissions(ctx).ListForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []*Permission{}
	}
	return &AdminUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		IsAdmin:     u.IsAdmin,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		Permissions: perms,
	}, nil
}
