package httpapi

import (
	"net/http"
	"strings"
	"time"

	"inmapper.dev/authgate/internal/audit"
	"inmapper.dev/authgate/internal/auth"
)

type updateUserRequest struct {
	IsAdmin  *bool `json:"is_admin"`
	IsActive *bool `json:"is_active"`
}

type grantPermissionRequest struct {
	UserID    string     `json:"user_id"`
	Resource  string     `json:"resource"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type revokePermissionRequest struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource"`
}

type checkPermissionRequest struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource"`
}

type setPermissionsRequest struct {
	Permissions []auth.GrantInput `json:"permissions"`
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	users, err := a.admin.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (a *API) handleAdminUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleAdminUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleAdminUserPermissions(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleAdminUser(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		user, err := a.admin.GetUser(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.IsAdmin == nil && req.IsActive == nil {
			writeError(w, r, http.StatusBadRequest, "nothing to update")
			return
		}
		user, err := a.admin.UpdateUser(r.Context(), userID, auth.UserUpdate{
			IsAdmin:  req.IsAdmin,
			IsActive: req.IsActive,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.user.update", map[string]any{
			"user_id": userID,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "User updated",
			"user": map[string]any{
				"id":          user.ID,
				"email":       user.Email,
				"name":        user.Name,
				"is_active":   user.IsActive,
				"is_verified": user.IsVerified,
				"is_admin":    user.IsAdmin,
			},
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

// handleAdminUserPermissions replaces the user's grants for the listed
// resources in one call. Resources not listed keep their current state.
func (a *API) handleAdminUserPermissions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req setPermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	applied, err := a.admin.SetUserPermissions(r.Context(), userID, req.Permissions, actorID(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permissions.set", map[string]any{
		"user_id": userID,
		"count":   len(applied),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Permissions updated",
		"permissions": applied,
	})
}

func (a *API) handleAdminResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resources": a.admin.Resources(),
	})
}

func (a *API) handleAdminPermissions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/permissions/")
	path = strings.Trim(path, "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch path {
	case "grant":
		a.handleGrantPermission(w, r)
	case "revoke":
		a.handleRevokePermission(w, r)
	case "check":
		a.handleCheckPermission(w, r)
	default:
		a.handleDeletePermission(w, r, path)
	}
}

func (a *API) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req grantPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.admin.GrantPermission(r.Context(), req.UserID, req.Resource, req.ExpiresAt, actorID(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permission.grant", map[string]any{
		"user_id":  req.UserID,
		"resource": req.Resource,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Permission granted",
		"permission": perm,
	})
}

func (a *API) handleRevokePermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req revokePermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.admin.RevokePermission(r.Context(), req.UserID, req.Resource); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permission.revoke", map[string]any{
		"user_id":  req.UserID,
		"resource": req.Resource,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Permission revoked",
	})
}

func (a *API) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	var req checkPermissionRequest
	switch r.Method {
	case http.MethodGet:
		req.UserID = r.URL.Query().Get("user_id")
		req.Resource = r.URL.Query().Get("resource")
	case http.MethodPost:
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Resource) == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and resource are required")
		return
	}
	decision, err := a.admin.CheckPermission(r.Context(), req.UserID, req.Resource)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (a *API) handleDeletePermission(w http.ResponseWriter, r *http.Request, permissionID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if err := a.admin.DeletePermission(r.Context(), permissionID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permission.delete", map[string]any{
		"permission_id": permissionID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Permission deleted",
	})
}

func actorID(r *http.Request) string {
	if actor, ok := auth.UserFromContext(r.Context()); ok {
		return actor.ID
	}
	return ""
}
