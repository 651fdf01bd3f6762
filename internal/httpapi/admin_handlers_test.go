package httpapi

import (
	"net/http"
	"net/url"
	"testing"
)

func TestAdminRequiresAdminFlag(t *testing.T) {
	env := newTestAPI(t)
	token := env.signUp(t, "plain@example.com", "Plain User")

	resp := env.api.get("/admin/users", nil, map[string]string{"Authorization": "Bearer " + token})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	env := newTestAPI(t)
	resp := env.api.get("/admin/users", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestAPI(t)
	adminToken := env.signUp(t, "root@inmapper.dev", "Root Admin")
	env.makeAdmin(t, "root@inmapper.dev")
	userToken := env.signUp(t, "worker@example.com", "Worker")
	authz := map[string]string{"Authorization": "Bearer " + adminToken}

	resp := env.api.get("/admin/users", nil, authz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users status: %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	users := listing["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	var workerID string
	for _, raw := range users {
		u := raw.(map[string]any)
		if u["email"] == "worker@example.com" {
			workerID = u["id"].(string)
			if perms, ok := u["permissions"].([]any); !ok || perms == nil {
				t.Fatal("permissions must be an array, not null")
			}
		}
	}
	if workerID == "" {
		t.Fatal("worker not in listing")
	}

	// Deactivate the worker; their session must die with it.
	resp = env.api.do(http.MethodPatch, "/admin/users/"+workerID, map[string]any{
		"is_active": false,
	}, authz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.api.get("/auth/me", nil, map[string]string{"Authorization": "Bearer " + userToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Deactivated accounts cannot request codes.
	resp = env.api.post("/auth/login", map[string]any{"email": "worker@example.com"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for deactivated account, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminPermissionLifecycle(t *testing.T) {
	env := newTestAPI(t)
	adminToken := env.signUp(t, "boss@inmapper.dev", "Boss Admin")
	env.makeAdmin(t, "boss@inmapper.dev")
	env.signUp(t, "analyst@example.com", "Analyst")
	authz := map[string]string{"Authorization": "Bearer " + adminToken}

	resp := env.api.get("/admin/users", nil, authz)
	listing := decode[map[string]any](t, resp)
	var analystID string
	for _, raw := range listing["users"].([]any) {
		u := raw.(map[string]any)
		if u["email"] == "analyst@example.com" {
			analystID = u["id"].(string)
		}
	}
	if analystID == "" {
		t.Fatal("analyst not found")
	}

	// No grant yet: denied.
	resp = env.api.post("/admin/permissions/check", map[string]any{
		"user_id":  analystID,
		"resource": "matomo-analytics",
	}, authz)
	decision := decode[map[string]any](t, resp)
	if decision["hasAccess"] != false {
		t.Fatalf("expected no access: %v", decision)
	}
	if decision["reason"] != "No permission granted" {
		t.Fatalf("unexpected reason: %v", decision["reason"])
	}

	// Grant and re-check.
	resp = env.api.post("/admin/permissions/grant", map[string]any{
		"user_id":  analystID,
		"resource": "matomo-analytics",
	}, authz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("grant status: %d", resp.StatusCode)
	}
	granted := decode[map[string]any](t, resp)
	perm := granted["permission"].(map[string]any)
	if perm["can_access"] != true {
		t.Fatalf("unexpected permission: %v", perm)
	}
	permID := perm["id"].(string)

	resp = env.api.post("/admin/permissions/check", map[string]any{
		"user_id":  analystID,
		"resource": "matomo-analytics",
	}, authz)
	decision = decode[map[string]any](t, resp)
	if decision["hasAccess"] != true {
		t.Fatalf("expected access: %v", decision)
	}
	if reason, ok := decision["reason"]; ok && reason != "" {
		t.Fatalf("plain grant should carry no reason: %v", reason)
	}

	// Same check over GET with query parameters.
	resp = env.api.get("/admin/permissions/check", url.Values{
		"user_id":  {analystID},
		"resource": {"matomo-analytics"},
	}, authz)
	decision = decode[map[string]any](t, resp)
	if decision["hasAccess"] != true {
		t.Fatalf("expected access via GET: %v", decision)
	}

	// Admins bypass per-resource checks.
	var adminID string
	for _, raw := range listing["users"].([]any) {
		u := raw.(map[string]any)
		if u["email"] == "boss@inmapper.dev" {
			adminID = u["id"].(string)
		}
	}
	resp = env.api.post("/admin/permissions/check", map[string]any{
		"user_id":  adminID,
		"resource": "anything-at-all",
	}, authz)
	decision = decode[map[string]any](t, resp)
	if decision["hasAccess"] != true || decision["reason"] != "Admin access" {
		t.Fatalf("expected admin bypass: %v", decision)
	}

	// Revoke flips the flag but keeps the row.
	resp = env.api.post("/admin/permissions/revoke", map[string]any{
		"user_id":  analystID,
		"resource": "matomo-analytics",
	}, authz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.api.post("/admin/permissions/check", map[string]any{
		"user_id":  analystID,
		"resource": "matomo-analytics",
	}, authz)
	decision = decode[map[string]any](t, resp)
	if decision["hasAccess"] != false || decision["reason"] != "No permission granted" {
		t.Fatalf("expected revoked: %v", decision)
	}

	// Delete removes the row entirely.
	resp = env.api.do(http.MethodDelete, "/admin/permissions/"+permID, nil, authz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.api.do(http.MethodDelete, "/admin/permissions/"+permID, nil, authz)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminBulkPermissions(t *testing.T) {
	env := newTestAPI(t)
	adminToken := env.signUp(t, "lead@inmapper.dev", "Lead Admin")
	env.makeAdmin(t, "lead@inmapper.dev")
	env.signUp(t, "crew@example.com", "Crew Member")
	authz := map[string]string{"Authorization": "Bearer " + adminToken}

	resp := env.api.get("/admin/users", nil, authz)
	listing := decode[map[string]any](t, resp)
	var crewID string
	for _, raw := range listing["users"].([]any) {
		u := raw.(map[string]any)
		if u["email"] == "crew@example.com" {
			crewID = u["id"].(string)
		}
	}

	resp = env.api.do(http.MethodPut, "/admin/users/"+crewID+"/permissions", map[string]any{
		"permissions": []map[string]any{
			{"resource": "kiosk-backend", "can_access": true},
			{"resource": "matomo-analytics", "can_access": false},
		},
	}, authz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk set status: %d", resp.StatusCode)
	}
	out := decode[map[string]any](t, resp)
	if applied := out["permissions"].([]any); len(applied) != 2 {
		t.Fatalf("expected 2 applied grants: %v", applied)
	}

	resp = env.api.post("/admin/permissions/check", map[string]any{
		"user_id":  crewID,
		"resource": "kiosk-backend",
	}, authz)
	decision := decode[map[string]any](t, resp)
	if decision["hasAccess"] != true {
		t.Fatalf("expected access to kiosk-backend: %v", decision)
	}

	resp = env.api.post("/admin/permissions/check", map[string]any{
		"user_id":  crewID,
		"resource": "matomo-analytics",
	}, authz)
	decision = decode[map[string]any](t, resp)
	if decision["hasAccess"] != false {
		t.Fatalf("expected no access to matomo-analytics: %v", decision)
	}
}

func TestAdminResources(t *testing.T) {
	env := newTestAPI(t)
	adminToken := env.signUp(t, "ops@inmapper.dev", "Ops Admin")
	env.makeAdmin(t, "ops@inmapper.dev")

	resp := env.api.get("/admin/resources", nil, map[string]string{"Authorization": "Bearer " + adminToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resources status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	resources := body["resources"].([]any)
	if len(resources) != 3 {
		t.Fatalf("expected 3 catalog entries, got %d", len(resources))
	}
}
