package httpapi

import (
	"net/http"
	"strings"
	"testing"
)

func TestRoleCRUD(t *testing.T) {
	c := newTestAPI(t)
	admin := c.registerAdmin("root@x.com", "Passw0rd!")
	token := admin.Tokens.AccessToken

	resp := c.post("/v1/roles", map[string]any{
		"name":        "Operator",
		"description": "ops crew",
		"permissions": []string{"read:audit"},
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	created := decodeMap(t, resp)
	location := resp.Header.Get("Location")
	resp.Body.Close()
	id, _ := created["id"].(string)
	if id == "" || created["name"] != "operator" {
		t.Fatalf("unexpected role: %v", created)
	}
	if !strings.HasSuffix(location, "/v1/roles/"+id) {
		t.Fatalf("Location = %q", location)
	}

	// Duplicate name conflicts.
	resp = c.post("/v1/roles", map[string]any{"name": "operator"}, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status %d, want 409", resp.StatusCode)
	}

	// List includes the built-ins plus the new role.
	resp = c.get("/v1/roles", token)
	roles := decode[[]map[string]any](t, resp)
	resp.Body.Close()
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(roles))
	}

	// Update.
	resp = c.do(http.MethodPut, "/v1/roles/"+id, map[string]any{
		"permissions": []string{"read:audit", "write:audit"},
	}, token)
	updated := decodeMap(t, resp)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status %d", resp.StatusCode)
	}
	if perms, ok := updated["permissions"].([]any); !ok || len(perms) != 2 {
		t.Fatalf("unexpected permissions: %v", updated["permissions"])
	}

	// Delete.
	resp = c.do(http.MethodDelete, "/v1/roles/"+id, nil, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	resp = c.get("/v1/roles/"+id, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted role status %d, want 404", resp.StatusCode)
	}
}

func TestBuiltinRoleDeletionRefused(t *testing.T) {
	c := newTestAPI(t)
	admin := c.registerAdmin("root@x.com", "Passw0rd!")
	token := admin.Tokens.AccessToken

	resp := c.get("/v1/roles", token)
	roles := decode[[]map[string]any](t, resp)
	resp.Body.Close()

	for _, role := range roles {
		name, _ := role["name"].(string)
		if name != "user" && name != "admin" {
			continue
		}
		id, _ := role["id"].(string)
		resp := c.do(http.MethodDelete, "/v1/roles/"+id, nil, token)
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("deleting %s status %d, want 409", name, resp.StatusCode)
		}
	}
}

func TestRolesRequireAdmin(t *testing.T) {
	c := newTestAPI(t)
	user := c.register("plain@x.com", "Passw0rd!")

	resp := c.get("/v1/roles", user.Tokens.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("list status %d, want 403", resp.StatusCode)
	}
	resp = c.post("/v1/roles", map[string]any{"name": "sneaky"}, user.Tokens.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("create status %d, want 403", resp.StatusCode)
	}
}
