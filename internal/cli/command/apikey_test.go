package command

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
)

func TestAPIKeyCreate_Local(t *testing.T) {
	h := newHarness(t)

	r := h.run(t, "", "-o", "json", "apikey", "create", "--name", "billing", "--subject", "billing-svc")
	if r.err != nil {
		t.Fatalf("apikey create failed: %v", r.err)
	}
	key := decodeJSON[generatedKey](t, r.stdout)

	id, secret, ok := domain.SplitAPIKey(key.APIKey)
	if !ok {
		t.Fatalf("api_key %q is not <id>:<secret>", key.APIKey)
	}
	if id != key.ID || !strings.HasPrefix(id, domain.APIKeyIDPrefix) {
		t.Errorf("id = %q, api_key id = %q", key.ID, id)
	}
	if !domain.VerifySecret(secret, key.SecretHash) {
		t.Error("secret_hash does not verify the secret")
	}
	if strings.Join(key.Roles, ",") != domain.RoleService {
		t.Errorf("roles = %v, want default service role", key.Roles)
	}
	if !strings.Contains(r.stderr, "api_keys") {
		t.Errorf("stderr = %q, want configuration hint", r.stderr)
	}
}

func TestAPIKeyCreate_UnknownRole(t *testing.T) {
	h := newHarness(t)
	r := h.run(t, "", "apikey", "create", "--name", "x", "--role", "root")
	if r.err == nil || !strings.Contains(r.err.Error(), `unknown role "root"`) {
		t.Errorf("error = %v, want unknown role", r.err)
	}
}

func TestAPIKeyCreate_Remote(t *testing.T) {
	srv := newMockServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/admin/keys": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer admin-token" {
				errorResponse(w, http.StatusForbidden, "SG-AUTH-4030", "insufficient scope")
				return
			}
			var req handler.CreateAPIKeyRequest
			json.NewDecoder(r.Body).Decode(&req)
			jsonResponse(w, http.StatusCreated, handler.CreateAPIKeyResponse{
				KeyID:  "sgak-new",
				APIKey: "sgak-new:s3cret",
				Name:   req.Name,
				Roles:  req.Roles,
			})
		},
	})
	h := newHarness(t)

	out := h.mustRun(t, "--server", srv.URL, "--token", "admin-token", "-o", "json",
		"apikey", "create", "--remote", "--name", "ci", "--role", "admin")
	resp := decodeJSON[handler.CreateAPIKeyResponse](t, out)
	if resp.Name != "ci" || strings.Join(resp.Roles, ",") != "admin" {
		t.Errorf("response = %+v", resp)
	}

	r := h.run(t, "", "--server", srv.URL, "apikey", "create", "--remote", "--name", "ci")
	if r.err == nil || !strings.Contains(r.err.Error(), "SG-AUTH-4030") {
		t.Errorf("error = %v, want SG-AUTH-4030", r.err)
	}
}

func TestAPIKeyList(t *testing.T) {
	srv := newMockServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/admin/keys": func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, handler.ListAPIKeysResponse{Keys: []handler.APIKeyResponse{
				{KeyID: "sgak-a", Name: "billing", Roles: []string{"service"}, Enabled: true},
				{KeyID: "sgak-b", Name: "legacy", Roles: []string{"user"}},
			}})
		},
	})
	h := newHarness(t)

	out := h.mustRun(t, "--server", srv.URL, "--api-key", "sgak-admin:x", "apikey", "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "KEY ID") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "sgak-a") || !strings.Contains(lines[2], "false") {
		t.Errorf("rows =\n%s", out)
	}
}

func TestAPIKeySetEnabled(t *testing.T) {
	var gotEnabled *bool
	srv := newMockServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/admin/keys/{key_id}/status": func(w http.ResponseWriter, r *http.Request) {
			var req handler.UpdateAPIKeyStatusRequest
			json.NewDecoder(r.Body).Decode(&req)
			gotEnabled = req.Enabled
			if r.PathValue("key_id") != "sgak-a" {
				errorResponse(w, http.StatusNotFound, "SG-AUTH-4040", "api key not found")
				return
			}
			jsonResponse(w, http.StatusOK, handler.APIKeyResponse{KeyID: "sgak-a", Enabled: *req.Enabled})
		},
	})
	h := newHarness(t)

	out := h.mustRun(t, "--server", srv.URL, "-o", "json", "apikey", "disable", "sgak-a")
	if gotEnabled == nil || *gotEnabled {
		t.Fatalf("enabled = %v, want false", gotEnabled)
	}
	if resp := decodeJSON[handler.APIKeyResponse](t, out); resp.Enabled {
		t.Error("response still enabled")
	}

	h.mustRun(t, "--server", srv.URL, "apikey", "enable", "sgak-a")
	if gotEnabled == nil || !*gotEnabled {
		t.Errorf("enabled = %v, want true", gotEnabled)
	}

	r := h.run(t, "", "--server", srv.URL, "apikey", "enable", "sgak-zzz")
	if r.err == nil || !strings.Contains(r.err.Error(), "not found") {
		t.Errorf("error = %v, want not found", r.err)
	}

	if r := h.run(t, "", "--server", srv.URL, "apikey", "enable"); r.err == nil {
		t.Error("missing key id accepted")
	}
}
