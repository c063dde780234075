package command

import (
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
)

func TestProfile_Lifecycle(t *testing.T) {
	var gotKey string
	srv := newMockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("X-API-Key")
			jsonResponse(w, http.StatusOK, handler.HealthResponse{Status: handler.StatusUp})
		},
	})
	h := newHarness(t)

	h.mustRun(t, "--server", srv.URL, "--api-key", "sgak-1:secret", "profile", "save", "local")
	h.mustRun(t, "--server", "http://127.0.0.1:1", "profile", "save", "dead")

	rows := decodeJSON[[]profileRow](t, h.mustRun(t, "-o", "json", "profile", "list"))
	if len(rows) != 2 || rows[0].Name != "dead" || rows[1].Name != "local" {
		t.Fatalf("profiles = %+v", rows)
	}
	if !rows[1].Current || rows[0].Current {
		t.Error("the first saved profile should become current")
	}
	if !rows[1].APIKey {
		t.Error("has_api_key = false for local")
	}

	// The current profile supplies server and credential.
	h.mustRun(t, "status")
	if gotKey != "sgak-1:secret" {
		t.Errorf("X-API-Key = %q, want the profile key", gotKey)
	}

	// Flags override the profile.
	h.mustRun(t, "--api-key", "sgak-2:other", "status")
	if gotKey != "sgak-2:other" {
		t.Errorf("X-API-Key = %q, want the flag value", gotKey)
	}

	h.mustRun(t, "profile", "use", "dead")
	if r := h.run(t, "", "status"); r.err == nil {
		t.Error("status against the dead profile succeeded")
	}
	h.mustRun(t, "--profile", "local", "status")

	h.mustRun(t, "profile", "remove", "dead")
	rows = decodeJSON[[]profileRow](t, h.mustRun(t, "-o", "json", "profile", "list"))
	if len(rows) != 1 || rows[0].Current {
		t.Errorf("profiles after remove = %+v", rows)
	}
}

func TestProfile_Errors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"save without name", []string{"--server", "http://x", "profile", "save"}, "name required"},
		{"save without server", []string{"profile", "save", "x"}, "--server is required"},
		{"use unknown", []string{"profile", "use", "x"}, `unknown profile "x"`},
		{"remove unknown", []string{"profile", "remove", "x"}, `unknown profile "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := h.run(t, "", tt.args...)
			if r.err == nil || !strings.Contains(r.err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", r.err, tt.want)
			}
		})
	}
}

func TestProfile_ListHidesKeys(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "--server", "http://gate", "--api-key", "sgak-1:topsecret", "profile", "save", "p")
	for _, format := range []string{"table", "json", "yaml"} {
		if out := h.mustRun(t, "-o", format, "profile", "list"); strings.Contains(out, "topsecret") {
			t.Errorf("%s output leaks the api key:\n%s", format, out)
		}
	}
}
