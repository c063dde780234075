package command

import (
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
)

func TestRateLimitProbe(t *testing.T) {
	h := newHarness(t)

	r := h.run(t, "", "-o", "json", "ratelimit", "probe", "--requests", "3", "--limit", "2", "--window", "1h")
	if r.err != nil {
		t.Fatalf("probe failed: %v", r.err)
	}
	results := decodeJSON[[]probeResult](t, r.stdout)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	want := []struct {
		allowed   bool
		count     int64
		remaining int64
	}{
		{true, 1, 1},
		{true, 2, 0},
		{false, 3, 0},
	}
	for i, w := range want {
		got := results[i]
		if got.Allowed != w.allowed || got.Count != w.count || got.Remaining != w.remaining {
			t.Errorf("attempt %d = %+v, want allowed=%v count=%d remaining=%d", i+1, got, w.allowed, w.count, w.remaining)
		}
	}
	if results[2].Error != "SG-RATE-4290" || results[2].RetryAfter < 1 {
		t.Errorf("rejection = %+v, want SG-RATE-4290 with retry-after", results[2])
	}
	if !strings.Contains(r.stderr, "memory backend") {
		t.Errorf("stderr = %q, want memory backend note", r.stderr)
	}
}

func TestRateLimitProbe_BadArguments(t *testing.T) {
	h := newHarness(t)
	tests := map[string][]string{
		"zero requests": {"ratelimit", "probe", "--requests", "0"},
		"short window":  {"ratelimit", "probe", "--window", "10ms"},
		"empty key":     {"ratelimit", "probe", "--key", ""},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if r := h.run(t, "", args...); r.err == nil {
				t.Error("probe accepted bad arguments")
			}
		})
	}
}

func TestRateLimitPolicy(t *testing.T) {
	srv := newMockServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/admin/ratelimit": func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusOK, handler.RateLimitPolicyResponse{
				Enabled: true, Limit: 100, WindowSeconds: 60, KeyStrategy: "ip", FailMode: "open", Backend: "redis",
			})
		},
	})
	h := newHarness(t)

	out := h.mustRun(t, "--server", srv.URL, "ratelimit", "policy")
	for _, want := range []string{"window_seconds", "60", "redis", "open"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}
