package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_Recorder(t *testing.T) {
	r := NewRegistry()

	r.TokenOperation("issue", "ok")
	r.TokenOperation("issue", "ok")
	r.TokenOperation("verify", "expired")
	r.RateLimitDecision("rejected")
	r.LoginAttempt("invalid")

	if got := testutil.ToFloat64(r.TokenOperations.WithLabelValues("issue", "ok")); got != 2 {
		t.Errorf("issue/ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.TokenOperations.WithLabelValues("verify", "expired")); got != 1 {
		t.Errorf("verify/expired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.RateLimitDecisions.WithLabelValues("rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.LoginAttempts.WithLabelValues("invalid")); got != 1 {
		t.Errorf("login invalid = %v, want 1", got)
	}
}

func TestRegistry_ObserveRequest(t *testing.T) {
	r := NewRegistry()
	r.ObserveRequest("GET", "/health", 200, 5*time.Millisecond)
	r.ObserveRequest("GET", "/health", 200, 7*time.Millisecond)
	r.ObserveRequest("POST", "/api/v1/auth/login", 429, time.Millisecond)

	if got := testutil.ToFloat64(r.RequestsTotal.WithLabelValues("GET", "/health", "200")); got != 2 {
		t.Errorf("GET /health 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.RequestsTotal.WithLabelValues("POST", "/api/v1/auth/login", "429")); got != 1 {
		t.Errorf("POST login 429 = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(r.RequestDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.RateLimitDecision("allowed")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`stockgate_ratelimit_decisions_total{outcome="allowed"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistry_Isolated(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.LoginAttempt("ok")

	if got := testutil.ToFloat64(b.LoginAttempts.WithLabelValues("ok")); got != 0 {
		t.Errorf("second registry saw %v attempts, want 0", got)
	}
}
