package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/infra/buildinfo"
	"github.com/yndnr/stockgate/internal/infra/clock"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
	"github.com/yndnr/stockgate/internal/storage/memory"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
	"github.com/yndnr/stockgate/internal/telemetry/metric"
)

func newTestRouter(t *testing.T, env *testEnv, limit int64) (http.Handler, *metric.Registry) {
	t.Helper()
	store := memory.NewCounterStore(memory.WithClock(clock.NewFake(windowBase)))
	policy := testPolicy(limit)

	h, err := handler.New(handler.Config{
		Auth:    env.auth,
		Keys:    env.dir,
		Store:   store,
		Backend: "memory",
		Policy:  policy,
		Build:   buildinfo.Info{Version: "test"},
		Logger:  logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("handler.New failed: %v", err)
	}

	reg := metric.NewRegistry()
	router := NewRouter(RouterConfig{
		Handler:   h,
		Auth:      env.auth,
		Limiter:   newLimiter(t, store, false),
		Metrics:   reg,
		Server:    config.Default().Server,
		RateLimit: policy,
		Logger:    logger.NewNop(),
	})
	return router, reg
}

func TestRouter_RateLimitRunsBeforeAuth(t *testing.T) {
	env := newTestEnv(t)
	router, _ := newTestRouter(t, env, 1)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("first request: status = %d, want 401", rec.Code)
	}

	// Valid credentials do not help once the quota is spent.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+env.bearer(t, "alice", domain.RoleUser))
	rec = serve(router, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	body := errorBody(t, rec)
	if body.ErrorCode != "SG-RATE-4290" {
		t.Errorf("error_code = %q, want SG-RATE-4290", body.ErrorCode)
	}
	if body.RequestID != rec.Header().Get(HeaderRequestID) {
		t.Errorf("request_id %q does not match header %q", body.RequestID, rec.Header().Get(HeaderRequestID))
	}
}

func TestRouter_LoginThrottlePerClient(t *testing.T) {
	env := newTestEnv(t)
	hash, err := domain.HashSecret("correct horse")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	dir, err := memory.NewDirectory([]domain.User{
		{ID: "u-alice", Username: "alice", PasswordHash: hash, Roles: []string{domain.RoleUser}, Active: true},
	}, nil)
	if err != nil {
		t.Fatalf("NewDirectory failed: %v", err)
	}
	cfg := service.DefaultAuthServiceConfig()
	cfg.LoginAttemptsPerMinute = 3
	env.auth, err = service.NewAuthService(env.tokens, dir, dir, cfg)
	if err != nil {
		t.Fatalf("NewAuthService failed: %v", err)
	}
	env.dir = dir
	router, _ := newTestRouter(t, env, 100)

	login := func(remote, password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"username":"alice","password":"`+password+`"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		return serve(router, req)
	}

	for i := range 3 {
		if rec := login("192.0.2.1:1000", "wrong"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("failure %d: status = %d, want 401", i+1, rec.Code)
		}
	}
	rec := login("192.0.2.1:1000", "correct horse")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("throttled client: status = %d, want 429", rec.Code)
	}
	if body := errorBody(t, rec); body.ErrorCode != "SG-AUTH-4290" {
		t.Errorf("error_code = %q, want SG-AUTH-4290", body.ErrorCode)
	}

	if rec := login("192.0.2.2:1000", "correct horse"); rec.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestRouter_Endpoints(t *testing.T) {
	env := newTestEnv(t)
	router, _ := newTestRouter(t, env, 100)
	user := env.bearer(t, "alice", domain.RoleUser)
	admin := env.bearer(t, "root", domain.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		apiKey string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"ready is public", http.MethodGet, "/ready", "", "", http.StatusOK},
		{"me with bearer", http.MethodGet, "/api/v1/auth/me", user, "", http.StatusOK},
		{"me with api key", http.MethodGet, "/api/v1/auth/me", "", env.apiKey, http.StatusOK},
		{"logout needs credentials", http.MethodPost, "/api/v1/auth/logout", "", "", http.StatusUnauthorized},
		{"verify needs service role", http.MethodPost, "/api/v1/tokens/verify", user, "", http.StatusForbidden},
		{"admin policy as user", http.MethodGet, "/api/v1/admin/ratelimit", user, "", http.StatusForbidden},
		{"admin policy as admin", http.MethodGet, "/api/v1/admin/ratelimit", admin, "", http.StatusOK},
		{"admin keys as service key", http.MethodGet, "/api/v1/admin/keys", "", env.apiKey, http.StatusForbidden},
		{"admin keys as admin", http.MethodGet, "/api/v1/admin/keys", admin, "", http.StatusOK},
		{"unknown path", http.MethodGet, "/api/v2/nothing", "", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/v1/auth/login", "", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			if tt.apiKey != "" {
				req.Header.Set(HeaderAPIKey, tt.apiKey)
			}
			rec := serve(router, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if rec.Header().Get(HeaderRequestID) == "" {
				t.Error("X-Request-ID missing")
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers missing")
			}
		})
	}
}

func TestRouter_VerifyWithServiceKey(t *testing.T) {
	env := newTestEnv(t)
	router, _ := newTestRouter(t, env, 100)
	tok := env.bearer(t, "alice", domain.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens/verify", strings.NewReader(`{"token":"`+tok+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, env.apiKey)
	rec := serve(router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"valid":true`) {
		t.Errorf("body = %s, want valid token", rec.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	router, _ := newTestRouter(t, env, 100)

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `stockgate_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Errorf("metrics output lacks the /health request:\n%s", rec.Body.String())
	}
}

func TestRouteName(t *testing.T) {
	tests := map[string]string{
		"GET /health":                             "/health",
		"POST /api/v1/admin/keys/{key_id}/status": "/api/v1/admin/keys/{key_id}/status",
		"/":                                       "/",
	}
	for pattern, want := range tests {
		if got := routeName(pattern); got != want {
			t.Errorf("routeName(%q) = %q, want %q", pattern, got, want)
		}
	}
}
