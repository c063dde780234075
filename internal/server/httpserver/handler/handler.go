package handler

import (
	"context"
	"net/http"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/infra/buildinfo"
	"github.com/yndnr/stockgate/internal/infra/clock"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// Pinger reports whether the counter store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KeyStore holds API keys created at runtime.
type KeyStore interface {
	PutAPIKey(key domain.APIKey) error
	SetAPIKeyEnabled(keyID string, enabled bool) error
	ListAPIKeys() []domain.APIKey
}

// Config holds the dependencies of a Handler.
type Config struct {
	Auth *service.AuthService

	// Keys enables the admin key endpoints when set.
	Keys KeyStore

	// Store is pinged by the health endpoints.
	Store   Pinger
	Backend string

	// Policy is reported by the admin rate limit endpoint.
	Policy config.RateLimitSection

	Build  buildinfo.Info
	Clock  clock.Clock
	Logger logger.Logger
}

// Handler serves the stockgate API.
type Handler struct {
	auth    *service.AuthService
	tokens  *service.TokenService
	keys    KeyStore
	store   Pinger
	backend string
	policy  config.RateLimitSection
	build   buildinfo.Info
	clock   clock.Clock
	errs    Responder
	logger  logger.Logger
	mux     *http.ServeMux
}

// Route is one endpoint and the access it requires.
type Route struct {
	// Pattern is a net/http mux pattern such as "POST /api/v1/auth/login".
	Pattern string
	Handler http.HandlerFunc

	// Authenticated routes need a bearer token or API key.
	Authenticated bool

	// Roles, when set, are required any-of. Implies Authenticated.
	Roles []string
}

// New creates a Handler. Auth is required.
func New(cfg Config) (*Handler, error) {
	if cfg.Auth == nil {
		return nil, domain.ErrConfiguration.WithDetails("handler requires an auth service")
	}
	h := &Handler{
		auth:    cfg.Auth,
		tokens:  cfg.Auth.Tokens(),
		keys:    cfg.Keys,
		store:   cfg.Store,
		backend: cfg.Backend,
		policy:  cfg.Policy,
		build:   cfg.Build,
		clock:   clock.OrReal(cfg.Clock),
		logger:  cfg.Logger,
		mux:     http.NewServeMux(),
	}
	h.errs = NewResponder(h.clock)
	if h.logger == nil {
		h.logger = logger.Default()
	}
	for _, rt := range h.Routes() {
		h.mux.Handle(rt.Pattern, rt.Handler)
	}
	return h, nil
}

// Routes returns every endpoint served by h.
func (h *Handler) Routes() []Route {
	routes := []Route{
		{Pattern: "GET /health", Handler: h.handleHealth},
		{Pattern: "GET /ready", Handler: h.handleReady},

		{Pattern: "POST /api/v1/auth/login", Handler: h.handleLogin},
		{Pattern: "POST /api/v1/auth/token", Handler: h.handleToken},
		{Pattern: "POST /api/v1/auth/refresh", Handler: h.handleRefresh},
		{Pattern: "GET /api/v1/auth/me", Handler: h.handleMe, Authenticated: true},
		{Pattern: "POST /api/v1/auth/logout", Handler: h.handleLogout, Authenticated: true},

		{Pattern: "POST /api/v1/tokens/verify", Handler: h.handleVerifyToken,
			Roles: []string{domain.RoleService, domain.RoleAdmin}},

		{Pattern: "GET /api/v1/admin/ratelimit", Handler: h.handleRateLimitPolicy,
			Roles: []string{domain.RoleAdmin}},
	}
	if h.keys != nil {
		routes = append(routes,
			Route{Pattern: "GET /api/v1/admin/keys", Handler: h.handleListAPIKeys,
				Roles: []string{domain.RoleAdmin}},
			Route{Pattern: "POST /api/v1/admin/keys", Handler: h.handleCreateAPIKey,
				Roles: []string{domain.RoleAdmin}},
			Route{Pattern: "POST /api/v1/admin/keys/{key_id}/status", Handler: h.handleAPIKeyStatus,
				Roles: []string{domain.RoleAdmin}},
		)
	}
	return routes
}

// ServeHTTP dispatches to the endpoint handlers without any middleware.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Responder returns the error writer stamped with the handler's clock, for
// the middlewares in front of h.
func (h *Handler) Responder() Responder { return h.errs }

// principal returns the request principal or writes a 401.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*domain.Principal, bool) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		h.errs.Error(w, r, domain.ErrCredentialsMissing)
		return nil, false
	}
	return p, true
}
