package httpserver

import (
	"net/http"
	"strings"

	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
	"github.com/yndnr/stockgate/internal/telemetry/metric"
)

// RouterConfig holds the dependencies of the HTTP router.
type RouterConfig struct {
	Handler *handler.Handler
	Auth    *service.AuthService

	// Limiter enforces the request quota. Nil disables rate limiting.
	Limiter *service.RateLimiter

	// Metrics records request metrics and serves /metrics. Nil disables both.
	Metrics *metric.Registry

	Server    config.ServerSection
	RateLimit config.RateLimitSection

	Logger logger.Logger
}

// NewRouter builds the request pipeline.
//
// Every request passes RequestID, Recover, SecurityHeaders and CORS. Each
// route then runs Trace, Metrics, Audit and RateLimit, and routes that need
// a caller add Authenticate and RequireRoles, so a throttled request is
// rejected with 429 before its credentials are checked.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	errs := cfg.Handler.Responder()

	rateLimit := RateLimit(RateLimitConfig{
		Limiter:    cfg.Limiter,
		Auth:       cfg.Auth,
		Policy:     cfg.RateLimit,
		TrustProxy: cfg.Server.HTTP.TrustProxy,
		Errors:     errs,
		Logger:     cfg.Logger,
	})

	routeChain := func(route string) []Middleware {
		return []Middleware{
			Trace(route),
			Metrics(cfg.Metrics, route),
			Audit(route, cfg.Server.HTTP.TrustProxy),
			rateLimit,
		}
	}

	mux := http.NewServeMux()
	for _, rt := range cfg.Handler.Routes() {
		route := routeName(rt.Pattern)
		mws := routeChain(route)
		if rt.Authenticated || len(rt.Roles) > 0 {
			mws = append(mws, Authenticate(cfg.Auth, errs))
		}
		if len(rt.Roles) > 0 {
			mws = append(mws, RequireRoles(cfg.Auth, errs, rt.Roles...))
		}
		mux.Handle(rt.Pattern, Chain(rt.Handler, mws...))
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), rateLimit))
	}

	// Unmatched paths, and methods a path does not serve, get the
	// structured 404 body.
	mux.Handle("/", Chain(http.HandlerFunc(errs.NotFound), routeChain("unmatched")...))

	return Chain(mux,
		RequestID(cfg.Logger),
		Recover(cfg.Logger, errs),
		SecurityHeaders(cfg.Server.HTTP.TLSEnabled()),
		CORS(cfg.Server.CORS),
	)
}

// routeName strips the method from a mux pattern.
func routeName(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}
