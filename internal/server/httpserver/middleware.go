package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
	"github.com/yndnr/stockgate/internal/telemetry/metric"
)

// Request and response headers.
const (
	HeaderRequestID          = "X-Request-ID"
	HeaderAPIKey             = "X-API-Key"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is the
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }

// requestState is shared by the middlewares of one request so outer ones
// can see what inner ones resolved.
type requestState struct {
	principal *domain.Principal
	clientIP  string
}

type stateKey struct{}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateKey{}).(*requestState)
	return st
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// wrapWriter reuses an existing wrapper so stacked middlewares agree on the
// status.
func wrapWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap supports http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover turns a panic into a 500 response. Placed outside RequestID it
// still reports the id already set on the response.
func Recover(log logger.Logger, errs handler.Responder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				id := logger.RequestIDFromContext(ctx)
				if id == "" {
					id = w.Header().Get(HeaderRequestID)
					ctx = logger.WithRequestID(ctx, id)
				}
				log.Error("panic recovered",
					"request_id", id,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				errs.Error(w, r.WithContext(ctx), domain.ErrInternalServer)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID assigns every request an id, keeping a well-formed incoming
// X-Request-ID, and attaches it and log to the request context.
func RequestID(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if !requestIDPattern.MatchString(id) {
				id = "req-" + strings.ToLower(ulid.Make().String())
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := logger.WithRequestID(r.Context(), id)
			ctx = logger.WithLogger(ctx, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders sets conservative browser security headers. HSTS is only
// sent when the listener serves TLS.
func SecurityHeaders(tls bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if tls {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS answers preflight requests and sets Access-Control headers for the
// configured origins. No origins disables it.
func CORS(cfg config.CORSConfig) Middleware {
	if len(cfg.AllowedOrigins) == 0 {
		return passthrough
	}
	maxAge := strconv.Itoa(int(cfg.MaxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			allowed := false
			for _, o := range cfg.AllowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					allowed = true
					break
				}
			}
			if !allowed {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", strings.Join([]string{
				HeaderRequestID, HeaderRateLimitLimit, HeaderRateLimitRemaining, HeaderRateLimitReset, "Retry-After",
			}, ", "))

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key, X-Request-ID")
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Trace starts a server span named after route, continuing any trace
// context carried by the request headers.
func Trace(route string) Middleware {
	tracer := otel.Tracer("stockgate/http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("http.route", route),
					attribute.String("url.path", r.URL.Path),
					attribute.String("stockgate.request_id", logger.RequestIDFromContext(ctx)),
				))
			defer span.End()

			rw := wrapWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.response.status_code", rw.status))
			if rw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.status))
			}
		})
	}
}

// Metrics records request counts and latencies for route. A nil registry
// disables it.
func Metrics(reg *metric.Registry, route string) Middleware {
	if reg == nil {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrapWriter(w)
			next.ServeHTTP(rw, r)
			reg.ObserveRequest(r.Method, route, rw.status, time.Since(start))
		})
	}
}

// Audit logs one line per request, including the principal resolved by
// the inner middlewares. It resolves the client address once and hands it
// to the handlers.
func Audit(route string, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			st := &requestState{clientIP: clientIP(r, trustProxy)}
			rw := wrapWriter(w)
			ctx := context.WithValue(r.Context(), stateKey{}, st)
			ctx = handler.WithClientAddr(ctx, st.clientIP)
			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []any{
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if st.clientIP != "" {
				attrs = append(attrs, "client_ip", st.clientIP)
			}
			if st.principal != nil {
				attrs = append(attrs, "user_id", st.principal.Subject, "auth_method", string(st.principal.Method))
			}

			log := logger.L(r.Context())
			switch {
			case rw.status >= 500:
				log.Error("request completed with error", attrs...)
			case rw.status >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Limiter *service.RateLimiter

	// Auth resolves principals for the "principal" key strategy.
	Auth *service.AuthService

	Policy     config.RateLimitSection
	TrustProxy bool

	// Errors writes the 429 and 503 bodies.
	Errors handler.Responder
	Logger logger.Logger
}

// RateLimit counts each request against the client's fixed-window quota
// before any authentication runs.
//
// Allowed requests carry X-RateLimit-* headers; rejected ones get 429 with
// Retry-After. A fail-closed limiter whose store is down answers 503.
func RateLimit(cfg RateLimitConfig) Middleware {
	if !cfg.Policy.Enabled || cfg.Limiter == nil {
		return passthrough
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	whitelist := parseWhitelist(cfg.Policy.WhitelistIPs, cfg.Logger)
	byPrincipal := cfg.Policy.KeyStrategy == config.KeyStrategyPrincipal && cfg.Auth != nil

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, cfg.TrustProxy)
			if st := stateFrom(r.Context()); st != nil {
				st.clientIP = ip
			}

			if pathExcluded(r.URL.Path, cfg.Policy.ExcludePaths) || ipWhitelisted(ip, whitelist) {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + ip
			if byPrincipal {
				key = principalKey(r, cfg.Auth, key)
			}

			d, err := cfg.Limiter.CheckAndIncrement(r.Context(), key, cfg.Policy.Limit, cfg.Policy.Window)
			if err != nil {
				if errors.Is(err, domain.ErrRateLimitExceeded) {
					setRateLimitHeaders(w, d)
					logger.L(r.Context()).Info("rate limit exceeded",
						"client_key", key,
						"count", d.Count,
						"limit", d.Limit,
					)
					cfg.Errors.RateLimited(w, r, err, d.RetryAfterSeconds())
					return
				}
				cfg.Errors.Error(w, r, err)
				return
			}
			if !d.Degraded {
				setRateLimitHeaders(w, d)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principalKey keys a request on its verified bearer subject, or on the id
// of an API key already validated by an earlier request. Anything else
// keeps the IP key, so unverified credentials cannot pick their bucket.
func principalKey(r *http.Request, auth *service.AuthService, ipKey string) string {
	if bearer, ok := bearerToken(r); ok {
		if p, err := auth.AuthenticateBearer(r.Context(), bearer); err == nil {
			rememberPrincipal(r.Context(), p)
			return "user:" + p.Subject
		}
		return ipKey
	}
	if raw := r.Header.Get(HeaderAPIKey); raw != "" {
		if p := auth.PeekAPIKey(raw); p != nil {
			rememberPrincipal(r.Context(), p)
			return "apikey:" + p.TokenID
		}
	}
	return ipKey
}

func rememberPrincipal(ctx context.Context, p *domain.Principal) {
	if st := stateFrom(ctx); st != nil {
		st.principal = p
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d domain.Decision) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.FormatInt(d.Limit, 10))
	h.Set(HeaderRateLimitRemaining, strconv.FormatInt(d.Remaining, 10))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// Authenticate requires a bearer access token or an X-API-Key credential
// and stores the principal in the request context.
func Authenticate(auth *service.AuthService, errs handler.Responder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authenticate(r, auth)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="stockgate"`)
				errs.Error(w, r, err)
				return
			}
			rememberPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(handler.WithPrincipal(r.Context(), p)))
		})
	}
}

func authenticate(r *http.Request, auth *service.AuthService) (*domain.Principal, error) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		bearer, ok := bearerToken(r)
		if !ok {
			return nil, domain.ErrTokenInvalid.WithDetails("unsupported authorization scheme")
		}
		if st := stateFrom(r.Context()); st != nil && st.principal != nil && st.principal.Method == domain.AuthMethodBearer {
			return st.principal, nil
		}
		return auth.AuthenticateBearer(r.Context(), bearer)
	}
	if raw := r.Header.Get(HeaderAPIKey); raw != "" {
		return auth.AuthenticateAPIKey(r.Context(), raw)
	}
	return nil, domain.ErrCredentialsMissing
}

// RequireRoles rejects principals holding none of roles. It must run after
// Authenticate.
func RequireRoles(auth *service.AuthService, errs handler.Responder, roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.Authorize(handler.PrincipalFromContext(r.Context()), roles...); err != nil {
				errs.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// clientIP returns the address requests are counted under. Proxy headers
// are only honoured when trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return normalizeIP(ip)
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return normalizeIP(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalizeIP(host)
}

func normalizeIP(s string) string {
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap().String()
	}
	return s
}

func parseWhitelist(entries []string, log logger.Logger) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				log.Warn("invalid CIDR in rate limit whitelist", "entry", e, "error", err)
				continue
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			log.Warn("invalid IP in rate limit whitelist", "entry", e, "error", err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

func ipWhitelisted(ip string, whitelist []netip.Prefix) bool {
	if len(whitelist) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, p := range whitelist {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// pathExcluded matches exact paths, or prefixes for entries ending in "*".
func pathExcluded(path string, excluded []string) bool {
	for _, e := range excluded {
		if prefix, ok := strings.CutSuffix(e, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		} else if path == e {
			return true
		}
	}
	return false
}
