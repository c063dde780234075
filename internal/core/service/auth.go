package service

import (
	"container/list"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/infra/clock"
	"github.com/yndnr/stockgate/pkg/token"
)

// UserDirectory looks up password accounts.
type UserDirectory interface {
	// FindUser returns the user with the given username, or an error
	// matching domain.ErrNotFound.
	FindUser(ctx context.Context, username string) (*domain.User, error)
}

// UserDirectories consults each directory in order and returns the first
// match. Errors other than not found stop the search.
type UserDirectories []UserDirectory

// FindUser implements UserDirectory.
func (ds UserDirectories) FindUser(ctx context.Context, username string) (*domain.User, error) {
	for _, d := range ds {
		u, err := d.FindUser(ctx, username)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrNotFound.WithDetails("user")
}

// APIKeyDirectory looks up machine credentials.
type APIKeyDirectory interface {
	// FindAPIKey returns the key with the given id, or an error matching
	// domain.ErrNotFound.
	FindAPIKey(ctx context.Context, keyID string) (*domain.APIKey, error)
}

// AuthService authenticates callers and checks their roles.
type AuthService struct {
	tokens *TokenService
	users  UserDirectory
	keys   APIKeyDirectory

	cache         *APIKeyCache
	loginLimiters *RateLimiterRegistry

	rec    Recorder
	tracer trace.Tracer

	// dummyHash is verified against when a username is unknown so that
	// both failure paths cost one argon2 derivation.
	dummyHash string
}

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	// CacheTTL is the cache time-to-live for validated API keys (default: 60s).
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached API keys (default: 10,000).
	CacheSize int

	// LoginAttemptsPerMinute bounds failed password attempts per username
	// and client address (default: 10).
	LoginAttemptsPerMinute int

	// LoginThrottleSize is the maximum number of tracked username and
	// client pairs (default: 10,000).
	LoginThrottleSize int

	// Clock drives cache expiry and login throttling. Defaults to the
	// system clock.
	Clock clock.Clock

	// Recorder receives login metrics.
	Recorder Recorder
}

// DefaultAuthServiceConfig returns default configuration.
func DefaultAuthServiceConfig() *AuthServiceConfig {
	return &AuthServiceConfig{
		CacheTTL:               60 * time.Second,
		CacheSize:              10000,
		LoginAttemptsPerMinute: 10,
		LoginThrottleSize:      10000,
	}
}

// NewAuthService creates a new AuthService. users and keys may be nil, in
// which case password login or API key authentication always fail.
func NewAuthService(tokens *TokenService, users UserDirectory, keys APIKeyDirectory, config *AuthServiceConfig) (*AuthService, error) {
	if tokens == nil {
		return nil, domain.ErrConfiguration.WithDetails("auth service requires a token service")
	}
	if config == nil {
		config = DefaultAuthServiceConfig()
	}
	attempts := config.LoginAttemptsPerMinute
	if attempts <= 0 {
		attempts = DefaultAuthServiceConfig().LoginAttemptsPerMinute
	}

	dummy, err := domain.HashSecret("stockgate-unknown-user")
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return &AuthService{
		tokens:        tokens,
		users:         users,
		keys:          keys,
		cache:         NewAPIKeyCache(config.CacheSize, config.CacheTTL, config.Clock),
		loginLimiters: NewRateLimiterRegistry(config.LoginThrottleSize,
			rate.Every(time.Minute/time.Duration(attempts)), attempts, config.Clock),
		rec:           orNop(config.Recorder),
		tracer:        otel.Tracer("stockgate/auth"),
		dummyHash:     dummy,
	}, nil
}

// Tokens returns the token service used for issuance and verification.
func (s *AuthService) Tokens() *TokenService { return s.tokens }

// LoginOption adjusts a single Login call.
type LoginOption func(*loginOptions)

type loginOptions struct {
	client string
}

// WithClientAddr scopes the failed attempt throttle to the caller's
// address, so failures from one client cannot lock out another.
func WithClientAddr(addr string) LoginOption {
	return func(o *loginOptions) { o.client = addr }
}

// Login checks a username and password and issues a token pair.
//
// Only failed attempts are charged against the throttle, and a successful
// login clears it.
func (s *AuthService) Login(ctx context.Context, username, password string, opts ...LoginOption) (*domain.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	var o loginOptions
	for _, opt := range opts {
		opt(&o)
	}

	pair, err := s.login(ctx, username, password, o.client)
	if err != nil {
		s.rec.LoginAttempt(loginResult(err))
		span.SetStatus(codes.Error, domain.GetErrorCode(err))
		return nil, err
	}
	s.rec.LoginAttempt("ok")
	return pair, nil
}

func (s *AuthService) login(ctx context.Context, username, password, client string) (*domain.TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrMissingArgument.WithDetails("username and password are required")
	}

	throttleKey := strings.ToLower(username) + "|" + client
	if !s.loginLimiters.Allowed(throttleKey) {
		return nil, domain.ErrLoginThrottled
	}

	pair, err := s.checkPassword(ctx, username, password)
	switch {
	case err == nil:
		s.loginLimiters.Delete(throttleKey)
	case errors.Is(err, domain.ErrInvalidCredentials):
		s.loginLimiters.Charge(throttleKey)
	}
	return pair, err
}

func (s *AuthService) checkPassword(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	if s.users == nil {
		domain.VerifySecret(password, s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindUser(ctx, username)
	if err != nil {
		domain.VerifySecret(password, s.dummyHash)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	if !domain.VerifySecret(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrUserInactive
	}

	return s.tokens.Issue(user.ID, user.Roles, WithUsername(user.Username))
}

// AuthenticateBearer verifies an access token and returns its principal.
func (s *AuthService) AuthenticateBearer(ctx context.Context, bearer string) (*domain.Principal, error) {
	if bearer == "" {
		return nil, domain.ErrCredentialsMissing
	}
	claims, err := s.tokens.Verify(bearer, domain.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return domain.PrincipalFromClaims(claims), nil
}

// AuthenticateAPIKey verifies a raw "<key_id>:<secret>" credential.
//
// Validated credentials are cached by the SHA-256 of the raw value, so a
// cache hit implies the same secret and skips the argon2 derivation.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, raw string) (*domain.Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, domain.ErrCredentialsMissing
	}

	keyID, secret, ok := domain.SplitAPIKey(raw)
	if !ok {
		return nil, domain.ErrAPIKeyInvalid.WithDetails("expected <key_id>:<secret>")
	}

	cacheKey := token.Hash(keyID + ":" + secret)
	if p := s.cache.Get(cacheKey); p != nil {
		return p, nil
	}

	ctx, span := s.tracer.Start(ctx, "auth.AuthenticateAPIKey",
		trace.WithAttributes(attribute.String("apikey.id", keyID)))
	defer span.End()

	if s.keys == nil {
		return nil, domain.ErrAPIKeyInvalid
	}

	key, err := s.keys.FindAPIKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAPIKeyInvalid
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	if !key.Enabled {
		return nil, domain.ErrAPIKeyInvalid.WithDetails("api key disabled")
	}
	if !domain.VerifySecret(secret, key.SecretHash) {
		return nil, domain.ErrAPIKeyInvalid
	}

	subject := key.Subject
	if subject == "" {
		subject = key.KeyID
	}
	p := &domain.Principal{
		Subject:  subject,
		Username: key.Name,
		Roles:    append([]string(nil), key.Roles...),
		Method:   domain.AuthMethodAPIKey,
		TokenID:  key.KeyID,
	}
	s.cache.Set(cacheKey, key.KeyID, p)
	return p, nil
}

// Authorize checks that p holds at least one of roles. Admins pass every check.
func (s *AuthService) Authorize(p *domain.Principal, roles ...string) error {
	if p == nil {
		return domain.ErrCredentialsMissing
	}
	if !p.HasAnyRole(roles...) {
		return domain.ErrInsufficientScope.WithDetails(
			"requires one of roles: " + strings.Join(roles, ", "))
	}
	return nil
}

// PeekAPIKey returns the principal of an already validated raw credential
// without consulting the directory or deriving a hash, or nil.
func (s *AuthService) PeekAPIKey(raw string) *domain.Principal {
	keyID, secret, ok := domain.SplitAPIKey(raw)
	if !ok {
		return nil
	}
	return s.cache.Get(token.Hash(keyID + ":" + secret))
}

// InvalidateAPIKey drops cached validations of keyID.
func (s *AuthService) InvalidateAPIKey(keyID string) int {
	return s.cache.DeleteKeyID(keyID)
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrLoginThrottled):
		return "throttled"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid"
	case errors.Is(err, domain.ErrUserInactive):
		return "inactive"
	case errors.Is(err, domain.ErrMissingArgument):
		return "bad_request"
	default:
		return "error"
	}
}

// GenerateAPIKey creates a new API key credential. The returned raw value
// "<key_id>:<secret>" is the only place the plaintext secret appears.
func GenerateAPIKey(name, subject string, roles []string) (raw string, key *domain.APIKey, err error) {
	secret, err := token.Generate()
	if err != nil {
		return "", nil, domain.ErrInternalServer.WithCause(err)
	}
	hash, err := domain.HashSecret(secret)
	if err != nil {
		return "", nil, domain.ErrInternalServer.WithCause(err)
	}

	keyID := domain.APIKeyIDPrefix + strings.ToLower(ulid.Make().String())
	key = &domain.APIKey{
		KeyID:      keyID,
		Name:       name,
		SecretHash: hash,
		Subject:    subject,
		Roles:      append([]string(nil), roles...),
		Enabled:    true,
	}
	return keyID + ":" + secret, key, nil
}

// ============================================================================
// APIKeyCache - LRU Cache for API Key Validation
// ============================================================================

// APIKeyCache implements an LRU cache with TTL for validated API keys.
type APIKeyCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // LRU order, front = most recently used
	capacity int
	ttl      time.Duration
	clock    clock.Clock
}

type cacheEntry struct {
	cacheKey  string
	keyID     string
	principal *domain.Principal
	expiresAt time.Time
}

// NewAPIKeyCache creates a new APIKeyCache with LRU eviction.
func NewAPIKeyCache(capacity int, ttl time.Duration, clk clock.Clock) *APIKeyCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &APIKeyCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		clock:    clock.OrReal(clk),
	}
}

// Get returns the cached principal for cacheKey if not expired, moving it
// to the front of the LRU order.
func (c *APIKeyCache) Get(cacheKey string) *domain.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[cacheKey]
	if !exists {
		return nil
	}

	entry := elem.Value.(*cacheEntry)
	if !c.clock.Now().Before(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, cacheKey)
		return nil
	}

	c.order.MoveToFront(elem)
	return entry.principal
}

// Set caches a principal, evicting the least recently used entry at capacity.
func (c *APIKeyCache) Set(cacheKey, keyID string, p *domain.Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)

	if elem, exists := c.items[cacheKey]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.principal = p
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		delete(c.items, oldest.Value.(*cacheEntry).cacheKey)
		c.order.Remove(oldest)
	}

	c.items[cacheKey] = c.order.PushFront(&cacheEntry{
		cacheKey:  cacheKey,
		keyID:     keyID,
		principal: p,
		expiresAt: expiresAt,
	})
}

// DeleteKeyID removes every entry for keyID and returns how many were dropped.
func (c *APIKeyCache) DeleteKeyID(keyID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*cacheEntry)
		if entry.keyID == keyID {
			c.order.Remove(e)
			delete(c.items, entry.cacheKey)
			removed++
		}
		e = next
	}
	return removed
}

// Clear removes all entries from the cache.
func (c *APIKeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the current number of items in the cache.
func (c *APIKeyCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ============================================================================
// RateLimiterRegistry - token buckets for login throttling
// ============================================================================

// RateLimiterRegistry keeps one token bucket per key, bounded in size.
// Buckets idle long enough to have refilled are dropped, and the least
// recently used bucket is evicted at capacity.
type RateLimiterRegistry struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	limit    rate.Limit
	burst    int
	idle     time.Duration
	clock    clock.Clock
}

type limiterEntry struct {
	key      string
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewRateLimiterRegistry creates a registry of at most capacity buckets,
// each refilling at limit up to burst.
func NewRateLimiterRegistry(capacity int, limit rate.Limit, burst int, clk clock.Clock) *RateLimiterRegistry {
	if capacity <= 0 {
		capacity = 10000
	}
	if burst <= 0 {
		burst = 1
	}
	idle := time.Minute
	if limit > 0 && limit != rate.Inf {
		idle = time.Duration(float64(burst) / float64(limit) * float64(time.Second))
	}
	return &RateLimiterRegistry{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		limit:    limit,
		burst:    burst,
		idle:     idle,
		clock:    clock.OrReal(clk),
	}
}

// Allowed reports whether key has a token left without spending it.
func (r *RateLimiterRegistry) Allowed(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.items[key]
	if !ok {
		return true
	}
	return elem.Value.(*limiterEntry).limiter.TokensAt(r.clock.Now()) >= 1
}

// Charge spends one token of key, creating its bucket if needed. It
// reports whether a token was available.
func (r *RateLimiterRegistry) Charge(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	elem, ok := r.items[key]
	if !ok {
		r.sweep(now)
		elem = r.order.PushFront(&limiterEntry{key: key, limiter: rate.NewLimiter(r.limit, r.burst)})
		r.items[key] = elem
	} else {
		r.order.MoveToFront(elem)
	}
	e := elem.Value.(*limiterEntry)
	e.lastUsed = now
	return e.limiter.AllowN(now, 1)
}

// sweep drops refilled buckets from the idle end, then evicts the least
// recently used until there is room for one more.
func (r *RateLimiterRegistry) sweep(now time.Time) {
	for back := r.order.Back(); back != nil; back = r.order.Back() {
		e := back.Value.(*limiterEntry)
		if len(r.items) < r.capacity && now.Sub(e.lastUsed) < r.idle {
			return
		}
		delete(r.items, e.key)
		r.order.Remove(back)
	}
}

// Delete removes the bucket for key.
func (r *RateLimiterRegistry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.items[key]; ok {
		r.order.Remove(elem)
		delete(r.items, key)
	}
}

// Len returns the number of tracked keys.
func (r *RateLimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
