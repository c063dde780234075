package service

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/infra/clock"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "stockgate"
)

// TokenConfig holds the immutable signing settings of a TokenService.
type TokenConfig struct {
	// Secret is the HMAC-SHA256 signing key shared by every instance.
	Secret []byte

	// Issuer is written to and required in the iss claim. Empty disables the check.
	Issuer string

	// AccessTTL is the lifetime of access tokens.
	AccessTTL time.Duration

	// RefreshTTL is the lifetime of refresh tokens.
	RefreshTTL time.Duration
}

// DefaultTokenConfig returns the default lifetimes without a secret.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		Issuer:     DefaultIssuer,
		AccessTTL:  DefaultAccessTTL,
		RefreshTTL: DefaultRefreshTTL,
	}
}

// TokenService mints and verifies signed access and refresh tokens.
// It keeps no per-token state and is safe for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration

	clock    clock.Clock
	recorder Recorder
	newID    func() string
	parser   *jwt.Parser
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock sets the time source used for iat/exp and expiry checks.
func WithTokenClock(c clock.Clock) TokenOption {
	return func(s *TokenService) { s.clock = c }
}

// WithTokenRecorder sets the metrics recorder.
func WithTokenRecorder(r Recorder) TokenOption {
	return func(s *TokenService) { s.recorder = r }
}

// WithTokenIDGenerator overrides the jti generator.
func WithTokenIDGenerator(fn func() string) TokenOption {
	return func(s *TokenService) { s.newID = fn }
}

// NewTokenService creates a TokenService. It fails with ErrConfiguration when
// the secret is empty or a lifetime is not positive.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, domain.ErrConfiguration.WithDetails("token signing secret is empty")
	}
	if cfg.AccessTTL <= 0 {
		return nil, domain.ErrConfiguration.WithDetails("access token ttl must be positive")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, domain.ErrConfiguration.WithDetails("refresh token ttl must be positive")
	}

	s := &TokenService{
		secret:     slices.Clone(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.OrReal(s.clock)
	s.recorder = orNop(s.recorder)

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)

	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// tokenClaims is the wire form of a token payload.
type tokenClaims struct {
	jwt.RegisteredClaims
	Type     domain.TokenType `json:"token_type"`
	Username string           `json:"username,omitempty"`
	Roles    []string         `json:"roles"`
}

var (
	errMissingSubject = errors.New("token has no subject")
	errUnknownType    = errors.New("token has an unknown type")
)

// Validate implements jwt.ClaimsValidator. It runs after the registered
// claims (exp, iss) have been checked.
func (c *tokenClaims) Validate() error {
	if c.Subject == "" {
		return errMissingSubject
	}
	if !c.Type.Valid() {
		return errUnknownType
	}
	return nil
}

func (c *tokenClaims) toDomain() *domain.Claims {
	out := &domain.Claims{
		Subject:  c.Subject,
		Username: c.Username,
		Roles:    slices.Clone(c.Roles),
		Type:     c.Type,
		TokenID:  c.ID,
		Issuer:   c.Issuer,
	}
	if out.Roles == nil {
		out.Roles = []string{}
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// IssueOption adds optional claims at issue time.
type IssueOption func(*tokenClaims)

// WithUsername embeds the human-readable username.
func WithUsername(name string) IssueOption {
	return func(c *tokenClaims) { c.Username = name }
}

// Issue mints an access token and a refresh token for userID with the given roles.
func (s *TokenService) Issue(userID string, roles []string, opts ...IssueOption) (*domain.TokenPair, error) {
	if userID == "" {
		s.recorder.TokenOperation("issue", "error")
		return nil, domain.ErrMissingArgument.WithDetails("user id")
	}

	base := tokenClaims{Roles: slices.Clone(roles)}
	if base.Roles == nil {
		base.Roles = []string{}
	}
	base.Subject = userID
	for _, opt := range opts {
		opt(&base)
	}

	now := s.clock.Now()

	access, accessExp, err := s.sign(base, domain.TokenTypeAccess, now)
	if err != nil {
		s.recorder.TokenOperation("issue", "error")
		return nil, err
	}
	refresh, refreshExp, err := s.sign(base, domain.TokenTypeRefresh, now)
	if err != nil {
		s.recorder.TokenOperation("issue", "error")
		return nil, err
	}

	s.recorder.TokenOperation("issue", "ok")
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks signature, expiry and type of token and returns its claims.
//
// Errors: ErrTokenInvalid for a bad signature, malformed payload, foreign
// algorithm or issuer; ErrTokenExpired once now >= exp; ErrWrongTokenType
// when the type tag differs from expected.
func (s *TokenService) Verify(token string, expected domain.TokenType) (*domain.Claims, error) {
	claims, err := s.verify(token, expected)
	s.recorder.TokenOperation("verify", resultOf(err))
	if err != nil {
		return nil, err
	}
	return claims.toDomain(), nil
}

// Refresh verifies a refresh token and mints a new access token for the same
// subject, username and roles. The refresh token itself stays valid until it
// expires: there is no revocation list.
func (s *TokenService) Refresh(refreshToken string) (*domain.AccessToken, error) {
	claims, err := s.verify(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		s.recorder.TokenOperation("refresh", resultOf(err))
		return nil, err
	}

	next := tokenClaims{
		Username: claims.Username,
		Roles:    claims.Roles,
	}
	next.Subject = claims.Subject

	token, exp, err := s.sign(next, domain.TokenTypeAccess, s.clock.Now())
	if err != nil {
		s.recorder.TokenOperation("refresh", "error")
		return nil, err
	}

	s.recorder.TokenOperation("refresh", "ok")
	return &domain.AccessToken{Token: token, ExpiresAt: exp}, nil
}

func (s *TokenService) verify(token string, expected domain.TokenType) (*tokenClaims, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid.WithDetails("empty token")
	}

	claims := &tokenClaims{}
	if _, err := s.parser.ParseWithClaims(token, claims, s.keyFunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired.WithCause(err)
		}
		return nil, domain.ErrTokenInvalid.WithCause(err)
	}

	if claims.Type != expected {
		return nil, domain.ErrWrongTokenType.WithDetails(
			fmt.Sprintf("got %s token, want %s", claims.Type, expected))
	}
	return claims, nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.secret, nil
}

func (s *TokenService) sign(c tokenClaims, typ domain.TokenType, now time.Time) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, domain.ErrConfiguration.WithDetails("token signing secret is empty")
	}

	ttl := s.accessTTL
	if typ == domain.TokenTypeRefresh {
		ttl = s.refreshTTL
	}

	c.Type = typ
	c.ID = s.newID()
	c.Issuer = s.issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, domain.ErrInternalServer.WithCause(err)
	}
	return signed, c.ExpiresAt.Time, nil
}

// resultOf maps a token error to a metric label.
func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrWrongTokenType):
		return "wrong_type"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}
