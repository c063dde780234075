package domain

import (
	"slices"
	"time"
)

// TokenType tags a signed token with the only purpose it may be used for.
type TokenType string

const (
	// TokenTypeAccess authorizes API calls.
	TokenTypeAccess TokenType = "access"

	// TokenTypeRefresh can only be exchanged for a new access token.
	TokenTypeRefresh TokenType = "refresh"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// ParseTokenType converts a string to a TokenType.
func ParseTokenType(s string) (TokenType, bool) {
	t := TokenType(s)
	return t, t.Valid()
}

// Claims is the decoded payload of a verified token.
type Claims struct {
	Subject   string    `json:"sub"`
	Username  string    `json:"username,omitempty"`
	Roles     []string  `json:"roles"`
	Type      TokenType `json:"token_type"`
	TokenID   string    `json:"jti"`
	Issuer    string    `json:"iss,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenPair is returned at login: a short-lived access token and a long-lived
// refresh token for the same subject.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccessToken is a freshly minted access token.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Well-known roles.
const (
	// RoleAdmin satisfies every role requirement.
	RoleAdmin = "admin"

	// RoleService is held by backend callers allowed to introspect tokens.
	RoleService = "service"

	// RoleUser is the default role of interactive accounts.
	RoleUser = "user"
)

// AuthMethod records how a principal proved its identity.
type AuthMethod string

const (
	AuthMethodBearer AuthMethod = "bearer"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	Subject  string     `json:"user_id"`
	Username string     `json:"username,omitempty"`
	Roles    []string   `json:"roles"`
	Method   AuthMethod `json:"auth_method"`
	// TokenID is the jti of the bearer token, or the key id for API keys.
	TokenID   string    `json:"token_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// HasAnyRole reports whether p holds at least one of required.
// Admins hold every role; an empty requirement is always satisfied.
func (p *Principal) HasAnyRole(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if p == nil {
		return false
	}
	if slices.Contains(p.Roles, RoleAdmin) {
		return true
	}
	for _, r := range required {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// PrincipalFromClaims builds a bearer principal from verified access claims.
func PrincipalFromClaims(c *Claims) *Principal {
	return &Principal{
		Subject:   c.Subject,
		Username:  c.Username,
		Roles:     slices.Clone(c.Roles),
		Method:    AuthMethodBearer,
		TokenID:   c.TokenID,
		ExpiresAt: c.ExpiresAt,
	}
}
