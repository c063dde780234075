package domain

import (
	"testing"
	"time"
)

func TestParseTokenType(t *testing.T) {
	tests := []struct {
		in     string
		want   TokenType
		wantOK bool
	}{
		{"access", TokenTypeAccess, true},
		{"refresh", TokenTypeRefresh, true},
		{"ACCESS", TokenType("ACCESS"), false},
		{"", TokenType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTokenType(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseTokenType(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPrincipal_HasAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		p        *Principal
		required []string
		want     bool
	}{
		{"no requirement", &Principal{}, nil, true},
		{"nil principal", nil, []string{RoleUser}, false},
		{"matching role", &Principal{Roles: []string{"analyst"}}, []string{"trader", "analyst"}, true},
		{"no matching role", &Principal{Roles: []string{RoleUser}}, []string{RoleService}, false},
		{"admin bypass", &Principal{Roles: []string{RoleAdmin}}, []string{RoleService}, true},
		{"empty roles", &Principal{}, []string{RoleUser}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.HasAnyRole(tt.required...); got != tt.want {
				t.Errorf("HasAnyRole(%v) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}

func TestPrincipalFromClaims(t *testing.T) {
	exp := time.Unix(1_700_001_800, 0)
	claims := &Claims{
		Subject:   "u-42",
		Username:  "ada",
		Roles:     []string{RoleUser},
		Type:      TokenTypeAccess,
		TokenID:   "jti-1",
		ExpiresAt: exp,
	}

	p := PrincipalFromClaims(claims)
	if p.Subject != "u-42" || p.Username != "ada" || p.TokenID != "jti-1" {
		t.Errorf("PrincipalFromClaims() = %+v", p)
	}
	if p.Method != AuthMethodBearer {
		t.Errorf("Method = %q, want %q", p.Method, AuthMethodBearer)
	}
	if !p.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", p.ExpiresAt, exp)
	}

	// Roles must not alias the claims slice.
	p.Roles[0] = RoleAdmin
	if claims.Roles[0] != RoleUser {
		t.Error("PrincipalFromClaims should copy roles")
	}
}
