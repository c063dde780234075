package handler

import (
	"context"

	"github.com/yndnr/stockgate/internal/core/domain"
)

type (
	principalKey  struct{}
	clientAddrKey struct{}
)

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey{}).(*domain.Principal)
	return p
}

// WithClientAddr returns a context carrying the resolved client address.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddrKey{}, addr)
}

// ClientAddrFromContext returns the resolved client address, or "".
func ClientAddrFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddrKey{}).(string)
	return addr
}
