package httpapi

import (
	"context"

	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/auth"
)

type authContextKey string

const principalKey authContextKey = "principal"

func withPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey, p)
}

func principalFromContext(ctx context.Context) *auth.Principal {
	val := ctx.Value(principalKey)
	if v, ok := val.(*auth.Principal); ok {
		return v
	}
	return nil
}
