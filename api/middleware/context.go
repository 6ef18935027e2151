package middleware

import (
	"context"

	"github.com/velourastyle/storefront-gateway/internal/identity"
)

type contextKey string

const ctxSession contextKey = "session"

// SessionFromContext returns the authenticated customer session, if any.
func SessionFromContext(ctx context.Context) (identity.Session, bool) {
	if ctx == nil {
		return identity.Session{}, false
	}
	if session, ok := ctx.Value(ctxSession).(identity.Session); ok {
		return session, true
	}
	return identity.Session{}, false
}

// WithSession injects the customer session for downstream handlers.
func WithSession(ctx context.Context, session identity.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, session)
}
