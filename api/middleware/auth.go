package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/velourastyle/storefront-gateway/api/responses"
	"github.com/velourastyle/storefront-gateway/internal/identity"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

// SessionResolver turns a bearer token into a customer session.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionToken string) (*identity.Session, error)
}

// Auth validates a bearer token and seeds the request context with the session.
func Auth(resolver SessionResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}

			token := raw
			lower := strings.ToLower(raw)
			switch {
			case lower == "bearer":
				token = ""
			case strings.HasPrefix(lower, "bearer "):
				token = strings.TrimSpace(raw[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}

			session, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if session == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid session"))
				return
			}

			ctx := WithSession(r.Context(), *session)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, session.CustomerID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
