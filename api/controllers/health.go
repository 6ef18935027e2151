package controllers

import (
	"context"
	"net/http"

	"github.com/velourastyle/storefront-gateway/api/responses"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// HealthReady reports readiness. The shared store is the only hard runtime
// dependency that can fail independently of the process itself.
func HealthReady(shared pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if shared != nil {
			if err := shared.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shared store unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
