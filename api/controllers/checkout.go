package controllers

import (
	"net/http"

	"github.com/velourastyle/storefront-gateway/api/middleware"
	"github.com/velourastyle/storefront-gateway/api/responses"
	"github.com/velourastyle/storefront-gateway/api/validators"
	"github.com/velourastyle/storefront-gateway/internal/orders"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

// Checkout charges the synced cart and creates the order. The cart survives
// every failure path so the customer can retry.
func Checkout(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		var input orders.CheckoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), session, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
