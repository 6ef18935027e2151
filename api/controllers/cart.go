package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velourastyle/storefront-gateway/api/middleware"
	"github.com/velourastyle/storefront-gateway/api/responses"
	"github.com/velourastyle/storefront-gateway/api/validators"
	"github.com/velourastyle/storefront-gateway/internal/cart"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type applyCodeRequest struct {
	Code string `json:"code"`
}

func GetCart(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		view, err := engine.Get(r.Context(), session.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func UpsertCartLine(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		var input cart.LineInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := engine.UpsertLine(r.Context(), session.CustomerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func SetCartQuantity(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		key := chi.URLParam(r, "key")
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line key is required"))
			return
		}

		var req setQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := engine.SetQuantity(r.Context(), session.CustomerID, key, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func RemoveCartLine(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		key := chi.URLParam(r, "key")
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line key is required"))
			return
		}

		view, err := engine.RemoveLine(r.Context(), session.CustomerID, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func ClearCart(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		view, err := engine.Clear(r.Context(), session.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// SyncCart forces a reconciliation pass and, unlike the mutation endpoints,
// surfaces the reconciliation error instead of a stale view.
func SyncCart(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		view, err := engine.Sync(r.Context(), session.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func ApplyDiscountCode(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		var req applyCodeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := engine.ApplyCode(r.Context(), session.CustomerID, req.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

func RemoveDiscountCode(engine *cart.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session"))
			return
		}

		view, err := engine.RemoveCode(r.Context(), session.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}
