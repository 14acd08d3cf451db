package controllers

import (
	"net/http"

	"github.com/ovenlight/pizzeria-backend/api/middleware"
	"github.com/ovenlight/pizzeria-backend/api/responses"
	"github.com/ovenlight/pizzeria-backend/api/validators"
	cartsvc "github.com/ovenlight/pizzeria-backend/internal/cart"
	pkgerrors "github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
)

type cartSetRequest struct {
	Items map[string]int `json:"items" validate:"required,min=1"`
}

// CartSet replaces the caller's cart with the supplied items.
func CartSet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var body cartSetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		view, err := svc.SetItems(r.Context(), email, body.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// CartGet returns the caller's cart enriched with catalog data.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		view, err := svc.Get(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// CartClear empties the caller's cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		if err := svc.Clear(r.Context(), email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
