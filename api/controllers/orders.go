package controllers

import (
	"net/http"

	"github.com/ovenlight/pizzeria-backend/api/middleware"
	"github.com/ovenlight/pizzeria-backend/api/responses"
	"github.com/ovenlight/pizzeria-backend/api/validators"
	ordersvc "github.com/ovenlight/pizzeria-backend/internal/orders"
	pkgerrors "github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
)

type orderPlaceRequest struct {
	Card ordersvc.CardInput `json:"card" validate:"required"`
}

type orderUpdateRequest struct {
	Date      int64  `json:"date" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=active done cancelled"`
	PayStatus string `json:"payStatus" validate:"required,oneof=unpaid paid"`
}

// OrderPlace charges the caller's cart and creates an order.
func OrderPlace(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var body orderPlaceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		view, err := svc.PlaceOrder(r.Context(), email, body.Card)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// OrderList returns the caller's orders, or a single order when a date
// query parameter is supplied.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		email := middleware.UserEmailFromContext(r.Context())

		if r.URL.Query().Get("date") != "" {
			date, err := validators.RequireQueryInt64(r, "date")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			view, err := svc.GetOrder(r.Context(), email, date)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, view)
			return
		}

		views, err := svc.ListOrders(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, views)
	}
}

// OrderUpdate overwrites the status fields of one of the caller's orders.
func OrderUpdate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var body orderUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		view, err := svc.UpdateOrder(r.Context(), email, body.Date, ordersvc.Status(body.Status), ordersvc.PayStatus(body.PayStatus))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// OrderCancel marks one of the caller's orders as cancelled.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		date, err := validators.RequireQueryInt64(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		view, err := svc.CancelOrder(r.Context(), email, date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}
