package controllers

import (
	"net/http"
	"strings"

	"github.com/ovenlight/pizzeria-backend/api/middleware"
	"github.com/ovenlight/pizzeria-backend/api/responses"
	"github.com/ovenlight/pizzeria-backend/api/validators"
	"github.com/ovenlight/pizzeria-backend/internal/users"
	pkgerrors "github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Address  string `json:"address" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type userUpdateRequest struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

// UserSignup registers a new account.
func UserSignup(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var body signupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Signup(r.Context(), users.SignupInput{
			Name:     body.Name,
			Email:    body.Email,
			Address:  body.Address,
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}

// UserGet returns the profile for the requested email. The email must match
// the authenticated account.
func UserGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		email, err := requestedEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}

// UserUpdate applies partial profile changes to the authenticated account.
func UserUpdate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var body userUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		profile, err := svc.Update(r.Context(), email, users.UpdateInput{
			Name:     body.Name,
			Address:  body.Address,
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}

// UserDelete removes the requested account and its issued tokens.
func UserDelete(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		email, err := requestedEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// requestedEmail reads the email query parameter and checks it against the
// authenticated account.
func requestedEmail(r *http.Request) (string, error) {
	email, err := validators.RequireQuery(r, "email")
	if err != nil {
		return "", err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if authed := middleware.UserEmailFromContext(r.Context()); authed != "" && authed != email {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "email does not match the authenticated account")
	}
	return email, nil
}
