package middleware

import (
	"context"
	"net/http"

	"github.com/ovenlight/pizzeria-backend/api/responses"
	"github.com/ovenlight/pizzeria-backend/api/validators"
	"github.com/ovenlight/pizzeria-backend/internal/tokens"
	pkgerrors "github.com/ovenlight/pizzeria-backend/pkg/errors"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
)

type tokenResolver interface {
	Resolve(ctx context.Context, tokenID string) (*tokens.Token, error)
}

// Auth validates the bearer token and seeds the request context with the
// account email it belongs to.
func Auth(resolver tokenResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := validators.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			resolved, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithUserEmail(r.Context(), resolved.Email)
			if logg != nil {
				ctx = logg.WithUserEmail(ctx, resolved.Email)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
