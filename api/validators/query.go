package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/ovenlight/pizzeria-backend/pkg/errors"
)

// RequireQuery returns the trimmed query value, VALIDATION when absent.
func RequireQuery(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter is required").
			WithDetails(map[string]any{"field": key})
	}
	return raw, nil
}

// RequireQueryInt64 parses a required numeric query parameter. Order lookups
// use it for the millisecond timestamp.
func RequireQueryInt64(r *http.Request, key string) (int64, error) {
	raw, err := RequireQuery(r, key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").
			WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
