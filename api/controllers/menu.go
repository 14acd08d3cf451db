package controllers

import (
	"net/http"

	"github.com/ovenlight/pizzeria-backend/api/responses"
	"github.com/ovenlight/pizzeria-backend/internal/catalog"
)

// MenuList returns the full pizza catalog.
func MenuList(menu *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, menu.All())
	}
}
