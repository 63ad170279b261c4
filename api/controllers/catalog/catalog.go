package catalog

import (
	"net/http"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	internalcatalog "github.com/angelmondragon/pos-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const maxQueryLength = 128

// Lookup resolves a scanned code to a sellable item.
func Lookup(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		code := validators.QueryString(r, "code", maxQueryLength)
		item, err := svc.Lookup(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item.DTO())
	}
}

// Search matches products by name or barcode prefix for the register search box.
func Search(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", internalcatalog.DefaultSearchLimit, 1, internalcatalog.MaxSearchLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := validators.QueryString(r, "q", maxQueryLength)

		items, err := svc.Search(r.Context(), query, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]internalcatalog.ItemDTO, 0, len(items))
		for _, item := range items {
			out = append(out, item.DTO())
		}
		responses.WriteSuccess(w, map[string]any{"items": out})
	}
}
