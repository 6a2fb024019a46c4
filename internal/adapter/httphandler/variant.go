package httphandler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
)

// GET v1/variants/options?brand=&model=&color=&frame=&version=&type=
// GET v1/variants/resolve?brand=&model=&color=&frame=&version=&type=

type VariantHandler struct {
	resolver port.VariantResolver
}

func RegisterVariants(mux *http.ServeMux, resolver port.VariantResolver) {
	h := VariantHandler{resolver}
	mux.HandleFunc("GET /v1/variants/options", h.GetOptions)
	mux.HandleFunc("GET /v1/variants/resolve", h.GetResolve)
}

func (h VariantHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	const op = "VariantHandler.GetOptions"
	log := slog.With("op", op)

	q := r.URL.Query()
	opts, err := h.resolver.VariantOptions(
		r.Context(), q.Get("brand"), q.Get("model"), selectionFromQuery(q),
	)
	if err != nil {
		writeError(w, log, err, "failed to read options", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, variantOptionsFromDomain(opts))
}

func (h VariantHandler) GetResolve(w http.ResponseWriter, r *http.Request) {
	const op = "VariantHandler.GetResolve"
	log := slog.With("op", op)

	q := r.URL.Query()
	res, err := h.resolver.ResolveVariant(
		r.Context(), q.Get("brand"), q.Get("model"), selectionFromQuery(q),
	)
	if err != nil {
		writeError(w, log, err, "failed to resolve variant", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, resolutionFromQuote(res))
}

// selectionFromQuery reads attribute keys by name. Empty values are unselected.
func selectionFromQuery(q url.Values) domain.Selection {
	sel := make(domain.Selection)
	for _, k := range domain.AttributeKeys {
		if v := q.Get(k.String()); v != "" {
			sel[k] = v
		}
	}
	return sel
}
