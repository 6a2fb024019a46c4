package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/niksmo/repair-shop/internal/core/port"
)

type CatalogHandler struct {
	reader port.CatalogReader
}

func RegisterCatalog(mux *http.ServeMux, reader port.CatalogReader) {
	h := CatalogHandler{reader}
	mux.HandleFunc("GET /v1/brands", h.GetBrands)
	mux.HandleFunc("GET /v1/brands/{brand}/models", h.GetModels)
	mux.HandleFunc("GET /v1/records", h.GetRecords)
	mux.HandleFunc("GET /v1/records/search", h.SearchRecords)
}

func (h CatalogHandler) GetBrands(w http.ResponseWriter, r *http.Request) {
	const op = "CatalogHandler.GetBrands"
	log := slog.With("op", op)

	brands, err := h.reader.Brands(r.Context())
	if err != nil {
		writeError(w, log, err, "failed to read brands", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, brands)
}

func (h CatalogHandler) GetModels(w http.ResponseWriter, r *http.Request) {
	const op = "CatalogHandler.GetModels"
	log := slog.With("op", op)

	models, err := h.reader.Models(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, log, err, "failed to read models", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, models)
}

func (h CatalogHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	const op = "CatalogHandler.GetRecords"
	log := slog.With("op", op)

	q := r.URL.Query()
	records, err := h.reader.Records(r.Context(), q.Get("brand"), q.Get("model"))
	if err != nil {
		writeError(w, log, err, "failed to read records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, recordsFromDomain(records))
}

func (h CatalogHandler) SearchRecords(w http.ResponseWriter, r *http.Request) {
	const op = "CatalogHandler.SearchRecords"
	log := slog.With("op", op)

	records, err := h.reader.SearchRecords(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, log, err, "failed to search records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, recordsFromDomain(records))
}
