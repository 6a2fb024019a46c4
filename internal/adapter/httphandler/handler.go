package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
)

// POST v1/records JSON [Record] (response 202 Accepted, 400 Bad request)
// POST v1/filter/records JSON {"record_id" string, "blocked" bool} (response 200 OK, 400 Bad request)
// GET v1/filter/records/{record_id} (response 200 OK, 400 Bad request)

type RecordsHandler struct {
	rSender port.RecordsSender
}

func RegisterRecords(mux *http.ServeMux, rSender port.RecordsSender) {
	h := RecordsHandler{rSender}
	mux.HandleFunc("POST /v1/records", h.PostRecords)
}

func (h RecordsHandler) PostRecords(w http.ResponseWriter, r *http.Request) {
	const op = "RecordsHandler.PostRecords"
	log := slog.With("op", op)

	var rs []Record
	err := json.NewDecoder(r.Body).Decode(&rs)
	if err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	vs := make([]domain.Record, 0, len(rs))
	for _, rec := range rs {
		vs = append(vs, rec.toDomain(log))
	}

	err = h.rSender.SendRecords(r.Context(), vs)
	if err != nil {
		writeError(w, log, err, "failed to accept records", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	if _, err = w.Write([]byte("Accepted")); err != nil {
		log.Error("failed to write response body", "err", err)
		return
	}

	log.Info("accepted", "nRecords", len(vs))
}

type FilterHandler struct {
	bSetter port.RecordBlockSetter
	bGetter port.RecordBlockGetter
}

func RegisterFilter(
	mux *http.ServeMux,
	bSetter port.RecordBlockSetter,
	bGetter port.RecordBlockGetter,
) {
	h := FilterHandler{bSetter, bGetter}
	mux.HandleFunc("POST /v1/filter/records", h.PostBlock)
	mux.HandleFunc("GET /v1/filter/records/{record_id}", h.GetBlock)
}

func (h FilterHandler) PostBlock(w http.ResponseWriter, r *http.Request) {
	const op = "FilterHandler.PostBlock"
	log := slog.With("op", op)

	var b RecordBlock
	err := json.NewDecoder(r.Body).Decode(&b)
	if err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	v := domain.RecordBlock{RecordID: b.RecordID, Blocked: b.Blocked}
	err = h.bSetter.SetBlock(r.Context(), v)
	if err != nil {
		writeError(w, log, err, "failed to set block", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, log, http.StatusOK, b)
	log.Info("block is set", "recordID", b.RecordID, "blocked", b.Blocked)
}

func (h FilterHandler) GetBlock(w http.ResponseWriter, r *http.Request) {
	const op = "FilterHandler.GetBlock"
	log := slog.With("op", op)

	v, err := h.bGetter.BlockStatus(r.Context(), r.PathValue("record_id"))
	if err != nil {
		writeError(w, log, err, "failed to read block", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, log, http.StatusOK, RecordBlock{
		RecordID: v.RecordID,
		Blocked:  v.Blocked,
	})
}

// writeError maps domain errors to status codes,
// other errors are answered with fallback status.
func writeError(
	w http.ResponseWriter, log *slog.Logger, err error, msg string, fallback int,
) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Warn("invalid argument", "err", err)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		log.Debug("not found", "err", err)
	case errors.Is(err, domain.ErrNotQuotable):
		http.Error(w, "service is not quotable", http.StatusUnprocessableEntity)
		log.Warn("not quotable", "err", err)
	case errors.Is(err, context.Canceled):
		log.Debug("request is canceled", "err", err)
	default:
		http.Error(w, msg, fallback)
		log.Error(msg, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response body", "err", err)
	}
}
