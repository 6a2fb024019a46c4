package httphandler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/port"
)

type CartHandler struct {
	manager port.CartManager
}

func RegisterCarts(mux *http.ServeMux, manager port.CartManager) {
	h := CartHandler{manager}
	mux.HandleFunc("POST /v1/carts", h.PostCart)
	mux.HandleFunc("GET /v1/carts/{id}", h.GetCart)
	mux.HandleFunc("PUT /v1/carts/{id}/items", h.PutItem)
	mux.HandleFunc("DELETE /v1/carts/{id}/items/{record_id}/{service}", h.DeleteItem)
}

func (h CartHandler) PostCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.PostCart"
	log := slog.With("op", op)

	cart, err := h.manager.CreateCart(r.Context())
	if err != nil {
		writeError(w, log, err, "failed to create cart", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusCreated, cartFromDomain(cart))
}

func (h CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.GetCart"
	log := slog.With("op", op)

	cart, err := h.manager.Cart(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, log, err, "failed to read cart", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, cartFromDomain(cart))
}

func (h CartHandler) PutItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.PutItem"
	log := slog.With("op", op)

	var item PutCartItem
	err := json.NewDecoder(r.Body).Decode(&item)
	if err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	key, err := cartItemKey(item.RecordID, item.Service)
	if err != nil {
		writeError(w, log, err, "", http.StatusBadRequest)
		return
	}

	cart, err := h.manager.PutCartItem(
		r.Context(), r.PathValue("id"), key, item.Quantity,
	)
	if err != nil {
		writeError(w, log, err, "failed to put cart item", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, cartFromDomain(cart))
}

func (h CartHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.DeleteItem"
	log := slog.With("op", op)

	key, err := cartItemKey(r.PathValue("record_id"), r.PathValue("service"))
	if err != nil {
		writeError(w, log, err, "", http.StatusBadRequest)
		return
	}

	cart, err := h.manager.RemoveCartItem(r.Context(), r.PathValue("id"), key)
	if err != nil {
		writeError(w, log, err, "failed to remove cart item", http.StatusInternalServerError)
		return
	}
	writeJSON(w, log, http.StatusOK, cartFromDomain(cart))
}

func cartItemKey(recordID, service string) (domain.CartItemKey, error) {
	k, ok := domain.ParsePriceKey(service)
	if !ok {
		return domain.CartItemKey{}, fmt.Errorf(
			"%w: unknown service %q", domain.ErrInvalidArgument, service,
		)
	}
	return domain.CartItemKey{RecordID: recordID, Service: k}, nil
}
