package handlers

import (
	"net/http"

	"github.com/guildpoints/points-ledger/internal/repo"
)

type HealthHandler struct {
	store repo.Store
}

func NewHealthHandler(store repo.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		http.Error(w,
			http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
