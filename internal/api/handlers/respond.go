// Package handlers contains the HTTP handlers, grouped the way the router
// mounts them: public points endpoints, the admin surface and the email
// submission workflow.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/guildpoints/points-ledger/internal/model"
	"github.com/guildpoints/points-ledger/internal/serviceerrs"
)

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, body any) {
	w.Header().Set(model.HeaderContentType, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogAttrs(context.Background(),
			slog.LevelError,
			"failed to encode response",
			slog.Any(model.KeyLoggerError, err),
		)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, serviceerrs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, serviceerrs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
