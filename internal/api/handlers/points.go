package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guildpoints/points-ledger/internal/api/dto"
	"github.com/guildpoints/points-ledger/internal/ledger"
	"github.com/guildpoints/points-ledger/internal/model"
)

type PointsHandler struct {
	ledger *ledger.Service
	log    *slog.Logger
}

func NewPointsHandler(ledger *ledger.Service, log *slog.Logger) *PointsHandler {
	return &PointsHandler{
		ledger: ledger,
		log:    log,
	}
}

func (h *PointsHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.ledger.Leaderboard(r.Context(), queryLimit(r))
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load leaderboard",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "failed to load leaderboard", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, board)
}

func (h *PointsHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load balance",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", userID),
		)
		http.Error(w, "failed to load balance", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, dto.BalanceResponse{
		UserID:  userID,
		Balance: balance,
	})
}

func (h *PointsHandler) GetRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rank, err := h.ledger.Rank(r.Context(), userID)
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load rank",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", userID),
		)
		http.Error(w, "failed to load rank", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, dto.RankResponse{
		UserID: userID,
		Rank:   rank,
	})
}
