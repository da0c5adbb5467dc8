package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guildpoints/points-ledger/internal/api/dto"
	emailsvc "github.com/guildpoints/points-ledger/internal/email"
	"github.com/guildpoints/points-ledger/internal/ledger"
	"github.com/guildpoints/points-ledger/internal/model"
	"github.com/guildpoints/points-ledger/internal/utils/auth"
)

const adminActor = "admin"

type AdminHandler struct {
	ledger        *ledger.Service
	emails        *emailsvc.Service
	log           *slog.Logger
	secret        []byte
	adminPassword string
}

func NewAdminHandler(ledger *ledger.Service, emails *emailsvc.Service,
	log *slog.Logger, secret []byte, adminPassword string,
) *AdminHandler {
	return &AdminHandler{
		ledger:        ledger,
		emails:        emails,
		log:           log,
		secret:        secret,
		adminPassword: adminPassword,
	}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if err := req.IsValid(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.adminPassword)) != 1 {
		h.log.LogAttrs(r.Context(),
			slog.LevelWarn,
			"admin login rejected",
		)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	cookie, err := auth.Authenticate(h.secret)
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to issue session token",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &cookie)
	w.WriteHeader(http.StatusOK)
}

// PostPoints applies an add, remove or set mutation and runs achievement
// evaluation against the resulting balance. Evaluation failures are
// logged, not surfaced: the mutation itself already committed.
func (h *AdminHandler) PostPoints(w http.ResponseWriter, r *http.Request) {
	var req dto.PointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if err := req.IsValid(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	actor := adminActor
	var (
		balance int64
		err     error
	)
	switch req.Action {
	case dto.ActionAdd:
		balance, err = h.ledger.ApplyDelta(r.Context(), req.UserID, req.Amount, &actor, req.Reason)
	case dto.ActionRemove:
		balance, err = h.ledger.ApplyDelta(r.Context(), req.UserID, -req.Amount, &actor, req.Reason)
	case dto.ActionSet:
		balance, err = h.ledger.SetBalance(r.Context(), req.UserID, req.Amount, &actor, req.Reason)
	}
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to update points",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", req.UserID),
			slog.String("action", req.Action),
		)
		http.Error(w, "failed to update points", statusFromError(err))
		return
	}

	awarded, err := h.ledger.EvaluateAchievements(r.Context(), req.UserID, balance)
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"achievement evaluation failed",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", req.UserID),
		)
	}
	if len(awarded) > 0 {
		// rewards may have moved the balance
		if b, err := h.ledger.GetBalance(r.Context(), req.UserID); err == nil {
			balance = b
		}
	}

	writeJSON(w, h.log, http.StatusOK, dto.PointsResponse{
		UserID:  req.UserID,
		Balance: balance,
		Awarded: awarded,
	})
}

func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.ledger.Totals(r.Context())
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load totals",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "failed to load stats", statusFromError(err))
		return
	}
	counts, err := h.emails.Counts(r.Context())
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load email counts",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "failed to load stats", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, dto.StatsResponse{
		TotalUsers:  totals.Users,
		TotalPoints: totals.Points,
		Emails:      counts,
	})
}

func (h *AdminHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	history, err := h.ledger.Transactions(r.Context(), userID, queryLimit(r))
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load transactions",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "failed to load transactions", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, history)
}

func (h *AdminHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	recent, err := h.ledger.RecentAchievements(r.Context(), queryLimit(r))
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load achievements",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "failed to load achievements", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, recent)
}

func (h *AdminHandler) GetUserAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	stats, err := h.ledger.UserStats(r.Context(), userID)
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to load user stats",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", userID),
		)
		http.Error(w, "failed to load user stats", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, stats)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.ledger.DeleteAccount(r.Context(), userID); err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to delete account",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", userID),
		)
		http.Error(w, "failed to delete account", statusFromError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
