package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/guildpoints/points-ledger/internal/api/dto"
	emailsvc "github.com/guildpoints/points-ledger/internal/email"
	"github.com/guildpoints/points-ledger/internal/ledger"
	"github.com/guildpoints/points-ledger/internal/model"
	"github.com/guildpoints/points-ledger/internal/model/email"
)

type EmailHandler struct {
	emails *emailsvc.Service
	ledger *ledger.Service
	log    *slog.Logger
}

func NewEmailHandler(emails *emailsvc.Service, ledger *ledger.Service,
	log *slog.Logger,
) *EmailHandler {
	return &EmailHandler{
		emails: emails,
		ledger: ledger,
		log:    log,
	}
}

func (h *EmailHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if err := req.IsValid(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.upsert(w, r, req)
}

// Update rewrites the user's pending submission. The route carries the
// user ID, the body the new address.
func (h *EmailHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	req.UserID = chi.URLParam(r, "userID")
	if err := req.IsValid(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.upsert(w, r, req)
}

func (h *EmailHandler) upsert(w http.ResponseWriter, r *http.Request, req dto.EmailRequest) {
	overwritten, err := h.emails.Submit(r.Context(), req.UserID, req.Username, req.Email)
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to store email submission",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", req.UserID),
		)
		http.Error(w, "failed to store email submission", statusFromError(err))
		return
	}

	sub, err := h.emails.Submission(r.Context(), req.UserID)
	if err != nil {
		http.Error(w, "failed to store email submission", statusFromError(err))
		return
	}
	status := http.StatusCreated
	if overwritten {
		status = http.StatusOK
	}
	writeJSON(w, h.log, status, submissionResponse(sub, overwritten))
}

func (h *EmailHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sub, err := h.emails.Submission(r.Context(), userID)
	if err != nil {
		http.Error(w, "submission not found", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, submissionResponse(sub, false))
}

func (h *EmailHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.emails.List(r.Context())
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to list email submissions",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "failed to list email submissions", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, subs)
}

// MarkProcessed flips a submission to processed and evaluates the
// owner's achievements, which is how the email_verified award lands.
func (h *EmailHandler) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "malformed submission ID", http.StatusBadRequest)
		return
	}

	sub, err := h.emails.MarkProcessed(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to process submission", statusFromError(err))
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), sub.UserID)
	if err == nil {
		_, err = h.ledger.EvaluateAchievements(r.Context(), sub.UserID, balance)
	}
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"achievement evaluation failed",
			slog.Any(model.KeyLoggerError, err),
			slog.String("user_id", sub.UserID),
		)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *EmailHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "malformed submission ID", http.StatusBadRequest)
		return
	}
	if err := h.emails.Delete(r.Context(), id); err != nil {
		http.Error(w, "failed to delete submission", statusFromError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EmailHandler) ClearProcessed(w http.ResponseWriter, r *http.Request) {
	removed, err := h.emails.ClearProcessed(r.Context())
	if err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to clear processed submissions",
			slog.Any(model.KeyLoggerError, err),
		)
		http.Error(w, "failed to clear processed submissions", statusFromError(err))
		return
	}
	writeJSON(w, h.log, http.StatusOK, dto.ClearedResponse{Removed: removed})
}

func (h *EmailHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(model.HeaderContentType, "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="emails.csv"`)
	if err := h.emails.ExportCSV(r.Context(), w); err != nil {
		h.log.LogAttrs(r.Context(),
			slog.LevelError,
			"failed to export submissions",
			slog.Any(model.KeyLoggerError, err),
		)
	}
}

func submissionResponse(sub email.Submission, overwritten bool) dto.EmailResponse {
	return dto.EmailResponse{
		ID:          sub.ID,
		UserID:      sub.UserID,
		Email:       sub.Address,
		Status:      string(sub.Status),
		SubmittedAt: sub.SubmittedAt,
		Overwritten: overwritten,
	}
}
