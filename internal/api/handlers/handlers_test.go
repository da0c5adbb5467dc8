package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpoints/points-ledger/internal/api/dto"
	emailsvc "github.com/guildpoints/points-ledger/internal/email"
	"github.com/guildpoints/points-ledger/internal/ledger"
	"github.com/guildpoints/points-ledger/internal/repo/memory"
)

const testSecret = "super-secret-key"
const testAdminPassword = "very-strong-admin-password"

type handlerSet struct {
	points *PointsHandler
	admin  *AdminHandler
	emails *EmailHandler
	store  *memory.Store
}

func newHandlerSet() handlerSet {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	ledgerService := ledger.New(store, log)
	emailService := emailsvc.New(store, log)
	return handlerSet{
		points: NewPointsHandler(ledgerService, log),
		admin: NewAdminHandler(ledgerService, emailService, log,
			[]byte(testSecret), testAdminPassword),
		emails: NewEmailHandler(emailService, ledgerService, log),
		store:  store,
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(
		context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminHandler_Login(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantToken bool
	}{
		{
			"empty password",
			`{"password":""}`,
			http.StatusBadRequest,
			false,
		},
		{
			"wrong password",
			`{"password":"guess"}`,
			http.StatusUnauthorized,
			false,
		},
		{
			"decoding error",
			`{"password":42}`,
			http.StatusBadRequest,
			false,
		},
		{
			"happy test",
			`{"password":"` + testAdminPassword + `"}`,
			http.StatusOK,
			true,
		},
	}

	hs := newHandlerSet()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(
				http.MethodPost, "/api/admin/login", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			hs.admin.Login(rr, req)

			res := rr.Result()
			require.NoError(t, res.Body.Close())

			hasToken := false
			for _, c := range res.Cookies() {
				if c.Name == "jwt-token" && len(c.Value) != 0 {
					hasToken = true
					break
				}
			}
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantToken, hasToken)
		})
	}
}

func TestAdminHandler_PostPoints(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantBalance int64
	}{
		{
			"add points",
			`{"user_id":"u1","action":"add","amount":30}`,
			http.StatusOK,
			30,
		},
		{
			"remove clamps at zero",
			`{"user_id":"u1","action":"remove","amount":100}`,
			http.StatusOK,
			0,
		},
		{
			"set balance",
			`{"user_id":"u1","action":"set","amount":70}`,
			http.StatusOK,
			70,
		},
		{
			"unknown action",
			`{"user_id":"u1","action":"increment","amount":5}`,
			http.StatusBadRequest,
			0,
		},
		{
			"negative amount",
			`{"user_id":"u1","action":"add","amount":-5}`,
			http.StatusBadRequest,
			0,
		},
		{
			"missing user",
			`{"action":"add","amount":5}`,
			http.StatusBadRequest,
			0,
		},
		{
			"bad json",
			`{"user_id":`,
			http.StatusBadRequest,
			0,
		},
	}

	hs := newHandlerSet()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(
				http.MethodPost, "/api/admin/points", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			hs.admin.PostPoints(rr, req)

			res := rr.Result()
			defer func() { require.NoError(t, res.Body.Close()) }()
			require.Equal(t, tt.wantCode, res.StatusCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp dto.PointsResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
			assert.Equal(t, "u1", resp.UserID)
			assert.GreaterOrEqual(t, resp.Balance, tt.wantBalance)
		})
	}
}

func TestAdminHandler_PostPointsAwardsAchievements(t *testing.T) {
	hs := newHandlerSet()

	body := `{"user_id":"u1","action":"add","amount":150}`
	req := httptest.NewRequest(
		http.MethodPost, "/api/admin/points", strings.NewReader(body))
	rr := httptest.NewRecorder()
	hs.admin.PostPoints(rr, req)

	res := rr.Result()
	defer func() { require.NoError(t, res.Body.Close()) }()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp dto.PointsResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, []string{"first_points", "milestone_100"}, resp.Awarded)
	// 150 + 50 + 25 of rewards
	assert.Equal(t, int64(225), resp.Balance)
}

func TestAdminHandler_StatsAndAnalytics(t *testing.T) {
	hs := newHandlerSet()

	post := func(body string) {
		req := httptest.NewRequest(
			http.MethodPost, "/api/admin/points", strings.NewReader(body))
		rr := httptest.NewRecorder()
		hs.admin.PostPoints(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	post(`{"user_id":"u1","action":"set","amount":40}`)
	post(`{"user_id":"u2","action":"set","amount":60}`)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", http.NoBody)
	rr := httptest.NewRecorder()
	hs.admin.GetStats(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats dto.StatsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.TotalUsers)
	// both sets trigger the first_points reward of 50
	assert.Equal(t, int64(200), stats.TotalPoints)

	req = httptest.NewRequest(
		http.MethodGet, "/api/admin/users/u1/analytics", http.NoBody)
	req = withURLParam(req, "userID", "u1")
	rr = httptest.NewRecorder()
	hs.admin.GetUserAnalytics(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"user_id":"u1"`)
}

func TestAdminHandler_TransactionsFilter(t *testing.T) {
	hs := newHandlerSet()

	post := func(body string) {
		req := httptest.NewRequest(
			http.MethodPost, "/api/admin/points", strings.NewReader(body))
		rr := httptest.NewRecorder()
		hs.admin.PostPoints(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	post(`{"user_id":"u1","action":"add","amount":10}`)
	post(`{"user_id":"u2","action":"add","amount":20}`)

	req := httptest.NewRequest(
		http.MethodGet, "/api/admin/transactions?user_id=u2", http.NoBody)
	rr := httptest.NewRecorder()
	hs.admin.GetTransactions(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"u2"`)
	assert.NotContains(t, rr.Body.String(), `"user_id":"u1"`)
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	hs := newHandlerSet()

	body := `{"user_id":"u1","action":"set","amount":40}`
	req := httptest.NewRequest(
		http.MethodPost, "/api/admin/points", strings.NewReader(body))
	rr := httptest.NewRecorder()
	hs.admin.PostPoints(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(
		http.MethodDelete, "/api/admin/users/u1", http.NoBody)
	req = withURLParam(req, "userID", "u1")
	rr = httptest.NewRecorder()
	hs.admin.DeleteUser(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/points", http.NoBody)
	req = withURLParam(req, "userID", "u1")
	rr = httptest.NewRecorder()
	hs.points.GetPoints(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"balance":0`)
}

func TestPointsHandler_Leaderboard(t *testing.T) {
	hs := newHandlerSet()

	body := `{"user_id":"u1","action":"add","amount":5}`
	req := httptest.NewRequest(
		http.MethodPost, "/api/admin/points", strings.NewReader(body))
	rr := httptest.NewRecorder()
	hs.admin.PostPoints(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/leaderboard", http.NoBody)
	rr = httptest.NewRecorder()
	hs.points.GetLeaderboard(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"u1"`)

	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/rank", http.NoBody)
	req = withURLParam(req, "userID", "u1")
	rr = httptest.NewRecorder()
	hs.points.GetRank(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"rank":1`)
}

func TestEmailHandler_SubmitAndProcess(t *testing.T) {
	hs := newHandlerSet()

	submit := func(body string, wantCode int) {
		req := httptest.NewRequest(
			http.MethodPost, "/api/emails", strings.NewReader(body))
		rr := httptest.NewRecorder()
		hs.emails.Submit(rr, req)
		require.Equal(t, wantCode, rr.Code, rr.Body.String())
	}

	submit(`{"user_id":"u1","username":"user one","email":"bad"}`, http.StatusBadRequest)
	submit(`{"username":"user one","email":"u1@example.com"}`, http.StatusBadRequest)
	submit(`{"user_id":"u1","username":"user one","email":"u1@example.com"}`, http.StatusCreated)
	// resubmission overwrites the pending entry
	submit(`{"user_id":"u1","username":"user one","email":"u1-new@example.com"}`, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/api/emails/u1", http.NoBody)
	req = withURLParam(req, "userID", "u1")
	rr := httptest.NewRecorder()
	hs.emails.GetSubmission(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var sub dto.EmailResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sub))
	assert.Equal(t, "u1-new@example.com", sub.Email)
	assert.Equal(t, "pending", sub.Status)

	req = httptest.NewRequest(
		http.MethodPatch, "/api/admin/emails/1/processed", http.NoBody)
	req = withURLParam(req, "id", "1")
	rr = httptest.NewRecorder()
	hs.emails.MarkProcessed(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// processing the email awards email_verified and credits its reward
	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/points", http.NoBody)
	req = withURLParam(req, "userID", "u1")
	rr = httptest.NewRecorder()
	hs.points.GetPoints(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"balance":100`)
}

func TestEmailHandler_AdminQueue(t *testing.T) {
	hs := newHandlerSet()

	submit := func(userID string) {
		body := `{"user_id":"` + userID + `","username":"` + userID +
			`","email":"` + userID + `@example.com"}`
		req := httptest.NewRequest(
			http.MethodPost, "/api/emails", strings.NewReader(body))
		rr := httptest.NewRecorder()
		hs.emails.Submit(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	submit("u1")
	submit("u2")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/emails", http.NoBody)
	rr := httptest.NewRecorder()
	hs.emails.List(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "u1@example.com")
	assert.Contains(t, rr.Body.String(), "u2@example.com")

	req = httptest.NewRequest(
		http.MethodPatch, "/api/admin/emails/1/processed", http.NoBody)
	req = withURLParam(req, "id", "1")
	rr = httptest.NewRecorder()
	hs.emails.MarkProcessed(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(
		http.MethodGet, "/api/admin/emails/export", http.NoBody)
	rr = httptest.NewRecorder()
	hs.emails.Export(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "id,user_id,username,email,status,submitted_at")

	req = httptest.NewRequest(
		http.MethodDelete, "/api/admin/emails/processed", http.NoBody)
	rr = httptest.NewRecorder()
	hs.emails.ClearProcessed(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"removed":1`)

	req = httptest.NewRequest(
		http.MethodDelete, "/api/admin/emails/2", http.NoBody)
	req = withURLParam(req, "id", "2")
	rr = httptest.NewRecorder()
	hs.emails.Delete(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(
		http.MethodDelete, "/api/admin/emails/99", http.NoBody)
	req = withURLParam(req, "id", "99")
	rr = httptest.NewRecorder()
	hs.emails.Delete(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthHandler_Ping(t *testing.T) {
	hs := newHandlerSet()
	h := NewHealthHandler(hs.store)

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	rr := httptest.NewRecorder()
	h.Ping(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
