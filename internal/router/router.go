package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/guildpoints/points-ledger/internal/api/middlewares"
	"github.com/guildpoints/points-ledger/internal/service/config"
)

type CustomRouter struct {
	router *chi.Mux
	logger *slog.Logger
	cfg    *config.Config
}

func New(cfg *config.Config, log *slog.Logger) *CustomRouter {
	router := &CustomRouter{
		router: chi.NewRouter(),
		logger: log,
		cfg:    cfg,
	}

	return router
}

type PointsHandler interface {
	GetLeaderboard(w http.ResponseWriter, r *http.Request)
	GetPoints(w http.ResponseWriter, r *http.Request)
	GetRank(w http.ResponseWriter, r *http.Request)
}

type AdminHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
	PostPoints(w http.ResponseWriter, r *http.Request)
	GetStats(w http.ResponseWriter, r *http.Request)
	GetTransactions(w http.ResponseWriter, r *http.Request)
	GetAchievements(w http.ResponseWriter, r *http.Request)
	GetUserAnalytics(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
}

type EmailHandler interface {
	Submit(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	GetSubmission(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	MarkProcessed(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	ClearProcessed(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
}

type HealthHandler interface {
	Ping(w http.ResponseWriter, r *http.Request)
}

type Handler interface {
	PointsHandler
	AdminHandler
	EmailHandler
	HealthHandler
}

func (cr *CustomRouter) SetRouter(h Handler) {
	if cr.cfg.CORSOrigin != "" {
		cr.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{cr.cfg.CORSOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
		}))
	}

	cr.router.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/points", h.GetPoints)
			r.Get("/rank", h.GetRank)
		})

		r.Route("/emails", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Post("/", h.Submit)
				r.Put("/{userID}", h.Update)
			})
			r.Get("/{userID}", h.GetSubmission)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).
				Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(middlewares.Authentication(
					[]byte(cr.cfg.SecretKey), cr.logger))

				r.With(middleware.AllowContentType("application/json")).
					Post("/points", h.PostPoints)
				r.Get("/stats", h.GetStats)
				r.Get("/transactions", h.GetTransactions)
				r.Get("/achievements", h.GetAchievements)
				r.Route("/users/{userID}", func(r chi.Router) {
					r.Get("/analytics", h.GetUserAnalytics)
					r.Delete("/", h.DeleteUser)
				})

				r.Route("/emails", func(r chi.Router) {
					r.Get("/", h.List)
					r.Get("/export", h.Export)
					r.Patch("/{id}/processed", h.MarkProcessed)
					r.Delete("/processed", h.ClearProcessed)
					r.Delete("/{id}", h.Delete)
				})
			})
		})
	})
	cr.router.Get("/ping", h.Ping)

	cr.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w,
			http.StatusText(http.StatusMethodNotAllowed),
			http.StatusMethodNotAllowed)
	})
}

func (cr *CustomRouter) GetRouter() *chi.Mux {
	return cr.router
}
