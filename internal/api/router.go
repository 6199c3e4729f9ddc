package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/drheny/cab-sub000/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Agenda endpoints; rdv route names and payload fields are frozen for
	// compatibility with the existing front desk client.
	r.Route("/rdv", func(r chi.Router) {
		r.Get("/day/{date}", dayHandler(cfg.Service))
		r.Get("/week/{date}", weekHandler(cfg.Service))
		r.Get("/stats/{date}", statsHandler(cfg.Service))
		r.Get("/time_slots", timeSlotsHandler(cfg.Service))

		r.Post("/", createHandler(cfg.Service))
		r.Delete("/{id}", deleteHandler(cfg.Service))

		r.Put("/{id}/status", statusHandler(cfg.Service))
		r.Put("/{id}/room", roomHandler(cfg.Service))
		r.Put("/{id}/priority", priorityHandler(cfg.Service))
	})

	return r
}
