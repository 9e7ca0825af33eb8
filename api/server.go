/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the staff dashboard

ROUTE GROUPS:
  /api/members/*     Member records, submissions, adjustments, promotions
  /api/promotions/*  Eligibility report
  /api/leaderboard   Weekly / all-time standings
  /api/ladders       Rank ladders per unit
  /api/activities    Point table
  /api/admin/*       Bulk jobs and the job journal
  /api/scenarios     Demo data loaders (development only)

ACTOR:
  Commands read the acting staff member from the X-Actor-ID header. The
  chat layer in front of this API has already checked permissions.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// ActorHeader carries the id of the staff member issuing a command.
const ActorHeader = "X-Actor-ID"

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Get("/{id}", h.GetMember)
			r.Delete("/{id}", h.DeleteMember)
			r.Put("/{id}/profile", h.SyncProfile)
			r.Get("/{id}/events", h.ListMemberEvents)
			r.Post("/{id}/submissions", h.Submit)
			r.Post("/{id}/adjustments", h.Adjust)
			r.Get("/{id}/eligibility", h.Review)
			r.Post("/{id}/promotions/approve", h.Approve)
			r.Post("/{id}/promotions/force", h.Force)
			r.Post("/{id}/lock/bypass", h.BypassLock)
			r.Post("/{id}/transfer", h.Transfer)
		})

		r.Get("/promotions/report", h.Report)
		r.Get("/leaderboard", h.Leaderboard)
		r.Get("/ladders", h.ListLadders)
		r.Get("/activities", h.ListActivities)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/weekly-reset", h.WeeklyReset)
			r.Post("/daily-reset", h.DailyReset)
			r.Post("/recompute-quotas", h.RecomputeQuotas)
			r.Post("/lock-sweep", h.LockSweep)
			r.Post("/migrate", h.Migrate)
			r.Get("/runs", h.ListRuns)
		})

		r.Get("/scenarios", h.ListScenarios)
		r.Post("/scenarios/load", h.LoadScenario)
	})

	return r
}
