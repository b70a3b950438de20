package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okhomin/bracket-engine/handlers"
	"github.com/okhomin/bracket-engine/middleware"
)

// SetupRoutes wires the full HTTP surface. Read endpoints are public;
// lifecycle transitions, overrides and resets require the admin role, the
// simulation endpoints require the dev role.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	tournamentHandler *handlers.TournamentHandler,
	entryHandler *handlers.EntryHandler,
	matchHandler *handlers.MatchHandler,
	dashboardHandler *handlers.DashboardHandler,
	adminHandler *handlers.AdminHandler,
	devHandler *handlers.DevHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	requireAdmin := middleware.RequireRole("admin")
	requireDev := middleware.RequireRole("dev", "admin")

	router.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Post("/tournaments", tournamentHandler.Create)
		r.Get("/tournaments", tournamentHandler.List)
		r.Get("/tournaments/active", tournamentHandler.GetActive)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(requireAdmin)
			r.Delete("/", adminHandler.FactoryReset)
		})
	})

	router.Route("/tournaments/{ref}", func(r chi.Router) {
		r.Get("/", tournamentHandler.Get)
		r.Get("/entries", entryHandler.List)
		r.Get("/matches", matchHandler.List)
		r.Get("/dashboard", dashboardHandler.Get)

		r.Post("/entries", entryHandler.Register)
		r.Delete("/entries/{playerID}", entryHandler.Unregister)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(requireAdmin)
			r.Post("/registration/open", tournamentHandler.OpenRegistration)
			r.Post("/registration/close", tournamentHandler.CloseRegistration)
			r.Post("/start", tournamentHandler.Start)
			r.Post("/cancel", tournamentHandler.Cancel)
			r.Post("/archive", adminHandler.Archive)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(requireDev)
			r.Post("/dev/dummies", devHandler.SeedDummies)
			r.Post("/dev/resolve", devHandler.ResolveDummyMatches)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Post("/report", matchHandler.Report)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(requireAdmin)
			r.Post("/override", matchHandler.Override)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
