// This file is the route table. Reading it top to bottom shows every endpoint the
// API serves and which middleware guards it:
//
//	public          /api/health, register, login, google, event reads
//	Auth            profile, event writes, RSVPs, everything under /bags
//	Auth + admin    /api/auth/admin/*
//	query token     /api/bags/tournaments/:id/live (EventSource cannot send headers)

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/bags"
	"github.com/trentd187/beach-club/internal/events"
	"github.com/trentd187/beach-club/internal/identity"
	"github.com/trentd187/beach-club/internal/live"
	"github.com/trentd187/beach-club/internal/metrics"
	"github.com/trentd187/beach-club/internal/middleware"
	"github.com/trentd187/beach-club/internal/session"
)

// Deps is everything the route table needs.
type Deps struct {
	DB       *gorm.DB         // used directly only by the health check
	Users    *identity.Store  // accounts and sign-in
	Sessions *session.Manager // issues and verifies bearer tokens
	Events   *events.Ledger   // events and RSVPs
	Bags     *bags.Tracker    // games, tournaments and stats
	Hub      *live.Hub        // SSE fan-out for tournament streams
	Log      *zap.Logger
}

// Routes registers the API on app. Everything lives under /api except /metrics.
func Routes(app *fiber.App, d Deps) {
	// Build the auth middleware once and reuse it on every protected route.
	auth := middleware.Auth(d.Sessions, d.Users, d.Log)

	// Prometheus scrapes /metrics at the root, outside the API prefix.
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")
	api.Get("/health", Health(d.DB))

	// --- Identity ---
	// Registration and sign-in are public; they are how a caller gets a token.
	api.Post("/auth/register", Register(d.Users, d.Sessions))
	api.Post("/auth/login", Login(d.Users, d.Sessions))
	api.Post("/auth/google", GoogleLogin(d.Users, d.Sessions))
	api.Get("/auth/me", auth, Me())
	api.Put("/auth/profile", auth, UpdateProfile(d.Users))
	api.Post("/auth/change-password", auth, ChangePassword(d.Users))

	// Every route in this group runs Auth, then the admin gate, then the handler.
	admin := api.Group("/auth/admin", auth, middleware.RequireAdmin())
	admin.Get("/users", ListUsers(d.Users))
	admin.Put("/users/:id", UpdateUser(d.Users))
	admin.Get("/stats", AdminStats(d.Users))

	// --- Events: reads are public, writes need a member ---
	api.Get("/events", ListEvents(d.Events))
	api.Get("/events/:id", GetEvent(d.Events))
	api.Get("/events/:id/rsvps", ListEventRSVPs(d.Events))
	api.Post("/events", auth, CreateEvent(d.Events))
	api.Put("/events/:id", auth, UpdateEvent(d.Events))
	api.Post("/events/:id/rsvps", auth, UpsertRSVP(d.Events))
	api.Get("/users/me/rsvps", auth, MyRSVPs(d.Events))

	// --- Bags ---
	// The live stream is registered before the group so it gets query-token auth
	// instead of the header check.
	api.Get("/bags/tournaments/:id/live",
		middleware.StreamAuth(d.Sessions, d.Users, d.Log),
		TournamentStream(d.Bags, d.Hub, d.Log))

	// The whole bags section needs a signed-in member.
	b := api.Group("/bags", auth)
	b.Get("/games", ListGames(d.Bags))
	b.Post("/games", RecordGame(d.Bags))
	b.Get("/games/:id", GetGame(d.Bags))
	b.Get("/tournaments", ListTournaments(d.Bags))
	b.Post("/tournaments", CreateTournament(d.Bags))
	b.Get("/tournaments/:id", GetTournament(d.Bags))
	b.Put("/tournaments/:id", UpdateTournament(d.Bags))
	b.Get("/stats/leaderboard", Leaderboard(d.Bags))
	b.Get("/stats/player/:id", PlayerStats(d.Bags))
}
