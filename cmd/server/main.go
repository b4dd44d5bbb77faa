// Command server runs the Beach Club API.
//
// Startup order: configuration, logger, database (with pending migrations applied), the
// live-update hub, then the HTTP server. SIGINT/SIGTERM drain in-flight requests and stop
// the hub before exiting.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/trentd187/beach-club/internal/bags"
	"github.com/trentd187/beach-club/internal/config"
	"github.com/trentd187/beach-club/internal/database"
	"github.com/trentd187/beach-club/internal/events"
	"github.com/trentd187/beach-club/internal/handlers"
	"github.com/trentd187/beach-club/internal/identity"
	"github.com/trentd187/beach-club/internal/live"
	"github.com/trentd187/beach-club/internal/logging"
	"github.com/trentd187/beach-club/internal/session"
)

// How long in-flight requests get to finish once a shutdown signal arrives.
const shutdownTimeout = 10 * time.Second

func main() {
	// --- Configuration ---
	// Load reads the environment and .env. Nothing is logged yet because the logger's
	// level comes from this config, so failures go straight to stderr.
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// --- Logger ---
	// JSON output in production, colourised console output in development.
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	// Sync flushes buffered entries before exit. Its error is ignored because stderr
	// cannot always be synced on Linux.
	defer func() { _ = log.Sync() }()

	// run returns instead of exiting so its deferred cleanup still happens.
	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// run wires the dependencies together and blocks until the server stops.
func run(cfg *config.Config, log *zap.Logger) error {
	// Refuse to start with a missing secret or database URL.
	if err := cfg.Validate(); err != nil {
		return err
	}

	// --- Database ---
	// gorm.Open pings the server, so an unreachable database stops startup here. Migrations
	// then bring the schema up to date before any request is served.
	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	version, err := database.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	log.Info("database ready", zap.Uint("schema_version", version))

	// --- Shutdown signal ---
	// ctx is cancelled on Ctrl+C or when the container runtime sends SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Live updates ---
	// The hub fans bags updates out to SSE subscribers. hubDone lets shutdown wait for
	// it to close every subscriber channel.
	hub := live.NewHub(log)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	// --- Services ---
	// Each domain service gets the shared pool and a logger; the handlers only see Deps.
	deps := handlers.Deps{
		DB:       db,
		Users:    identity.NewStore(db, identity.NewGoogleVerifier(cfg.GoogleClientID), cfg.AdminEmails, log),
		Sessions: session.NewManager(cfg.JWTSecret, cfg.TokenTTL),
		Events:   events.NewLedger(db, log),
		Bags:     bags.NewTracker(db, handlers.NewLiveFeed(hub, log), log),
		Hub:      hub,
		Log:      log,
	}

	// --- HTTP server ---
	// ErrorHandler turns every error a handler returns into the JSON error body.
	app := fiber.New(fiber.Config{
		AppName:      "Beach Club API",
		ErrorHandler: handlers.ErrorHandler(log),
	})
	// recover turns a panic in a handler into a 500 instead of killing the process.
	app.Use(recover.New())
	// logger prints one access line per request.
	app.Use(logger.New())
	// CORS lets the web front end on another origin call the API.
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	handlers.Routes(app, deps)

	// Listen blocks, so it runs in its own goroutine. The buffered channel lets it
	// report a bind failure without blocking if nobody is reading.
	listenErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	// Wait for whichever comes first: a listen failure or a shutdown signal.
	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// Stop accepting connections and give in-flight requests shutdownTimeout to finish.
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warn("graceful shutdown incomplete", zap.Error(err))
	}
	// The hub stops on ctx cancellation; wait for it so no subscriber is left dangling.
	<-hubDone
	return nil
}
