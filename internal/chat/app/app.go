package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/taproom/internal/chat/http"
	"github.com/aussiebroadwan/taproom/internal/chat/service"
	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/internal/chat/store/drivers/sqlite"
	"github.com/aussiebroadwan/taproom/internal/chat/voice"
	"github.com/aussiebroadwan/taproom/internal/chat/ws"
	"github.com/aussiebroadwan/taproom/pkg/jwtx"
	"github.com/aussiebroadwan/taproom/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the chat service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	signer   *jwtx.Signer
	verifier *jwtx.Verifier
	hub      *ws.Hub

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	inviteService       *service.InviteService
	membershipService   *service.MembershipService
	messageService      *service.MessageService
	voiceService        *service.VoiceService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "chat-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := jwtx.NewSigner([]byte(cfg.JWTSecret), cfg.Issuer, cfg.AccessTokenTTL)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	verifier, err := jwtx.NewVerifier([]byte(cfg.JWTSecret), cfg.Issuer)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	app.signer = signer
	app.verifier = verifier

	app.hub = ws.NewHub(app.logger)

	app.initServices()
	app.initHTTP()

	// Seed the admin account and default room before accepting traffic.
	if err := app.bootstrapService.Run(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("bootstrap failed: %w", err)
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("chat service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down chat service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.hub.Shutdown()
	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("chat service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Store:      app.db,
		Signer:     app.signer,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.inviteService = &service.InviteService{Store: app.db}
	app.userService = &service.UserService{
		Store:   app.db,
		Invites: app.inviteService,
		Tokens:  app.tokenService,
	}

	app.membershipService = &service.MembershipService{
		Store:  app.db,
		Events: app.hub,
	}
	app.messageService = &service.MessageService{
		Store:      app.db,
		Membership: app.membershipService,
		Events:     app.hub,
	}
	app.voiceService = &service.VoiceService{
		Store:  app.db,
		Client: voice.NewLiveKitClient(app.cfg.LiveKitHost, app.cfg.LiveKitAPIKey, app.cfg.LiveKitAPISecret),
		Events: app.hub,
	}
	if app.cfg.LiveKitHost != "" {
		// Joins provision the room's voice session eagerly. Without a
		// configured voice host every room is chat-only.
		app.membershipService.Voice = app.voiceService
	}

	app.bootstrapService = &service.BootstrapService{
		Store:         app.db,
		AdminUsername: app.cfg.AdminUsername,
		AdminPassword: app.cfg.AdminPassword,
		DefaultRoom:   app.cfg.DefaultRoom,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.cfg.LiveKitWSURL,
		app.db,
		app.hub,
		app.logger,
	)

	// Wire services to router
	router.UserService = app.userService
	router.TokenService = app.tokenService
	router.InviteService = app.inviteService
	router.MembershipService = app.membershipService
	router.MessageService = app.messageService
	router.VoiceService = app.voiceService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
