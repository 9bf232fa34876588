package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingo-core/internal/app"
	"lingo-core/internal/backend"
	"lingo-core/internal/config"
	"lingo-core/internal/handlers"
	"lingo-core/internal/models"
	"lingo-core/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: lingo-core [-config config.yaml] <command>

commands:
  serve   run the backend API
  demo    sign in against the configured backend and walk through the session`

// Run parses the command line and runs the selected command
func Run() {
	flags := flag.NewFlagSet("lingo-core", flag.ExitOnError)
	configPath := flags.String("config", "config.yaml", "path to the YAML config file")
	email := flags.String("email", "demo@example.com", "demo sign-in email")
	password := flags.String("password", "correct horse battery staple", "demo sign-in password")
	flags.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	_ = flags.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	command := flags.Arg(0)
	if command == "" {
		command = "serve"
	}

	switch command {
	case "serve":
		serve(cfg)
	case "demo":
		if err := demo(cfg, *email, *password); err != nil {
			log.Fatal().Err(err).Msg("Demo failed")
		}
	default:
		flags.Usage()
		os.Exit(2)
	}
}

func serve(cfg *config.Config) {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var feed backend.FeedBroker = backend.NewMemoryFeedBroker()
	if cfg.Redis.URL != "" {
		redisFeed, err := backend.NewRedisFeedBroker(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create feed broker")
		}
		feed = redisFeed
	}
	defer feed.Close()

	var notifier backend.Notifier
	if cfg.APNs.CertFile != "" {
		apns, err := backend.NewAPNsNotifier(cfg.APNs.CertFile, cfg.APNs.Password, cfg.APNs.Topic, cfg.APNs.Production)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push notifier")
		}
		notifier = apns
	}

	var avatars backend.AvatarStorage
	if cfg.AWS.S3Bucket != "" {
		s3, err := backend.NewS3AvatarStorage(ctx, cfg.AWS.Region, cfg.AWS.S3Bucket, cfg.AWS.AccessKey, cfg.AWS.SecretKey, cfg.AWS.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create avatar storage")
		}
		avatars = s3
	}

	// Initialize services
	service := backend.NewService(
		store,
		backend.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL),
		feed,
		notifier,
		avatars,
		backend.Options{
			MinPasswordEntropy: cfg.Backend.MinPasswordEntropy,
			SeedDemoData:       cfg.Backend.SeedDemoData,
		},
	)
	hub := handlers.NewHub()

	if cfg.Backend.SeedDemoData && cfg.Backend.DemoActivityInterval > 0 {
		go service.RunDemoActivity(ctx, cfg.Backend.DemoActivityInterval, hub.OnlineUsers)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.NewRouter(service, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// hijacked websocket connections are not closed by Shutdown
	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStore connects to PostgreSQL when a database is configured and falls
// back to the in-memory store otherwise
func openStore(ctx context.Context, cfg *config.Config) (backend.Store, func()) {
	dsn := cfg.Database.DSN()
	if dsn == "" {
		log.Warn().Msg("No database configured, using in-memory store")
		return backend.NewMemoryStore(), func() {}
	}

	db, err := repository.Connect(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	store := repository.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	return store, db.Close
}

// demo drives the session manager through a typical client session
func demo(cfg *config.Config, email, password string) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg, app.Overrides{})
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer a.Close()

	a.Start(ctx)
	if status := a.Session.State().BackendStatus; status != nil {
		log.Info().Bool("reachable", status.IsReachable).Msg("Backend status")
	}

	if !a.Session.State().IsAuthenticated() {
		result := a.Session.SignInWithEmail(ctx, email, password)
		if !result.Success {
			return fmt.Errorf("sign-in failed: %s", result.Error)
		}
	}
	defer a.Session.SignOut(ctx)

	state := a.Session.State()
	log.Info().
		Str("user_id", state.UserID()).
		Str("display_name", state.Session.User.DisplayName).
		Int("friends", len(state.Friends)).
		Int("feed", len(state.FriendFeed)).
		Msg(a.Localizer.T("profile_overview"))

	if friend := a.Session.AddFriend(ctx, "petra@example.com"); friend != nil {
		log.Info().Str("friend_id", friend.ID).Str("display_name", friend.DisplayName).Msg(a.Localizer.T("profile_add_friend"))

		if message := a.Session.SendMessage(ctx, friend.ID, "Ahoj! Shall we practise together?"); message != nil {
			log.Info().Str("thread_id", message.ThreadID).Msg(a.Localizer.T("profile_messages"))
		}
	}

	if prefs := a.Session.SetThemePreference(ctx, models.ThemeDark); prefs != nil {
		log.Info().
			Str("theme", string(a.Theme.Resolved())).
			Str("background", a.Theme.Palette().Background).
			Msg(a.Localizer.T("settings_theme"))
	}

	practice := a.NewPractice("travel")
	defer practice.Close()

	if _, err := practice.Prepare(ctx); err != nil {
		return err
	}
	response, err := practice.Send(ctx, "Last summer I travel to Prague with my friends.")
	if err != nil {
		return err
	}
	log.Info().
		Str("reply", response.Reply).
		Bool("fallback", response.DidUseFallbackModel).
		Int64("latency_ms", response.LatencyMs).
		Msg(a.Localizer.T("conversation_title"))

	return nil
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
