package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/jerzsarto/Authentication/internal/auth"
	"github.com/jerzsarto/Authentication/internal/config"
	transporthttp "github.com/jerzsarto/Authentication/internal/http"
	"github.com/jerzsarto/Authentication/internal/platform/database"
	"github.com/jerzsarto/Authentication/internal/platform/logging"
	"github.com/jerzsarto/Authentication/internal/platform/migrate"
)

const sessionCleanupInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	users, sessions, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	authService := auth.NewService(users, sessions, hasher, cfg.SessionTTL)

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize OAuth providers", "error", err)
		os.Exit(1)
	}

	router := transporthttp.NewRouter(cfg, authService, providers, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go sessionCleanupLoop(ctx, authService, logger)

	go func() {
		logger.Info("auth API listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.UserStore, auth.SessionStore, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory store")
		repo := auth.NewMemoryRepository()
		return repo, repo, nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	logger.Info("connected to postgres")
	repo := auth.NewPostgresRepository(db)
	return repo, repo, cleanup, nil
}

func buildProviders(ctx context.Context, cfg config.Config) (map[string]auth.Authenticator, error) {
	providers := make(map[string]auth.Authenticator)

	if cfg.Google.Enabled() {
		google, err := auth.NewGoogleAuthenticator(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.CallbackURL(auth.ProviderGoogle))
		if err != nil {
			return nil, err
		}
		providers[auth.ProviderGoogle] = google
	}

	if cfg.Facebook.Enabled() {
		providers[auth.ProviderFacebook] = auth.NewFacebookAuthenticator(cfg.Facebook.ClientID, cfg.Facebook.ClientSecret, cfg.CallbackURL(auth.ProviderFacebook))
	}

	if cfg.GitHub.Enabled() {
		providers[auth.ProviderGitHub] = auth.NewGitHubAuthenticator(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.CallbackURL(auth.ProviderGitHub))
	}

	return providers, nil
}

// sessionCleanupLoop periodically removes expired sessions so the table does
// not grow without bound.
func sessionCleanupLoop(ctx context.Context, authService *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			removed, err := authService.CleanupExpiredSessions(cleanupCtx)
			cancel()
			if err != nil {
				logger.Error("session cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("expired sessions removed", "count", removed)
			}
		}
	}
}
