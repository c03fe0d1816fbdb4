// Package main contains the entrypoint for the PersonaGate relay core.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/auric-labs/personagate/internal/auth"
	"github.com/auric-labs/personagate/internal/auth/access"
	"github.com/auric-labs/personagate/internal/auth/aiclient"
	"github.com/auric-labs/personagate/internal/auth/nsfw"
	"github.com/auric-labs/personagate/internal/auth/oauth"
	"github.com/auric-labs/personagate/internal/config"
	"github.com/auric-labs/personagate/internal/logger"
	"github.com/auric-labs/personagate/internal/store"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes all components (config, logger, store, auth manager),
// blocks until shutdown is signaled, and returns an exit code (0 for success,
// 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := store.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer store.CloseDB(db) // Ensure DB is closed on function exit
	st := store.NewStore(db, cfg.Database.Path, log)

	verifier := nsfw.NewManager(nil, log) // no proxy system integration configured
	oauthProvider := oauth.NewProvider(
		cfg.Service.AppID,
		cfg.Service.AuthWebsite,
		cfg.Service.AuthAPIEndpoint,
		&http.Client{Timeout: 30 * time.Second},
		log,
	)
	factory := aiclient.NewFactory(aiclient.Config{
		APIKey:  cfg.Service.APIKey,
		BaseURL: cfg.Service.BaseURL,
	}, log)

	manager := auth.NewManager(auth.Config{
		AppID:             cfg.Service.AppID,
		APIKey:            cfg.Service.APIKey,
		AuthWebsite:       cfg.Service.AuthWebsite,
		AuthAPIEndpoint:   cfg.Service.AuthAPIEndpoint,
		ServiceAPIBaseURL: cfg.Service.BaseURL,
		OwnerID:           cfg.Service.OwnerID,
		DataDir:           cfg.Service.DataDir,
		TokenLifetime:     cfg.Cleanup.TokenLifetime,
		CleanupInterval:   cfg.Cleanup.Interval,
	}, st, oauthProvider, factory, verifier, nil, log)

	// The access validator consults the manager's token view, so it is wired
	// after the manager exists.
	manager.SetAccessValidator(access.NewValidator(manager, verifier, oauthProvider, log))

	log.Info("Starting auth manager...")
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := manager.Initialize(gCtx); err != nil {
			return err
		}
		log.Info("Auth manager running. Waiting for shutdown signal...")

		<-gCtx.Done()
		log.Info("Shutdown signal received, stopping auth manager...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during auth manager shutdown", "error", err)
		}
		return nil
	})

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
