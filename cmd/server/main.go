package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"drivedesk/internal/auth"
	"drivedesk/internal/config"
	transporthttp "drivedesk/internal/http"
	"drivedesk/internal/platform/logging"
	"drivedesk/internal/platform/metrics"
	"drivedesk/internal/tokens"
	"drivedesk/internal/web"
	"drivedesk/internal/workspace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.UsesDefaultSecret() {
		logger.Warn("using the development session secret; set SECRET_KEY outside development")
	}

	group, ctx := errgroup.WithContext(ctx)

	store, cleanup, err := buildSessionStore(ctx, group, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize session store", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	outbound := &http.Client{Timeout: cfg.HTTPClientTimeout}
	appMetrics := metrics.New()

	provider, err := auth.NewGoogleProvider(ctx, cfg.OIDCIssuer, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackURL(), outbound)
	if err != nil {
		logger.Error("failed to discover identity provider", "issuer", cfg.OIDCIssuer, "error", err)
		os.Exit(1)
	}

	renderer, err := web.NewRenderer(cfg.TemplateDir, logger)
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}
	if cfg.TemplateDir != "" {
		group.Go(func() error {
			return renderer.Watch(ctx, cfg.TemplateDir)
		})
	}

	resources := workspace.NewService(outbound,
		workspace.WithDriveURL(cfg.DriveAPIURL),
		workspace.WithPeopleURL(cfg.PeopleAPIURL),
		workspace.WithObserver(appMetrics),
	)

	router := transporthttp.NewRouter(transporthttp.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Provider:  provider,
		Tokens:    tokens.NewManager(provider, tokens.WithObserver(appMetrics)),
		Resources: resources,
		Renderer:  renderer,
		Static:    web.StaticHandler(cfg.StaticDir),
		Metrics:   appMetrics,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	group.Go(func() error {
		logger.Info("drivedesk listening", "addr", srv.Addr, "store", cfg.SessionStore, "silent_reauth", cfg.SilentReauth)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
