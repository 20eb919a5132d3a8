package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"drivedesk/internal/config"
	"drivedesk/internal/platform/cache"
	"drivedesk/internal/platform/database"
	"drivedesk/internal/platform/migrate"
	"drivedesk/internal/session"
)

const sessionCleanupInterval = 15 * time.Minute

func buildSessionStore(ctx context.Context, group *errgroup.Group, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
	options := session.CookieOptions{
		Secure: !cfg.IsDevelopment(),
		TTL:    cfg.SessionTTL,
	}

	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("storing sessions in redis")
		cleanup := func() {
			_ = client.Close()
		}
		return session.NewServerStore(session.NewRedisBackend(client, ""), options), cleanup, nil

	case config.SessionStorePostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			_ = db.Close()
		}

		if err := migrate.Apply(ctx, db, logger); err != nil {
			cleanup()
			return nil, nil, err
		}

		backend := session.NewPostgresBackend(db)
		group.Go(func() error {
			session.RunCleanup(ctx, backend, sessionCleanupInterval, logger)
			return nil
		})

		logger.Info("storing sessions in postgres")
		return session.NewServerStore(backend, options), cleanup, nil

	case config.SessionStoreCookie, "":
		logger.Info("storing sessions in signed cookies")
		return session.NewCookieStore(cfg.SecretKey, options), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session store %q", cfg.SessionStore)
	}
}
