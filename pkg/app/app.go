// Package app assembles the repository, services and router from a Config.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/adapters/handler"
	"github.com/wadjakorntonsri/shortly/pkg/adapters/repository/gormdb"
	"github.com/wadjakorntonsri/shortly/pkg/adapters/title"
	"github.com/wadjakorntonsri/shortly/pkg/config"
	"github.com/wadjakorntonsri/shortly/pkg/core/services"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

type App struct {
	Handler  http.Handler
	Repo     *gormdb.Repository
	Links    *services.LinkService
	Users    *services.UserService
	Sessions *services.SessionManager

	redis *redis.Client
}

// Options override collaborators, mainly for tests.
type Options struct {
	Titles ports.TitleFetcher
}

func New(cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	repo, err := OpenRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	codes, err := services.NewCodeGenerator(cfg.CodeStrategy, cfg.CodeLength)
	if err != nil {
		repo.Close()
		return nil, err
	}

	titles := opts.Titles
	if titles == nil {
		titles = title.NewFetcher(cfg.TitleFetchTimeout)
	}

	sessions, err := services.NewSessionManager(services.SessionConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.SessionTTL,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	a := &App{
		Repo: repo,
		Links: services.NewLinkService(repo, titles, codes, services.LinkServiceOptions{
			MaxAttempts:  cfg.CodeMaxAttempts,
			TitleTimeout: cfg.TitleFetchTimeout,
		}, log),
		Users:    services.NewUserService(repo, log),
		Sessions: sessions,
	}

	var limiter handler.Limiter
	if cfg.RedisURL != "" {
		client, err := connectRedis(cfg.RedisURL)
		if err != nil {
			repo.Close()
			return nil, err
		}
		a.redis = client
		limiter = handler.NewRedisLimiter(client, cfg.RateLimitPerMinute)
		log.Info("rate limiting through redis")
	} else {
		limiter = handler.NewBucketLimiter(cfg.RateLimitPerMinute)
	}

	a.Handler = handler.NewRouter(handler.RouterDeps{
		Config:   cfg,
		Links:    a.Links,
		Users:    a.Users,
		Sessions: a.Sessions,
		Health:   repo,
		Limiter:  limiter,
		Logger:   log,
	})
	return a, nil
}

// OpenRepository connects to cfg.DatabaseURL and migrates the schema.
func OpenRepository(cfg *config.Config, log *zap.Logger) (*gormdb.Repository, error) {
	repo, err := gormdb.NewRepository(cfg.DatabaseURL, gormdb.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		Debug:        cfg.LogLevel == "debug",
	}, log)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return repo, nil
}

func connectRedis(rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}
	return client, nil
}

func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.Repo.Close()
}
