package app

import (
	"context"
	"log/slog"
	"time"

	"authsvc/internal/app/httpapp"
	"authsvc/internal/config"
	authhttp "authsvc/internal/http/auth"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/services/auth"
	"authsvc/internal/storage/mongodb"
	"authsvc/internal/storage/rediscache"
	"authsvc/internal/storage/sqlite"

	"github.com/redis/go-redis/v9"
)

type App struct {
	HTTPSrv *httpapp.App
}

// durableStore is the union of the store interfaces the auth service
// consumes; both sqlite and mongodb storages satisfy it.
type durableStore interface {
	auth.UserStore
	auth.RoleProvider
	auth.RefreshTokenStore
}

func New(logger *slog.Logger, cfg *config.Config) *App {
	store := newStorage(cfg)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cache := rediscache.New(redisClient)

	issuer, err := jwt.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.AccessTTL)
	if err != nil {
		// Missing signing key is fatal: refuse to start.
		panic(err)
	}

	authService := auth.New(
		logger,
		store,
		store,
		store,
		cache,
		issuer,
		cfg.Auth.RefreshTTL,
		cfg.Verification.TokenTTL,
		cfg.Auth.BcryptCost,
	)

	handler := authhttp.NewHandler(authService, cfg.HTTP.Timeout)
	httpApp := httpapp.New(logger, cfg.Env, handler, issuer, cfg.HTTP.Port)

	return &App{
		HTTPSrv: httpApp,
	}
}

func newStorage(cfg *config.Config) durableStore {
	switch cfg.Storage.Driver {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := mongodb.New(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDB)
		if err != nil {
			panic(err)
		}
		return store
	case "sqlite":
		store, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			panic(err)
		}
		return store
	default:
		panic("unknown storage driver: " + cfg.Storage.Driver)
	}
}
