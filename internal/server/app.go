// Package server initializes and runs the authvault server: configuration,
// database, refresh-token store selection, and the HTTP API with graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmanankin/authvault/internal/logging"
	"github.com/dmanankin/authvault/internal/server/auth"
	"github.com/dmanankin/authvault/internal/server/config"
	"github.com/dmanankin/authvault/internal/server/httpapi"
	"github.com/dmanankin/authvault/internal/server/repositories/refreshtokens"
	"github.com/dmanankin/authvault/internal/server/repositories/repomanager"
	"github.com/dmanankin/authvault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
}

func NewApp(c *config.Config) (*App, error) {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{config: c, logger: logger, db: db}, nil
}

func (app *App) newRefreshStore(rm repomanager.RepositoryManager) (refreshtokens.Store, error) {
	switch app.config.RefreshStoreBackend {
	case config.RefreshStorePostgres:
		return rm.RefreshTokens(app.db), nil
	case config.RefreshStoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		return refreshtokens.NewRedisStore(rdb), nil
	case config.RefreshStoreMemory:
		return refreshtokens.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown refresh store backend: %q", app.config.RefreshStoreBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		app.logger.Error(ctx, "migrations failed", "error", err.Error())
		return
	}

	store, err := app.newRefreshStore(rm)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		return
	}

	issuer := auth.NewIssuer([]byte(app.config.SecretKey), app.config.AccessTokenValidityDuration)
	svc := services.NewService(rm.Users(app.db), store, issuer, app.logger, app.config)
	srv := httpapi.NewServer(app.config.EndpointAddr, app.logger, svc, issuer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()
	wg.Wait()

	_ = app.db.Close()
}
