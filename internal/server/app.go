// Package server initializes and runs the authentication server: it opens
// the database, runs migrations, wires services, the rate limiter and the
// retention sweeper, and serves the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moviemate/authkeeper/internal/logging"
	"github.com/moviemate/authkeeper/internal/server/config"
	"github.com/moviemate/authkeeper/internal/server/httpapi"
	"github.com/moviemate/authkeeper/internal/server/maintenance"
	"github.com/moviemate/authkeeper/internal/server/ratelimit"
	"github.com/moviemate/authkeeper/internal/server/repositories/repomanager"
	"github.com/moviemate/authkeeper/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
	limiter     ratelimit.Limiter
	sweeper     *maintenance.Sweeper
}

func NewApp(cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	as := services.NewAuthService(db, rm, cfg)
	sweeper := maintenance.NewSweeper(db, rm, logger, cfg.SweepInterval, cfg.RetentionWindow)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		authService: as,
		limiter:     limiter,
		sweeper:     sweeper,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	handler := httpapi.NewAuthHandler(app.authService, app.db, app.logger)
	router := httpapi.NewRouter(handler, []byte(app.config.AccessTokenSecret), app.limiter, app.logger)

	srv := &http.Server{Addr: app.config.EndpointAddr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
