package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/3eLLenKa/review-rotation/internal/config"
	"github.com/3eLLenKa/review-rotation/internal/delivery/http/handlers"
	"github.com/3eLLenKa/review-rotation/internal/delivery/http/server"
	"github.com/3eLLenKa/review-rotation/internal/health"
	"github.com/3eLLenKa/review-rotation/internal/notifier"
	"github.com/3eLLenKa/review-rotation/internal/repository"
	"github.com/3eLLenKa/review-rotation/internal/repository/postgres"
	"github.com/3eLLenKa/review-rotation/internal/service"
)

type App struct {
	Server  *server.Server
	Service *service.Service
	Sweeper *service.Sweeper
	Health  *health.Checker

	log      *slog.Logger
	pg       *postgres.Postgres
	handlers *handlers.Handlers

	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

func NewApp(cfg *config.Config) (*App, error) {
	log := NewLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slog.SetDefault(log)

	pg, err := postgres.New(cfg.Database.Driver, cfg.Database.DSN(), postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Migrations.Enabled {
		if err := pg.Migrate(context.Background()); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	repo := repository.New(pg.Db)

	slack := notifier.New(log, cfg.Slack.BotToken, notifier.Config{
		ReviewChannelID: cfg.Slack.ReviewChannelID,
		ErrorsChannelID: cfg.Slack.ErrorsChannelID,
		Username:        cfg.Slack.BotUsername,
		IconURL:         cfg.Slack.BotIconURL,
		Attempts:        cfg.Retry.Attempts,
		Delay:           cfg.Retry.Delay,
		MaxDelay:        cfg.Retry.MaxDelay,
	})

	selector := service.NewSelector(log, repo.Reviewer, nil)
	svc := service.New(log, repo.Review, selector, slack, cfg.Rotation.RequestTimeout())
	sweeper := service.NewSweeper(log, repo.Review, svc, slack, cfg.Rotation.SweepInterval, cfg.Rotation.SweepWorkers)

	checker := health.NewChecker(log, slack, cfg.HealthCheck.Interval, cfg.App.Mode == "prod",
		health.Check{Name: "database", Pinger: pg},
		health.Check{Name: "slack", Pinger: slack},
	)

	h := handlers.NewHandlers(log, svc, slack, cfg.Slack.SigningSecret)

	if cfg.App.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	h.Register(router)

	addr := ":" + cfg.App.Port

	httpServer := server.New(log, addr, router)

	return &App{
		Server:   httpServer,
		Service:  svc,
		Sweeper:  sweeper,
		Health:   checker,
		log:      log,
		pg:       pg,
		handlers: h,
	}, nil
}

// Start launches the background jobs. The http server is run by the caller.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.jobs.Add(2)
	go func() {
		defer a.jobs.Done()
		a.Sweeper.Run(ctx)
	}()
	go func() {
		defer a.jobs.Done()
		a.Health.Run(ctx)
	}()
}

// Stop shuts the server down, waits for the jobs and in-flight interactions
// and closes the database.
func (a *App) Stop(ctx context.Context) {
	a.Server.Stop(ctx)

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.jobs.Wait()
		a.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("app: background work did not finish before shutdown timeout")
	}

	a.Close()
}

func (a *App) Close() {
	if err := a.pg.Close(); err != nil {
		a.log.Error("app: failed to close database", slog.Any("error", err))
	}
}

func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
