package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/Kadacheahmedrami/Email-Craft/internal/config"
	"github.com/Kadacheahmedrami/Email-Craft/internal/handler"
	"github.com/Kadacheahmedrami/Email-Craft/internal/sendmail"
	"github.com/Kadacheahmedrami/Email-Craft/internal/storage"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/cache"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/cookie"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/db"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/emailrender"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/gmail"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/health"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/logger"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/redis"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/token"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(cfg.Sentry, logger.RequestID(), logger.UserID())
	slog.SetDefault(log)

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, pool, storage.Migrations(), cfg.DB.MigrationsTable, log); err != nil {
		return err
	}

	checks := health.Checks{"postgres": db.Healthcheck(pool)}
	shutdownHooks := []func(context.Context) error{db.Shutdown(pool)}

	var renderCache cache.Cache[string]
	if cfg.RedisURL != "" {
		client, err := redis.Open(ctx, cfg.RedisURL, cfg.Redis)
		if err != nil {
			return err
		}
		renderCache = cache.NewRedis[string](client, nil,
			cache.WithPrefix("render"),
			cache.WithRedisDefaultTTL(cfg.RenderCacheTTL))
		checks["redis"] = redis.Healthcheck(client)
		shutdownHooks = append(shutdownHooks, redis.Shutdown(client))
	} else {
		mem := cache.NewMemory[string](
			cache.WithDefaultTTL(cfg.RenderCacheTTL),
			cache.WithMaxEntries(512))
		renderCache = mem
		shutdownHooks = append(shutdownHooks, func(ctx context.Context) error { return mem.Close() })
	}

	grants := storage.NewGrantRepo(pool)
	records := storage.NewSendRecordRepo(pool)

	tokens := token.NewManager(grants, cfg.Token, token.WithLogger(log))
	connector := token.NewConnector(cfg.Token, cfg.OAuthRedirectURL)
	transport := gmail.New(cfg.Gmail)
	renderer := emailrender.New(emailrender.WithCache(renderCache))

	orchestrator := sendmail.NewOrchestrator(tokens, transport, renderer, records, log)

	cookies, err := cookie.New(cfg.CookieSecret)
	if err != nil {
		return err
	}
	h := handler.New(orchestrator, records, grants, connector, cookies, handler.WithLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(handler.TrustedHeaderIdentity)

	r.Get("/health/live", health.Liveness())
	r.Get("/health/ready", health.Readiness(checks, log))
	h.Routes(r)

	// Closes out PENDING rows orphaned by crashes mid-send.
	reaper := sendmail.NewReaper(records, cfg.ReaperMaxAge, log)
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.ReaperSchedule, func() {
		reaper.Sweep(context.Background())
	}); err != nil {
		return err
	}
	sweeper.Start()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("address", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	<-sweeper.Stop().Done()

	for _, hook := range shutdownHooks {
		if err := hook(shutdownCtx); err != nil {
			errs = append(errs, err)
			log.Error("shutdown hook failed", slog.Any("error", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Info("shutdown completed")
	return nil
}
