package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/api"
	"github.com/tendhq/tend/internal/circuitbreaker"
	"github.com/tendhq/tend/internal/config"
	"github.com/tendhq/tend/internal/db"
	"github.com/tendhq/tend/internal/metrics"
	"github.com/tendhq/tend/internal/observ"
	"github.com/tendhq/tend/internal/ratelimit"
	"github.com/tendhq/tend/internal/redis"
	"github.com/tendhq/tend/internal/scheduler"
	"github.com/tendhq/tend/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting tend gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database, logger)

	sched := scheduler.New(repo, scheduler.Config{
		PageSize: cfg.ReminderPageSize,
	}, logger)

	// Redis backs idempotent reminder creation; the service degrades to
	// non-idempotent creation when it is unavailable.
	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	redisClient, err := redis.New(ctx, redisConfig, logger)
	if err != nil {
		logger.Warn("redis unavailable, idempotency disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	}

	var idempotencyService *redis.IdempotencyService
	if redisClient != nil {
		idempotencyService = redis.NewIdempotencyService(redisClient, logger)
		defer redisClient.Close()
	}

	// One limiter instance per endpoint family, shared across requests.
	readLimiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.ReadLimitMax,
		Window:      time.Duration(cfg.ReadLimitWindow) * time.Second,
		MaxKeys:     cfg.RateLimitMaxKeys,
	}, logger)
	defer readLimiter.Close()

	writeLimiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.WriteLimitMax,
		Window:      time.Duration(cfg.WriteLimitWindow) * time.Second,
		MaxKeys:     cfg.RateLimitMaxKeys,
	}, logger)
	defer writeLimiter.Close()

	if cfg.NudgeEnabled {
		var sender worker.Sender
		if cfg.Env == "production" {
			sesSender, err := worker.NewSESSender(ctx, worker.SESConfig{
				Region:    cfg.AWSRegion,
				FromEmail: cfg.SESFromEmail,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to create SES nudge sender: %w", err)
			}

			breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("ses"), logger)
			sender = circuitbreaker.NewProtectedSender(sesSender, breaker, logger)
		} else {
			sender = worker.NewLogSender(logger)
		}

		w := worker.New(repo, sender, worker.Config{
			PollInterval: time.Duration(cfg.NudgePollInterval) * time.Second,
			BatchSize:    cfg.NudgeBatchSize,
			NudgeAfter:   time.Duration(cfg.NudgeAfterHours) * time.Hour,
		}, logger)

		workerCtx, workerCancel := context.WithCancel(context.Background())
		defer workerCancel()

		go w.Start(workerCtx)

		logger.Info("nudge worker started",
			zap.Int("poll_interval_s", cfg.NudgePollInterval),
			zap.Int("nudge_after_h", cfg.NudgeAfterHours),
		)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	var handler *api.Handler
	if idempotencyService != nil {
		handler = api.NewHandlerWithIdempotency(logger, sched, repo, idempotencyService)
	} else {
		handler = api.NewHandler(logger, sched, repo)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(api.RateLimitMiddleware(readLimiter, "read", logger, api.OwnerKeyFunc))

			r.Get("/reminders", handler.ListReminders)
		})

		r.Group(func(r chi.Router) {
			r.Use(api.RateLimitMiddleware(writeLimiter, "write", logger, api.OwnerKeyFunc))

			r.Post("/reminders", handler.CreateReminder)
			r.Post("/reminders/dismiss-all", handler.DismissAllReminders)
			r.Post("/reminders/{id}/read", handler.MarkReminderRead)
			r.Post("/reminders/{id}/snooze", handler.SnoozeReminder)
			r.Post("/reminders/{id}/dismiss", handler.DismissReminder)
		})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			logger.Error("health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
