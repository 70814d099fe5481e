package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/taskquest/taskquest-api/internal/config"
	"github.com/taskquest/taskquest-api/internal/database"
	"github.com/taskquest/taskquest-api/internal/gamification"
	"github.com/taskquest/taskquest-api/internal/handlers"
	"github.com/taskquest/taskquest-api/internal/logger"
	"github.com/taskquest/taskquest-api/internal/middleware"
	"github.com/taskquest/taskquest-api/internal/queue"
	"github.com/taskquest/taskquest-api/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "taskquest-api"

func main() {
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else if tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint); err != nil {
			zapLogger.Warn("otel_tracer_init_failed", zap.Error(err))
		} else {
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("otel_tracer_shutdown_failed", zap.Error(err))
				}
			}()
		}
	}

	db := database.New(cfg.DatabaseURL, database.WithLogger(zapLogger))
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database", zap.Error(err))
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := db.Ping(pingCtx); err != nil {
		pingCancel()
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	pingCancel()
	zapLogger.Info("connected_to_database")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue := connectQueue(cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq", zap.Error(err))
		}
	}()

	userRepo := database.NewUserRepository(db)
	taskRepo := database.NewTaskRepository(db)
	statsRepo := database.NewStatsRepository(db)
	badgeRepo := database.NewBadgeRepository(db)
	achievementRepo := database.NewAchievementRepository(db)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := badgeRepo.SeedDefault(seedCtx); err != nil {
		seedCancel()
		zapLogger.Fatal("failed_to_seed_badges", zap.Error(err))
	}
	seedCancel()

	engine := gamification.NewEngine(statsRepo, badgeRepo, achievementRepo, taskRepo,
		gamification.WithLogger(zapLogger))

	if cfg.AuthJWKSURL == "" {
		zapLogger.Fatal("auth_jwks_url_not_configured")
	}
	jwks, err := middleware.NewJWKSCache(context.Background(), cfg.AuthJWKSURL)
	if err != nil {
		zapLogger.Fatal("failed_to_load_jwks", zap.Error(err))
	}

	rateLimitMW, err := middleware.RateLimit(redisClient, middleware.DefaultRateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	taskHandler := handlers.NewTaskHandler(taskRepo, engine, zapLogger)
	gamificationHandler := handlers.NewGamificationHandler(engine, zapLogger)
	extractHandler := handlers.NewExtractHandler(jobQueue, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, redisClient, jobQueue)

	r := mux.NewRouter()
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS([]string{cfg.FrontendURL}))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	// Health stays outside auth and rate limiting so orchestrators can probe.
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rateLimitMW)
	api.Use(middleware.Auth(jwks, userRepo, cfg.AuthIssuer, cfg.AuthAudience, zapLogger))

	taskHandler.RegisterRoutes(api.PathPrefix("/tasks").Subrouter())
	gamificationHandler.RegisterRoutes(api.PathPrefix("/gamification").Subrouter())
	api.HandleFunc("/extract", extractHandler.Extract).Methods(http.MethodPost)

	// Preflight requests must match a route for the CORS middleware to run.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// connectQueue retries the broker connection to ride out RabbitMQ startup
// ordering in compose and k8s deployments.
func connectQueue(amqpURL string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(amqpURL, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return jobQueue
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("rabbitmq_connect_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(lastErr))
	return nil
}
