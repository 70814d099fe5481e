package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskquest/taskquest-api/internal/config"
	"github.com/taskquest/taskquest-api/internal/database"
	"github.com/taskquest/taskquest-api/internal/gamification"
	"github.com/taskquest/taskquest-api/internal/logger"
	"github.com/taskquest/taskquest-api/internal/queue"
	"github.com/taskquest/taskquest-api/internal/services/ai"
	"github.com/taskquest/taskquest-api/internal/workers"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_model", cfg.AIModel),
	)

	if cfg.OpenAIKey == "" {
		zapLogger.Fatal("openai_api_key_not_configured")
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

	taskRepo := database.NewTaskRepository(db)
	statsRepo := database.NewStatsRepository(db)
	badgeRepo := database.NewBadgeRepository(db)
	achievementRepo := database.NewAchievementRepository(db)

	engine := gamification.NewEngine(statsRepo, badgeRepo, achievementRepo, taskRepo,
		gamification.WithLogger(zapLogger))

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	provider := ai.NewOpenAIExtractorWithLogger(
		cfg.OpenAIKey,
		cfg.AIBaseURL,
		cfg.AIModel,
		zapLogger,
		debugMode,
	)
	zapLogger.Info("initialized_extraction_provider", zap.String("model", cfg.AIModel))

	extractor := workers.NewTaskExtractor(provider, taskRepo, engine, jobQueue, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Dead letters older than a day have been retried or inspected already.
	dlqGC := queue.NewGarbageCollector(jobQueue, zapLogger, 1*time.Hour, 24*time.Hour)
	go func() {
		if err := dlqGC.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("dlq_garbage_collector_stopped", zap.Error(err))
		}
	}()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return
				}
				if err := extractor.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("job_processing_failed",
						zap.String("job_id", msg.GetJob().ID.String()),
						zap.String("job_type", string(msg.GetJob().Type)),
						zap.Error(err),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	<-sigChan
	zapLogger.Info("shutdown_signal_received")
	cancel()
	zapLogger.Info("worker_stopped")
}
