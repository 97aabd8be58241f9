package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ignite/veribatch/internal/api"
	"github.com/ignite/veribatch/internal/config"
	"github.com/ignite/veribatch/internal/credit"
	"github.com/ignite/veribatch/internal/enrichment"
	"github.com/ignite/veribatch/internal/notify"
	"github.com/ignite/veribatch/internal/objectstorage"
	"github.com/ignite/veribatch/internal/pkg/logger"
	"github.com/ignite/veribatch/internal/store/postgres"
	"github.com/ignite/veribatch/internal/userbatch"
)

func fatal(msg string, fields ...interface{}) {
	logger.Error(msg, fields...)
	os.Exit(1)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fatal("load config", "error", err)
	}

	if cfg.Postgres.DSN == "" {
		fatal("postgres DSN is required (set DATABASE_URL or postgres.dsn)")
	}
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		fatal("connect to postgres", "error", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		fatal("ping postgres", "error", err)
	}
	logger.Info("connected to postgres")

	if cfg.Redis.URL == "" {
		fatal("redis URL is required (set REDIS_URL or redis.url); the rate governor depends on it")
	}
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		fatal("parse redis URL", "error", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fatal("ping redis", "error", err)
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("load AWS config", "error", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)

	if cfg.S3.Bucket == "" {
		fatal("S3 bucket is required (set S3_BUCKET or s3.bucket)")
	}
	objStore := objectstorage.NewStore(s3Client, cfg.S3.Bucket)

	// notifier is left a nil interface, not a nil *notify.Publisher, when no
	// completion queue is configured: assigning a typed nil pointer here
	// would make userbatch.Service's nil check on the interface pass and
	// then panic on first use.
	var notifier userbatch.Notifier
	if cfg.SQS.CompletionQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg)
		notifier = notify.NewPublisher(sqsClient, cfg.SQS.CompletionQueueURL)
	}
	enrichmentSvc := enrichment.NewService(postgres.NewEnrichmentRepo(db), objStore, redisClient)

	userBatchRepo := postgres.NewUserBatchRepo(db)
	creditRepo := postgres.NewCreditRepo(db)

	creditSvc := credit.NewService(creditRepo)
	batchSvc := userbatch.NewService(userBatchRepo, creditSvc, notifier, enrichmentSvc)

	batchHandlers := api.NewBatchHandlers(batchSvc, objStore)
	health := api.NewHealthChecker(db, redisClient, s3Client, cfg.S3.Bucket)
	server := api.NewServer(health, batchHandlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting batch submission API", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			fatal("server error", "error", err)
		}
	}()

	logger.Info("API server ready")

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
