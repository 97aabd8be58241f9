package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ignite/veribatch/internal/archive"
	"github.com/ignite/veribatch/internal/config"
	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/enrichment"
	"github.com/ignite/veribatch/internal/lifecycle"
	"github.com/ignite/veribatch/internal/notify"
	"github.com/ignite/veribatch/internal/objectstorage"
	"github.com/ignite/veribatch/internal/packer"
	"github.com/ignite/veribatch/internal/pkg/logger"
	"github.com/ignite/veribatch/internal/providerclient"
	"github.com/ignite/veribatch/internal/rategovernor"
	"github.com/ignite/veribatch/internal/resultapplier"
	"github.com/ignite/veribatch/internal/store/postgres"
	"github.com/ignite/veribatch/internal/sweeper"
)

// loop is satisfied by packer.Packer, lifecycle.Poller, and sweeper.Sweeper:
// each runs its own fixed-cadence background goroutine (spec.md §5).
type loop interface {
	Start()
	Stop()
}

func fatal(msg string, fields ...interface{}) {
	logger.Error(msg, fields...)
	os.Exit(1)
}

// worker runs the three per-check-type background loops (packer, lifecycle
// poller, sweeper) named in spec.md §5, plus the shared enrichment pipeline
// the lifecycle poller's result applier launches.
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
	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	if cfg.S3.Bucket == "" {
		fatal("S3 bucket is required (set S3_BUCKET or s3.bucket)")
	}
	objStore := objectstorage.NewStore(s3Client, cfg.S3.Bucket)

	if cfg.SQS.CompletionQueueURL == "" {
		fatal("completion queue URL is required (set COMPLETION_QUEUE_URL or sqs.completion_queue_url)")
	}
	publisher := notify.NewPublisher(sqsClient, cfg.SQS.CompletionQueueURL)

	archiveTable := os.Getenv("PROVIDER_BATCH_ARCHIVE_TABLE")
	if archiveTable == "" {
		archiveTable = "veribatch_provider_batch_archive"
	}
	archiver := archive.NewStore(dynamoClient, archiveTable)

	if cfg.Provider.BaseURL == "" {
		fatal("provider base URL is required (set PROVIDER_BASE_URL or provider.base_url)")
	}
	provider := providerclient.New(providerclient.Config{
		BaseURL:      cfg.Provider.BaseURL,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		TokenURL:     cfg.Provider.TokenURL,
		MaxRetries:   cfg.Provider.MaxRetries,
	})

	enrichmentRepo := postgres.NewEnrichmentRepo(db)
	enrichmentSvc := enrichment.NewService(enrichmentRepo, objStore, redisClient)

	var loops []loop
	for _, checkType := range domain.CheckTypes() {
		gate := rategovernor.NewGate(redisClient, postgres.NewRateGovernorRepo(db)).WithLimit(cfg.Batching.UsableRateLimit())

		p := packer.New(postgres.NewPackerRepo(db), provider, gate, checkType, cfg.Batching.PollInterval())
		loops = append(loops, p)

		applier := resultapplier.NewService(postgres.NewResultApplierRepo(db), publisher, archiver, enrichmentSvc)
		poller := lifecycle.New(postgres.NewLifecycleRepo(db), provider, applier, checkType, cfg.Batching.PollInterval()).
			WithTimeout(cfg.Batching.ProviderBatchTimeout())
		loops = append(loops, poller)

		sw := sweeper.New(postgres.NewSweeperRepo(db), publisher, enrichmentSvc, checkType, 30*time.Second)
		loops = append(loops, sw)

		logger.Info("started worker loops for check type", "check_type", checkType)
	}

	for _, l := range loops {
		go l.Start()
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("worker loops running")

	<-done
	logger.Info("shutting down worker loops")
	for _, l := range loops {
		l.Stop()
	}
	cancel()
	logger.Info("worker stopped")
}
