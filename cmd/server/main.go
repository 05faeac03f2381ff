package main

import (
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"fbrgate/internal/config"
	"fbrgate/internal/email/noop"
	"fbrgate/internal/email/ses"
	"fbrgate/internal/fbr"
	"fbrgate/internal/handler"
	"fbrgate/internal/ingest"
	"fbrgate/internal/jobs"
	"fbrgate/internal/locker"
	"fbrgate/internal/port"
	"fbrgate/internal/repository/postgres"
	"fbrgate/internal/router"
	"fbrgate/internal/service"
	s3storage "fbrgate/internal/storage/s3"
	"fbrgate/internal/validator"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Repositories
	businessRepo := postgres.NewBusinessRepo(db)
	customerRepo := postgres.NewCustomerRepo(db)
	productRepo := postgres.NewProductRepo(db)
	invoiceRepo := postgres.NewInvoiceRepo(db)
	sequenceAlloc := postgres.NewSequenceAllocator(db)
	batchRepo := postgres.NewBatchRepo(db)
	batchItemRepo := postgres.NewBatchItemRepo(db)
	transactor := postgres.NewTransactor(db)

	// External collaborators
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	fbrClient := fbr.NewClient(&cfg.FBR)
	submissionLocker := locker.NewRedisLockerWithClient(redisClient)
	alertSender, err := buildAlertSender(cfg)
	if err != nil {
		return err
	}

	// Services
	backoff := service.BackoffPolicy{
		Initial:     cfg.FBR.BackoffInitial,
		Max:         cfg.FBR.BackoffMax,
		MaxAttempts: cfg.FBR.MaxAttempts,
	}
	invoiceSvc := service.NewInvoiceService(
		invoiceRepo, businessRepo, customerRepo, sequenceAlloc, transactor,
		fbrClient, submissionLocker, alertSender, backoff, cfg.FBR.LeaseTTL)
	businessSvc := service.NewBusinessService(businessRepo, submissionLocker)
	catalogSvc := service.NewCatalogService(businessRepo, customerRepo, productRepo)

	ingestor := ingest.NewIngestor(batchItemRepo, cfg.Batch.MaxRows)
	rowValidator := validator.NewRowValidator(customerRepo, productRepo)
	batchWorker := service.NewBatchWorker(batchItemRepo, batchRepo, invoiceSvc, cfg.Batch.WorkerPoolSize)
	batchSvc := service.NewBatchService(
		batchRepo, batchItemRepo, businessRepo, s3Client,
		ingestor, rowValidator, batchWorker, cfg.S3.Bucket, cfg.S3.MaxFileSizeMB)

	// Background retry sweep
	sweeper, err := jobs.NewRetrySweeper(batchRepo, batchSvc, cfg.Batch.SweepInterval)
	if err != nil {
		return fmt.Errorf("failed to initialize retry sweeper: %w", err)
	}
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start retry sweeper: %w", err)
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			log.Printf("main: stopping retry sweeper: %v", err)
		}
	}()

	// Handlers
	businessH := handler.NewBusinessHandler(businessSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	invoiceH := handler.NewInvoiceHandler(invoiceSvc)
	batchH := handler.NewBatchHandler(batchSvc)
	healthH := handler.NewHealthHandler(db, redisClient)

	r := router.Setup(cfg, businessH, catalogH, invoiceH, batchH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func buildAlertSender(cfg *config.Config) (port.AlertSender, error) {
	if cfg.Email.Provider == "ses" {
		sender, err := ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES sender: %w", err)
		}
		return sender, nil
	}
	return noop.NewNoopSender(), nil
}
