package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/boosthive/backend/internal/auth"
	"github.com/boosthive/backend/internal/config"
	"github.com/boosthive/backend/internal/dashboard"
	"github.com/boosthive/backend/internal/execution"
	"github.com/boosthive/backend/internal/ledger"
	"github.com/boosthive/backend/internal/repository"
	"github.com/boosthive/backend/internal/router"
	"github.com/boosthive/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	trustLogRepo := repository.NewTrustLogRepo(pool)
	banRepo := repository.NewBanRepo(pool)
	walletRepo := repository.NewWalletRepo(pool)
	lockRepo := repository.NewEarningsLockRepo(pool)
	withdrawRepo := repository.NewWithdrawRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	proofRepo := repository.NewProofRepo(pool)
	notifRepo := repository.NewNotificationRepo(pool)

	// Services
	ledgerSvc := ledger.NewService(walletRepo)
	notifier := services.NewNotificationService(notifRepo, logger)
	policy := services.PolicyFromConfig(cfg.Policy)
	earningsSvc := services.NewEarningsService(lockRepo, userRepo, ledgerSvc, policy)
	trustSvc := services.NewTrustService(pool, userRepo, trustLogRepo, banRepo, notifier, policy)
	withdrawalSvc := services.NewWithdrawalService(pool, userRepo, withdrawRepo, earningsSvc, ledgerSvc, notifier, logger)

	// Proof verifier strategy
	var verifier services.ProofVerifier
	switch cfg.OCR.Mode {
	case "tesseract":
		verifier = services.NewOCRVerifier(services.NewTesseractExtractor(cfg.OCR.Binary), logger)
	default:
		slog.Info("OCR disabled, using mock proof verifier", "mode", cfg.OCR.Mode)
		verifier = services.NewMockVerifier(logger)
	}

	// Background verification worker
	workers := river.NewWorkers()
	river.AddWorker(workers, &execution.VerifyProofWorker{
		Pool:          pool,
		Proofs:        proofRepo,
		Tasks:         taskRepo,
		Users:         userRepo,
		Ledger:        ledgerSvc,
		Earnings:      earningsSvc,
		Verifier:      verifier,
		Notifier:      notifier,
		VerifyTimeout: cfg.OCR.Timeout,
		Logger:        logger,
	})

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Redis-backed proof submission rate limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Cannot reach Redis. Ensure Redis is running, e.g. make dev-up", "error", err)
		os.Exit(1)
	}
	limiter := services.NewProofRateLimiter(
		services.NewRedisWindowStore(redisClient),
		cfg.Rate.ProofsPerMinute,
		cfg.Rate.ProofsPer10Sec,
	)

	// Auth & dashboard
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandler := auth.NewHandler(authSvc, logger)
	dashHandler := dashboard.NewHandler(authSvc, userRepo, walletRepo, trustLogRepo, banRepo, notifRepo, earningsSvc, logger)

	apiV1Router := router.New(authHandler, dashHandler)

	validator, err := services.NewValidator(cfg.Server.SchemaDir)
	if err != nil {
		slog.Error("Schema validator init failed", "error", err, "schema_dir", cfg.Server.SchemaDir)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiV1Router)

	RegisterV1Routes(mux, v1Deps{
		authSvc:     authSvc,
		userRepo:    userRepo,
		taskRepo:    taskRepo,
		proofRepo:   proofRepo,
		wdRepo:      withdrawRepo,
		earnings:    earningsSvc,
		withdrawals: withdrawalSvc,
		trust:       trustSvc,
		limiter:     limiter,
		validator:   validator,
		insertJob: func(ctx context.Context, args execution.VerifyProofJobArgs) error {
			_, err := riverClient.Insert(ctx, args, nil)
			return err
		},
		tempDir: cfg.OCR.TempDir,
		logger:  logger,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (processes verification jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Server.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
