package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cstore/config"
	"cstore/internal/adapter/chain"
	httpHandler "cstore/internal/adapter/http/handler"
	pgStorage "cstore/internal/adapter/storage/postgres"
	redisStorage "cstore/internal/adapter/storage/redis"
	"cstore/internal/core/ports"
	"cstore/internal/metrics"
	"cstore/internal/service"
	"cstore/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting escrow engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	escrowRepo := pgStorage.NewEscrowRepo(pool)
	approvalRepo := pgStorage.NewTransactionApprovalRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	orderRepo := pgStorage.NewOrderRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize chain verification backends
	ethVerifier, err := chain.NewEthereumVerifier(cfg.Chain.EthereumRPC, cfg.Chain.USDTContract, cfg.Chain.EthMinConfirmations)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Ethereum RPC")
	}
	explorerVerifier := chain.NewExplorerVerifier(cfg.Chain.ExplorerBaseURL, cfg.Chain.ExplorerTimeout, nil)
	verifier := chain.NewMux(ethVerifier, explorerVerifier)

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)
	fees := service.NewFeeCalculator()

	escrowSvc := service.NewEscrowService(escrowRepo, verifier, fees, auditSvc, service.EscrowConfig{
		MultiSigThresholdUSD: cfg.Escrow.MultiSigThresholdUSD,
		MultiSigApprovals:    cfg.Escrow.MultiSigApprovals,
		AutoReleaseWindow:    cfg.Escrow.AutoReleaseWindow,
	}, log)
	approvalSvc := service.NewApprovalService(
		approvalRepo, paymentRepo, orderRepo, walletRepo,
		transactor, idempotencyCache, auditSvc, log,
	)

	// Initialize metrics registry
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		EscrowSvc:      escrowSvc,
		ApprovalSvc:    approvalSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Registry:       registry,
		Logger:         log,
	})

	// Start the expiry sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeper := service.NewSweeper(escrowSvc, cfg.Escrow.SweepInterval, log)
	go sweeper.Start(sweepCtx)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
