package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/builders-garden/swifty/internal/config"
	"github.com/builders-garden/swifty/internal/domain/entities"
	"github.com/builders-garden/swifty/internal/infrastructure/blockchain"
	"github.com/builders-garden/swifty/internal/infrastructure/datasources/postgres"
	"github.com/builders-garden/swifty/internal/infrastructure/jobs"
	"github.com/builders-garden/swifty/internal/infrastructure/lifi"
	"github.com/builders-garden/swifty/internal/infrastructure/metrics"
	"github.com/builders-garden/swifty/internal/infrastructure/models"
	"github.com/builders-garden/swifty/internal/infrastructure/repositories"
	"github.com/builders-garden/swifty/internal/infrastructure/settlementapi"
	"github.com/builders-garden/swifty/internal/interfaces/http/handlers"
	"github.com/builders-garden/swifty/internal/interfaces/http/middleware"
	"github.com/builders-garden/swifty/internal/usecases"
	"github.com/builders-garden/swifty/pkg/jwt"
	"github.com/builders-garden/swifty/pkg/logger"
	"github.com/builders-garden/swifty/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		sqlDB, err := postgres.Open(dsn)
		if err != nil {
			return nil, err
		}
		return postgres.OpenGorm(sqlDB)
	}
	runServer     = func(srv *http.Server) error { return srv.ListenAndServe() }
	getStdDB      = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
	notifySignals = func(c chan<- os.Signal) { signal.Notify(c, syscall.SIGINT, syscall.SIGTERM) }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redis.Close()
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.Warn(context.Background(), "Database not available, endpoints will return errors", zap.Error(err))
	} else {
		if err := models.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info(context.Background(), "Connected to PostgreSQL via GORM")
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry)

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	linkRepo := repositories.NewPaymentLinkRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db)
	journalRepo := repositories.NewSettlementJournalRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// Checkout signer, starting on the settlement chain
	chains := blockchain.NewChainRegistry(cfg.ChainRPC)
	settlementChain, ok := chains.Lookup(cfg.Checkout.SettlementChainID)
	if !ok {
		return fmt.Errorf("unknown settlement chain %d", cfg.Checkout.SettlementChainID)
	}
	clientFactory := blockchain.NewClientFactory()
	defer clientFactory.Close()

	wallet, err := blockchain.NewKeyedWallet(cfg.Checkout.PrivateKey, clientFactory, settlementChain)
	if err != nil {
		return fmt.Errorf("failed to initialize checkout wallet: %w", err)
	}
	logger.Info(context.Background(), "Checkout wallet ready",
		zap.String("address", wallet.Address().Hex()),
		zap.Uint64("chainId", settlementChain.ChainID),
	)

	httpClient := &fasthttp.Client{
		Name:                "swifty",
		MaxIdleConnDuration: time.Minute,
	}
	aggregator := lifi.NewClient(lifi.Config{
		BaseURL:    cfg.Aggregator.BaseURL,
		APIKey:     cfg.Aggregator.APIKey,
		Integrator: cfg.Aggregator.Integrator,
		Slippage:   cfg.Aggregator.Slippage,
	}, httpClient)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(registry)

	// Usecases
	catalog := entities.DefaultCatalog()
	timeouts := usecases.Timeouts{
		ChainSwitch: cfg.Timeouts.ChainSwitch,
		Aggregator:  cfg.Timeouts.Aggregator,
		Price:       cfg.Timeouts.Price,
		Signer:      cfg.Timeouts.Signer,
		Receipt:     cfg.Timeouts.Receipt,
		Settlement:  cfg.Timeouts.Settlement,
		Attempt:     cfg.Timeouts.Attempt,
	}

	settlementUsecase := usecases.NewSettlementUsecase(transactionRepo, subscriptionRepo, userRepo, uow)
	var settlementAPI usecases.SettlementAPI = settlementUsecase
	if cfg.Settlement.APIURL != "" {
		settlementAPI = settlementapi.NewClient(cfg.Settlement.APIURL, httpClient)
		logger.Info(context.Background(), "Recording settlements remotely", zap.String("url", cfg.Settlement.APIURL))
	}
	settlementRecorder := usecases.NewSettlementRecorder(settlementAPI, timeouts)

	chainAdapter := usecases.NewChainAdapter(wallet, chains, timeouts)
	allowances := usecases.NewAllowanceManager(wallet, timeouts)
	orchestrator := usecases.NewPaymentOrchestrator(usecases.OrchestratorDeps{
		Links:      linkRepo,
		Journal:    journalRepo,
		Catalog:    catalog,
		Wallet:     wallet,
		Chains:     chainAdapter,
		Allowances: allowances,
		Routes:     usecases.NewRouteResolver(aggregator, timeouts),
		Transfers:  usecases.NewValueTransferExecutor(wallet, chainAdapter, allowances, timeouts),
		Recorder:   settlementRecorder,
		Amounts:    usecases.NewTokenAmountCalculator(aggregator, timeouts),
		Locker:     redis.NewLock(redis.GetClient()),
		Registry:   usecases.NewAttemptRegistry(),
		Metrics:    recorder,
	}, usecases.OrchestratorConfig{
		SettlementChainID: cfg.Checkout.SettlementChainID,
		SettlementToken:   common.HexToAddress(cfg.Checkout.SettlementToken),
		Router:            common.HexToAddress(cfg.Checkout.RouterAddress),
		LockTTL:           cfg.Redis.AttemptLockTTL,
		Timeouts:          timeouts,
	})
	recoveryUsecase := usecases.NewSettlementRecoveryUsecase(journalRepo, settlementRecorder, recorder, cfg.Recovery.MaxRetries)
	paymentLinkUsecase := usecases.NewPaymentLinkUsecase(linkRepo, userRepo, catalog, uow)

	// Handlers
	paymentLinkHandler := handlers.NewPaymentLinkHandler(paymentLinkUsecase)
	attemptHandler := handlers.NewAttemptHandler(orchestrator, recoveryUsecase)
	settlementHandler := handlers.NewSettlementHandler(settlementUsecase)

	idempotencyStore := redis.NewResponseStore("idempotency", cfg.Timeouts.Attempt, cfg.Redis.IdempotencyTTL)

	// Background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recoveryJob := jobs.NewSettlementRecoveryJob(recoveryUsecase, cfg.Recovery.Interval, cfg.Recovery.BatchSize)
	go recoveryJob.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware("/health", "/metrics"))

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r, registry)
	registerAPIV1Routes(r, routeDeps{
		paymentLinkHandler:    paymentLinkHandler,
		attemptHandler:        attemptHandler,
		settlementHandler:     settlementHandler,
		authMiddleware:        middleware.AuthMiddleware(jwtService),
		idempotencyMiddleware: middleware.IdempotencyMiddleware(idempotencyStore),
	})

	for _, route := range r.Routes() {
		logger.Debug(context.Background(), "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	notifySignals(quit)
	defer signal.Stop(quit)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-quit:
		case <-ctx.Done():
			return
		}
		logger.Info(context.Background(), "Shutting down server", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		recoveryJob.Stop()
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(context.Background(), "Server shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info(context.Background(), "Swifty backend starting",
		zap.String("port", cfg.Server.Port),
		zap.String("api", "http://localhost:"+cfg.Server.Port+"/api/v1"),
	)

	if err := runServer(srv); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		<-stopped
	}
	logger.Info(context.Background(), "Server stopped")
	return nil
}
