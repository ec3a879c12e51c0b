package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/facades"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/handlers"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/jobs"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/jwt"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/metrics"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/middlewares"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/repositories"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	pb "github.com/sbilibin2017/proto-exchange/exchange"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title gw-deposit-reconciler API
// @version 1.0.0
// @description Crypto deposit requests, transaction monitoring and USD crediting
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Version: %s, Commit: %s, Build: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// depositStore is the durable side of the reconciler.
type depositStore interface {
	services.DepositRequestStore
	services.TransactionLedger
	services.BalanceStore
	Count(ctx context.Context) (int64, error)
}

type sqlStore struct {
	*repositories.DepositRequestRepository
	*repositories.LedgerRepository
	*repositories.UserRepository
}

// openStore connects to Postgres and applies the schema, or returns the
// in-memory store when STORE=memory.
func openStore(ctx context.Context, cfg config) (depositStore, func(), error) {
	if cfg.Store == "memory" {
		logger.Log.Warn("Using in-memory store, data is lost on restart")
		return repositories.NewInMemoryStore(), func() {}, nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PGUser, cfg.PGPassword, cfg.PGHost, cfg.PGPort, cfg.PGDB)
	logger.Log.Infof("Connecting to PostgreSQL at %s:%d/%s", cfg.PGHost, cfg.PGPort, cfg.PGDB)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.PGMaxOpenConns)
	db.SetMaxIdleConns(cfg.PGMaxIdleConns)

	if err := repositories.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("postgres migration: %w", err)
	}

	store := sqlStore{
		DepositRequestRepository: repositories.NewDepositRequestRepository(db),
		LedgerRepository:         repositories.NewLedgerRepository(db),
		UserRepository:           repositories.NewUserRepository(db),
	}
	return store, func() { db.Close() }, nil
}

// openRedis returns nil when no Redis host is configured.
func openRedis(ctx context.Context, cfg config) (*redis.Client, error) {
	if cfg.RedisHost == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	return rdb, nil
}

// newRateSource builds the upstream rate client selected by RATE_SOURCE.
func newRateSource(cfg config) (services.RateSource, func(), error) {
	if cfg.RateSource == "coingecko" {
		return facades.NewCoinGeckoFacade(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, nil), func() {}, nil
	}

	grpcAddr := fmt.Sprintf("%s:%s", cfg.GWHost, cfg.GWPort)
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("grpc client for %s: %w", grpcAddr, err)
	}
	return facades.NewExchangeRatesGRPCFacade(pb.NewExchangeServiceClient(conn)), func() { conn.Close() }, nil
}

// newProbers registers one adapter per chain. EVM chains without an RPC URL
// are skipped; their transactions resolve to the error outcome.
func newProbers(cfg config) *facades.ProberRegistry {
	reg := facades.NewProberRegistry()

	evm := []struct {
		url, chain string
		currency   string
	}{
		{cfg.ETHRPCURL, "ethereum", models.ETH},
		{cfg.BSCRPCURL, "bsc", models.BNB},
	}
	for _, c := range evm {
		if c.url == "" {
			logger.Log.Warnw("No RPC URL configured, chain disabled", "currency", c.currency)
			continue
		}
		p, err := facades.DialEVMProber(c.url, c.chain, cfg.DepositAddresses[c.currency])
		if err != nil {
			logger.Log.Errorw("Failed to dial EVM RPC", "currency", c.currency, "error", err)
			continue
		}
		reg.Register(p, c.currency)
	}

	usdt := facades.TronUSDT
	usdt.Contract = cfg.TronUSDTAddress

	reg.Register(facades.NewTONProber(cfg.TONCenterURL, cfg.TONCenterAPIKey, cfg.DepositAddresses[models.TON], nil), models.TON)
	reg.Register(facades.NewTronProber(cfg.TronScanURL, cfg.TronScanAPIKey, facades.TronTRX, cfg.DepositAddresses[models.TRX], nil), models.TRX)
	reg.Register(facades.NewTronProber(cfg.TronScanURL, cfg.TronScanAPIKey, usdt, cfg.DepositAddresses[models.USDT], nil), models.USDT)
	reg.Register(facades.NewBTCProber(cfg.EsploraURL, cfg.DepositAddresses[models.BTC], nil), models.BTC)
	return reg
}

// newKafkaWriter builds the notification producer. Notify runs on poll workers,
// so the batch timeout bounds how long a settlement waits on delivery.
func newKafkaWriter(cfg config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: cfg.KafkaBatchTimeout,
	}
}

// newRouter mounts the API, metrics and swagger routes.
func newRouter(cfg config, rec *services.DepositReconciler, tokener middlewares.Tokener) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", cfg.AppHost, cfg.AppPort)),
	))

	// Protected routes with JWT middleware
	r.Group(func(r chi.Router) {
		r.Use(middlewares.AuthMiddleware(tokener))
		r.Post("/api/v1/deposits", handlers.NewCreateDepositHandler(rec))
		r.Post("/api/v1/deposits/transactions", handlers.NewRegisterTransactionHandler(rec))
		r.Get("/api/v1/deposits/{id}", handlers.NewGetDepositHandler(rec))
		r.Delete("/api/v1/deposits/{id}", handlers.NewCancelDepositHandler(rec))
		r.Get("/api/v1/balance", handlers.NewGetBalanceHandler(rec))
		r.Get("/api/v1/credits", handlers.NewListCreditsHandler(rec))
	})

	return r
}

// run initializes logging, stores, upstream clients and background jobs,
// serves HTTP and handles graceful shutdown.
func run(ctx context.Context, cfg config) error {
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	metrics.Init()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if n, err := store.Count(ctx); err != nil {
		logger.Log.Warnw("Failed to count ledger entries", "error", err)
	} else {
		logger.Log.Infow("Ledger loaded", "entries", n)
	}

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var monitor services.MonitoringStore
	switch {
	case cfg.MonitorStore == "redis" && rdb != nil:
		monitor = repositories.NewMonitoringRedisRepository(rdb)
	case cfg.MonitorStore == "redis":
		return fmt.Errorf("MONITOR_STORE=redis requires REDIS_HOST")
	default:
		logger.Log.Warn("Using in-memory monitoring store")
		monitor = repositories.NewInMemoryMonitoringStore()
	}

	var rateCache services.RateCache
	if rdb != nil {
		rateCache = repositories.NewExchangeRateCacheRepository(rdb, cfg.RedisExp)
	}

	source, closeSource, err := newRateSource(cfg)
	if err != nil {
		return err
	}
	defer closeSource()
	rates := services.NewExchangeRateProvider(source, rateCache, models.SupportedCurrencies())
	rates.Warm(ctx)

	var writer services.KafkaWriter
	if len(cfg.KafkaBrokers) > 0 {
		kw := newKafkaWriter(cfg)
		defer kw.Close()
		writer = kw
	} else {
		logger.Log.Warn("KAFKA_BROKERS not set, notifications are disabled")
	}

	reconciler := services.NewDepositReconciler(
		store, store, store,
		monitor,
		newProbers(cfg),
		rates,
		services.NewKafkaNotifier(writer),
		cfg.DepositAddresses,
		services.WithDepositTimeout(cfg.DepositTimeout),
		services.WithWorkers(cfg.PollWorkers),
	)

	tokener := jwt.New(jwt.WithSecretKey(cfg.JWTSecretKey), jwt.WithExpiration(cfg.JWTExp))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort),
		Handler: newRouter(cfg, reconciler, tokener),
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	manager := jobs.New()
	manager.Register(jobs.Periodic{Name: "rates", Interval: cfg.RateRefreshInterval, Run: rates.Refresh})
	manager.Register(jobs.Periodic{Name: "poller", Interval: cfg.PollInterval, Run: reconciler.PollOnce})
	manager.Register(jobs.Periodic{Name: "sweeper", Interval: cfg.SweepInterval, Run: func(ctx context.Context) error {
		_, err := reconciler.SweepExpired(ctx)
		return err
	}})

	jobsDone := make(chan struct{})
	go func() {
		manager.Start(ctxShutdown)
		close(jobsDone)
	}()

	go func() {
		logger.Log.Infof("HTTP server listening on %s:%s", cfg.AppHost, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr = <-errChan:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}
	<-jobsDone

	if serveErr != nil {
		return serveErr
	}
	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}
