package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/facades"
	"github.com/sbilibin2017/gw-deposit-reconciler/internal/models"
)

// config holds every setting read from the environment.
type config struct {
	AppHost  string
	AppPort  string
	LogLevel string

	// Store selects the durable store: postgres or memory.
	Store          string
	PGHost         string
	PGPort         int
	PGUser         string
	PGPassword     string
	PGDB           string
	PGMaxOpenConns int
	PGMaxIdleConns int

	// MonitorStore selects where in-flight transactions live: redis or memory.
	MonitorStore      string
	RedisHost         string
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisExp          time.Duration

	KafkaBrokers      []string
	KafkaTopic        string
	KafkaBatchTimeout time.Duration

	JWTSecretKey string
	JWTExp       time.Duration

	RateSource      string
	GWHost          string
	GWPort          string
	CoinGeckoURL    string
	CoinGeckoAPIKey string

	ETHRPCURL       string
	BSCRPCURL       string
	TONCenterURL    string
	TONCenterAPIKey string
	TronScanURL     string
	TronScanAPIKey  string
	TronUSDTAddress string
	EsploraURL      string

	// DepositAddresses maps currency to the shared deposit address.
	DepositAddresses map[string]string

	DepositTimeout      time.Duration
	PollInterval        time.Duration
	SweepInterval       time.Duration
	RateRefreshInterval time.Duration
	PollWorkers         int
}

// parseConfig loads environment variables from a file and returns the
// application configuration.
func parseConfig(path string) (cfg config, err error) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}
	getInt := func(key, defaultValue string) (int, error) {
		return strconv.Atoi(getEnv(key, defaultValue))
	}

	// Application config
	cfg.AppHost = getEnv("APP_HOST", "localhost")
	cfg.AppPort = getEnv("APP_PORT", "8080")
	cfg.LogLevel = getEnv("APP_LOG_LEVEL", "info")

	// PostgreSQL config
	cfg.Store = getEnv("STORE", "postgres")
	cfg.PGHost = getEnv("POSTGRES_HOST", "localhost")
	cfg.PGUser = getEnv("POSTGRES_USER", "user")
	cfg.PGPassword = getEnv("POSTGRES_PASSWORD", "password")
	cfg.PGDB = getEnv("POSTGRES_DB", "database")
	if cfg.PGPort, err = getInt("POSTGRES_PORT", "5432"); err != nil {
		return
	}
	if cfg.PGMaxOpenConns, err = getInt("POSTGRES_MAX_OPEN_CONNS", "16"); err != nil {
		return
	}
	if cfg.PGMaxIdleConns, err = getInt("POSTGRES_MAX_IDLE_CONNS", "8"); err != nil {
		return
	}

	// Redis config
	cfg.MonitorStore = getEnv("MONITOR_STORE", "redis")
	cfg.RedisHost = getEnv("REDIS_HOST", "localhost")
	if cfg.RedisPort, err = getInt("REDIS_PORT", "6379"); err != nil {
		return
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return
	}
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", "10"); err != nil {
		return
	}
	if cfg.RedisMinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", "2"); err != nil {
		return
	}
	var redisExp int
	if redisExp, err = getInt("REDIS_EXP_SECOND", "86400"); err != nil {
		return
	}
	cfg.RedisExp = time.Duration(redisExp) * time.Second

	// Kafka config
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "deposit-notifications")
	if cfg.KafkaBatchTimeout, err = time.ParseDuration(getEnv("KAFKA_BATCH_TIMEOUT", "10ms")); err != nil {
		return
	}

	// JWT config
	cfg.JWTSecretKey = getEnv("JWT_SECRET_KEY", "my_super_secret_key")
	var jwtExp int
	if jwtExp, err = getInt("JWT_EXP_SECOND", "3600"); err != nil {
		return
	}
	cfg.JWTExp = time.Duration(jwtExp) * time.Second

	// Rate source config
	cfg.RateSource = getEnv("RATE_SOURCE", "grpc")
	cfg.GWHost = getEnv("GW_EXCHANGER_HOST", "localhost")
	cfg.GWPort = getEnv("GW_EXCHANGER_PORT", "50051")
	cfg.CoinGeckoURL = getEnv("COINGECKO_URL", "https://api.coingecko.com")
	cfg.CoinGeckoAPIKey = getEnv("COINGECKO_API_KEY", "")

	// Chain explorers
	cfg.ETHRPCURL = getEnv("ETH_RPC_URL", "")
	cfg.BSCRPCURL = getEnv("BSC_RPC_URL", "")
	cfg.TONCenterURL = getEnv("TONCENTER_URL", "https://toncenter.com")
	cfg.TONCenterAPIKey = getEnv("TONCENTER_API_KEY", "")
	cfg.TronScanURL = getEnv("TRONSCAN_URL", "https://apilist.tronscanapi.com")
	cfg.TronScanAPIKey = getEnv("TRONSCAN_API_KEY", "")
	cfg.TronUSDTAddress = getEnv("TRON_USDT_CONTRACT", facades.TronUSDTContract)
	cfg.EsploraURL = getEnv("ESPLORA_URL", "https://blockstream.info/api")

	cfg.DepositAddresses = make(map[string]string)
	for _, c := range models.SupportedCurrencies() {
		if addr := getEnv("DEPOSIT_ADDRESS_"+c, ""); addr != "" {
			cfg.DepositAddresses[c] = addr
		}
	}

	// Schedules
	if cfg.DepositTimeout, err = time.ParseDuration(getEnv("DEPOSIT_TIMEOUT", "10m")); err != nil {
		return
	}
	if cfg.PollInterval, err = time.ParseDuration(getEnv("POLL_INTERVAL", "30s")); err != nil {
		return
	}
	if cfg.SweepInterval, err = time.ParseDuration(getEnv("SWEEP_INTERVAL", "5s")); err != nil {
		return
	}
	if cfg.RateRefreshInterval, err = time.ParseDuration(getEnv("RATE_REFRESH_INTERVAL", "5m")); err != nil {
		return
	}
	if cfg.PollWorkers, err = getInt("POLL_WORKERS", "8"); err != nil {
		return
	}

	return
}
