package cfg

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type PortalConfig struct {
	BaseURL      string
	HTTPTimeout  time.Duration
	PollLimit    int
	PollInterval time.Duration
}

type WorkerConfig struct {
	Queue       string
	Concurrency int
	MaxAttempts int
	Backoff     time.Duration
}

type OtelConfig struct {
	ServiceName string
	Endpoint    string
}

type Config struct {
	AppEnv          string
	AppPort         string
	SnowflakeNodeID int64
	RedisConfig     RedisConfig
	PortalConfig    PortalConfig
	WorkerConfig    WorkerConfig
	OtelConfig      OtelConfig
}

func Load() (*Config, error) {
	var errs []error

	// a missing .env is fine, the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.New("failed load cfg: " + err.Error())
	}

	appEnv := mustEnv("APP_ENV", &errs)
	redisHost := mustEnv("REDIS_HOST", &errs)
	redisPort := mustEnv("REDIS_PORT", &errs)

	redisDB := intEnv("REDIS_DB", 0, &errs)
	httpTimeout := intEnv("HTTP_TIMEOUT_SECONDS", 30, &errs)
	pollLimit := intEnv("POLL_LIMIT", 20, &errs)
	pollInterval := intEnv("POLL_INTERVAL_MS", 1000, &errs)
	concurrency := intEnv("WORKER_CONCURRENCY", 10, &errs)
	maxAttempts := intEnv("JOB_MAX_ATTEMPTS", 3, &errs)
	backoff := intEnv("JOB_BACKOFF_MS", 2000, &errs)
	nodeID := intEnv("SNOWFLAKE_NODE_ID", 1, &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Config{
		AppEnv:          appEnv,
		AppPort:         getEnv("APP_PORT", "8080"),
		SnowflakeNodeID: int64(nodeID),
		RedisConfig: RedisConfig{
			Host:     redisHost,
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		PortalConfig: PortalConfig{
			BaseURL:      getEnv("PORTAL_BASE_URL", "https://www.flightsfinder.com"),
			HTTPTimeout:  time.Duration(httpTimeout) * time.Second,
			PollLimit:    pollLimit,
			PollInterval: time.Duration(pollInterval) * time.Millisecond,
		},
		WorkerConfig: WorkerConfig{
			Queue:       getEnv("QUEUE_NAME", "flight-search"),
			Concurrency: concurrency,
			MaxAttempts: maxAttempts,
			Backoff:     time.Duration(backoff) * time.Millisecond,
		},
		OtelConfig: OtelConfig{
			ServiceName: getEnv("OTEL_SERVICE_NAME", "flightdeals"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
	}, nil
}

func mustEnv(key string, errs *[]error) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errs = append(*errs, errors.New("missing env: "+key))
	}
	return value
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, errors.New("conversion failed env: "+key))
	}
	return n
}
