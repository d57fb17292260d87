package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type HTTPTimeoutsConfig struct {
	Read     time.Duration
	Idle     time.Duration
	Write    time.Duration
	Shutdown time.Duration // how long we give the shutdown process to gracefully terminate
}

type HTTPConfig struct {
	Port     int
	Timeouts HTTPTimeoutsConfig
}

type RateLimiterConfig struct {
	RPS   int
	Burst int
}

type LoggerConfig struct {
	Level slog.Level
}

type AppConfig struct {
	Name        string
	Environment string // 'dev' | 'prod'
	PublicDir   string // root for source images and the variant cache
}

// OptimizerConfig tunes the cache engine itself.
type OptimizerConfig struct {
	HandlerPath string        // route the image handler mounts, e.g. /cache/image
	Parallelism int           // concurrent transform limit
	NoUpscale   bool          // clamp resize requests to source dimensions
	BlurTTL     time.Duration // placeholder TTL, 0 disables expiry
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// StorageConfig selects where source images are read from. The variant
// cache is always local disk regardless of backend.
type StorageConfig struct {
	Backend string // 'local' | 's3'
	S3      S3Config
}

type ProxyConfig struct {
	Trusted bool
}

type TelemetryConfig struct {
	EnableTelemetry bool
	OtelEndpoint    string
}

type Config struct {
	App       AppConfig
	Optimizer OptimizerConfig
	Storage   StorageConfig
	Proxy     ProxyConfig
	HTTP      HTTPConfig
	Limiter   RateLimiterConfig
	Logger    LoggerConfig
	Metrics   TelemetryConfig
}

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "imgopt",
			Environment: "prod",
			PublicDir:   "./public",
		},
		Optimizer: OptimizerConfig{
			HandlerPath: "/cache/image",
			Parallelism: 2,
			NoUpscale:   true,
			BlurTTL:     time.Hour,
		},
		Storage: StorageConfig{
			Backend: "local",
		},
		Proxy: ProxyConfig{
			Trusted: true,
		},
		HTTP: HTTPConfig{
			Port: 3000,
			Timeouts: HTTPTimeoutsConfig{
				Read:     5 * time.Second,
				Write:    30 * time.Second,
				Idle:     10 * time.Minute,
				Shutdown: 10 * time.Second,
			},
		},
		Limiter: RateLimiterConfig{
			RPS:   20,
			Burst: 50,
		},
		Logger: LoggerConfig{
			Level: slog.LevelInfo,
		},
		Metrics: TelemetryConfig{
			OtelEndpoint: "localhost:4318",
		},
	}
}

func LoadWithDefaults() *Config {
	defaults := DefaultConfig()
	return &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", defaults.App.Name),
			Environment: getEnv("APP_ENV", defaults.App.Environment),
			PublicDir:   getEnv("APP_PUBLIC_DIR", defaults.App.PublicDir),
		},
		Optimizer: OptimizerConfig{
			HandlerPath: getEnv("OPTIMIZER_HANDLER_PATH", defaults.Optimizer.HandlerPath),
			Parallelism: getEnvAsInt("OPTIMIZER_PARALLELISM", defaults.Optimizer.Parallelism),
			NoUpscale:   getEnvAsBool("OPTIMIZER_NO_UPSCALE", defaults.Optimizer.NoUpscale),
			BlurTTL:     getEnvAsDuration("OPTIMIZER_BLUR_TTL", defaults.Optimizer.BlurTTL),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", defaults.Storage.Backend),
			S3: S3Config{
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				Region:    getEnv("S3_REGION", ""),
				Bucket:    getEnv("S3_BUCKET", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
			},
		},
		Proxy: ProxyConfig{
			Trusted: getEnvAsBool("PROXY_TRUSTED", defaults.Proxy.Trusted),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", defaults.HTTP.Port),
			Timeouts: HTTPTimeoutsConfig{
				Read:     getEnvAsDuration("HTTP_READ_TIMEOUT", defaults.HTTP.Timeouts.Read),
				Write:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", defaults.HTTP.Timeouts.Write),
				Idle:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", defaults.HTTP.Timeouts.Idle),
				Shutdown: getEnvAsDuration("HTTP_SHUTDOWN_DELAY", defaults.HTTP.Timeouts.Shutdown),
			},
		},
		Limiter: RateLimiterConfig{
			RPS:   getEnvAsInt("LIMITER_RPS", defaults.Limiter.RPS),
			Burst: getEnvAsInt("LIMITER_BURST", defaults.Limiter.Burst),
		},
		Logger: LoggerConfig{
			Level: getEnvAsLogLevel("LOGGER_LEVEL", defaults.Logger.Level),
		},
		Metrics: TelemetryConfig{
			EnableTelemetry: getEnvAsBool("ENABLE_TELEMETRY", false),
			OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", defaults.Metrics.OtelEndpoint),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsLogLevel(key string, fallback slog.Level) slog.Level {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	switch strings.ToLower(valueStr) {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("APP_NAME must not be empty")
	}
	if s := strings.ToLower(c.App.Environment); s != "dev" && s != "prod" {
		return fmt.Errorf(`APP_ENV must be "dev" or "prod"`)
	}
	if c.App.PublicDir == "" {
		return fmt.Errorf("APP_PUBLIC_DIR must not be empty")
	}
	if !strings.HasPrefix(c.Optimizer.HandlerPath, "/") {
		return fmt.Errorf("OPTIMIZER_HANDLER_PATH must start with '/', got %q", c.Optimizer.HandlerPath)
	}
	if c.Optimizer.Parallelism <= 0 {
		return fmt.Errorf("OPTIMIZER_PARALLELISM must be positive, got %d", c.Optimizer.Parallelism)
	}
	if c.Optimizer.BlurTTL < 0 {
		return fmt.Errorf("OPTIMIZER_BLUR_TTL must not be negative, got %s", c.Optimizer.BlurTTL)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET must not be empty when STORAGE_BACKEND is s3")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3_REGION must not be empty when STORAGE_BACKEND is s3")
		}
	default:
		return fmt.Errorf(`STORAGE_BACKEND must be "local" or "s3", got %q`, c.Storage.Backend)
	}
	// stay away from well-known ports
	if p := c.HTTP.Port; p < 1024 || p > 65535 {
		return fmt.Errorf("HTTP_PORT must be a positive int between 1024 and 65535, got %d", p)
	}
	if c.HTTP.Timeouts.Read <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT must be positive (e.g., 5s), got %s", c.HTTP.Timeouts.Read)
	}
	if c.HTTP.Timeouts.Write <= 0 {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT must be positive (e.g., 30s), got %s", c.HTTP.Timeouts.Write)
	}
	if c.HTTP.Timeouts.Idle <= 0 {
		return fmt.Errorf("HTTP_IDLE_TIMEOUT must be positive (e.g., 2m), got %s", c.HTTP.Timeouts.Idle)
	}
	if c.HTTP.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_DELAY must be positive (e.g., 10s), got %s", c.HTTP.Timeouts.Shutdown)
	}
	if c.Limiter.RPS <= 0 {
		return fmt.Errorf("LIMITER_RPS must be positive, got %d", c.Limiter.RPS)
	}
	if c.Limiter.Burst <= 0 {
		return fmt.Errorf("LIMITER_BURST must be positive, got %d", c.Limiter.Burst)
	}

	return nil
}
