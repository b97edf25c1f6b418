package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	LogLevel   string `env:"DPD_LOG_LEVEL,    default=warn"`
	LogPretty  bool   `env:"DPD_LOG_PRETTY,   default=true"`
	LogNoColor bool   `env:"DPD_LOG_NO_COLOR, default=false"`

	CountriesFile string `env:"DPD_COUNTRIES_FILE"`
	UserAgent     string `env:"DPD_USER_AGENT"`
	MetricsFile   string `env:"DPD_METRICS_FILE"`

	Retry   RetryConfig
	Redis   RedisConfig
	Tracing TracingConfig
}

type RetryConfig struct {
	MaxAttempts int           `env:"DPD_MAX_RETRIES, default=3"`
	BaseDelay   time.Duration `env:"DPD_BASE_DELAY,  default=1s"`
	Timeout     time.Duration `env:"DPD_TIMEOUT,     default=15s"`
}

type RedisConfig struct {
	Addr     string        `env:"DPD_REDIS_ADDR"`
	Password string        `env:"DPD_REDIS_PASSWORD"`
	DB       int           `env:"DPD_REDIS_DB,   default=0"`
	CacheTTL time.Duration `env:"DPD_CACHE_TTL,  default=5m"`
}

type TracingConfig struct {
	Endpoint      string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SamplingRatio float64 `env:"DPD_TRACE_SAMPLING, default=1"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from an explicit key/value map.
func LoadFrom(ctx context.Context, env map[string]string) (*Config, error) {
	return load(ctx, envconfig.MapLookuper(env))
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
