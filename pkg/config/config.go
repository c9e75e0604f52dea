package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Events    EventsConfig    `mapstructure:"events"`
	Roles     RolesConfig     `mapstructure:"roles"`
	Source    SourceConfig    `mapstructure:"source"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`

	// RateLimit caps role-changing requests per second per client, zero
	// disables it
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// StorageConfig selects where the role and credential are persisted.
// Driver is one of redis, sqlite, postgres or memory.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	PoolSize  int    `mapstructure:"pool_size"`
	Namespace string `mapstructure:"namespace"`
}

type DatabaseConfig struct {
	Path         string `mapstructure:"path"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// EventsConfig selects the invalidation channel. Driver is one of redis,
// kafka or local.
type EventsConfig struct {
	Driver string      `mapstructure:"driver"`
	Prefix string      `mapstructure:"prefix"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

type RolesConfig struct {
	RoleKey      string        `mapstructure:"role_key"`
	TokenKey     string        `mapstructure:"token_key"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	ReloadRate   float64       `mapstructure:"reload_rate"`
	ReloadBurst  int           `mapstructure:"reload_burst"`

	// RefreshSchedule is a cron spec for periodic reloads, empty disables
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

type SourceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	JaegerURL    string  `mapstructure:"jaeger_url"`
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddCaller  bool   `mapstructure:"add_caller"`
	Stacktrace bool   `mapstructure:"stacktrace"`
	Service    string `mapstructure:"service"`
}

// Load reads configs/<serviceName>.yaml (or /etc/expenseflow), then
// EXPENSEFLOW_* environment variables, e.g. EXPENSEFLOW_STORAGE_DRIVER.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/expenseflow")

	setDefaults(v, serviceName)

	v.SetEnvPrefix("EXPENSEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper, serviceName string) {
	// Server defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.shutdown_timeout", 10)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.namespace", "expenseflow")
	v.SetDefault("storage.database.path", "expenseflow.db")
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.ssl_mode", "disable")
	v.SetDefault("storage.database.max_open_conns", 5)
	v.SetDefault("storage.database.max_idle_conns", 5)
	v.SetDefault("storage.database.log_level", "silent")

	// Events defaults
	v.SetDefault("events.driver", "local")
	v.SetDefault("events.prefix", "expenseflow")
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.consumer_group", serviceName)

	// Role store defaults
	v.SetDefault("roles.role_key", "userRole")
	v.SetDefault("roles.token_key", "authToken")
	v.SetDefault("roles.fetch_timeout", 10*time.Second)
	v.SetDefault("roles.reload_rate", 2.0)
	v.SetDefault("roles.reload_burst", 1)
	v.SetDefault("roles.refresh_schedule", "@every 30m")

	// Role source defaults
	v.SetDefault("source.base_url", "http://localhost:8080")
	v.SetDefault("source.path", "/api/users/me/role")
	v.SetDefault("source.timeout", 5*time.Second)
	v.SetDefault("source.retry.max_attempts", 3)
	v.SetDefault("source.retry.initial_delay", 100*time.Millisecond)
	v.SetDefault("source.retry.max_delay", 2*time.Second)
	v.SetDefault("source.breaker.max_requests", 1)
	v.SetDefault("source.breaker.interval", 60*time.Second)
	v.SetDefault("source.breaker.timeout", 30*time.Second)
	v.SetDefault("source.breaker.failure_ratio", 0.5)
	v.SetDefault("source.breaker.min_requests", 5)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.jaeger_url", "http://localhost:14268/api/traces")
	v.SetDefault("telemetry.service_name", serviceName)
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.add_caller", true)
	v.SetDefault("logger.stacktrace", false)
	v.SetDefault("logger.service", serviceName)
}

// Validate rejects driver names the binary cannot build.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "redis", "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Events.Driver {
	case "redis", "kafka", "local":
	default:
		return fmt.Errorf("unsupported events driver %q", c.Events.Driver)
	}
	return nil
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
