package config

import (
	"github.com/redis/go-redis/v9"

	"github.com/expenseflow-go/pkg/database"
	"github.com/expenseflow-go/pkg/events"
	"github.com/expenseflow-go/pkg/logger"
	"github.com/expenseflow-go/pkg/resilience"
	"github.com/expenseflow-go/pkg/telemetry"
)

// ToLoggerConfig converts LoggerConfig to logger.Config
func (c LoggerConfig) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		AddCaller:  c.AddCaller,
		Stacktrace: c.Stacktrace,
		Service:    c.Service,
	}
}

// ToDatabaseConfig converts DatabaseConfig to database.Config for driver
func (c DatabaseConfig) ToDatabaseConfig(driver string) database.Config {
	return database.Config{
		Driver:       driver,
		Path:         c.Path,
		Host:         c.Host,
		Port:         c.Port,
		User:         c.User,
		Password:     c.Password,
		Name:         c.Name,
		SSLMode:      c.SSLMode,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
		LogLevel:     c.LogLevel,
	}
}

// ToRedisOptions converts RedisConfig to go-redis client options
func (c RedisConfig) ToRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.Addr(),
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	}
}

// ToKafkaConfig converts EventsConfig to events.KafkaConfig
func (c EventsConfig) ToKafkaConfig() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers:       c.Kafka.Brokers,
		TopicPrefix:   c.Prefix,
		ConsumerGroup: c.Kafka.ConsumerGroup,
	}
}

// ToTelemetryConfig converts TelemetryConfig to telemetry.Config
func (c TelemetryConfig) ToTelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:      c.Enabled,
		JaegerURL:    c.JaegerURL,
		ServiceName:  c.ServiceName,
		Environment:  c.Environment,
		SamplingRate: c.SamplingRate,
	}
}

// ToRetryConfig converts RetryConfig to resilience.RetryConfig
func (c RetryConfig) ToRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.InitialDelay > 0 {
		cfg.InitialDelay = c.InitialDelay
	}
	if c.MaxDelay > 0 {
		cfg.MaxDelay = c.MaxDelay
	}
	return cfg
}

// ToBreakerConfig converts BreakerConfig to resilience.CircuitBreakerConfig
func (c BreakerConfig) ToBreakerConfig(name string) resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig(name)
	if c.MaxRequests > 0 {
		cfg.MaxRequests = c.MaxRequests
	}
	if c.Interval > 0 {
		cfg.Interval = c.Interval
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.FailureRatio > 0 {
		cfg.FailureRatio = c.FailureRatio
	}
	if c.MinRequests > 0 {
		cfg.MinRequests = c.MinRequests
	}
	return cfg
}
