package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary        Primary              `koanf:"primary"`
	Server         ServerConfig         `koanf:"server"`
	Database       DatabaseConfig       `koanf:"database"`
	Redis          RedisConfig          `koanf:"redis"`
	Gateway        GatewayConfig        `koanf:"gateway"`
	Retry          RetryConfig          `koanf:"retry"`
	Reconciliation ReconciliationConfig `koanf:"reconciliation"`
	Locking        LockingConfig        `koanf:"locking"`
	Logger         LoggerConfig         `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// GatewayConfig selects and configures the single active payment gateway.
// The adapter is resolved once at construction, not per call.
type GatewayConfig struct {
	Name           string        `koanf:"name" validate:"required"`
	BaseURL        string        `koanf:"base_url" validate:"required"`
	MerchantID     string        `koanf:"merchant_id"`
	APIKey         string        `koanf:"api_key"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
	HostedRedirect bool          `koanf:"hosted_redirect"`
}

// RetryConfig bounds pre-send retries, the only retries that are safe
// because the request never reached the gateway.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"required"`
	BaseDelay   time.Duration `koanf:"base_delay" validate:"required"`
}

type ReconciliationConfig struct {
	Interval        time.Duration `koanf:"interval" validate:"required"`
	BatchSize       int           `koanf:"batch_size" validate:"required"`
	MaxAttempts     int           `koanf:"max_attempts" validate:"required"`
	BackoffStrategy string        `koanf:"backoff_strategy" validate:"oneof=exponential linear"`
	InitialDelay    time.Duration `koanf:"initial_delay" validate:"required"`
	MaxDelay        time.Duration `koanf:"max_delay" validate:"required"`
	NotFoundGrace   time.Duration `koanf:"not_found_grace" validate:"required"`
	NotFoundMisses  int           `koanf:"not_found_misses" validate:"required"`
}

type LockingConfig struct {
	Driver  string        `koanf:"driver" validate:"oneof=database redis"`
	Timeout time.Duration `koanf:"timeout" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("PAYCOORD_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "PAYCOORD_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	if err := mainConfig.checkInvariants(); err != nil {
		logger.Error("config invariant violated", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// checkInvariants rejects combinations that are individually valid but
// unsafe together.
func (c *Config) checkInvariants() error {
	// A lock that outlives the reconciliation interval would leave crashed
	// workers blocking records they should be able to retake on the next tick.
	if c.Locking.Timeout >= c.Reconciliation.Interval {
		return fmt.Errorf("locking timeout (%s) must be shorter than reconciliation interval (%s)",
			c.Locking.Timeout, c.Reconciliation.Interval)
	}
	// A gateway call that can outlive the lease would let a reconciler steal
	// the lock mid-dispatch and write to the same record.
	if c.Gateway.RequestTimeout >= c.Locking.Timeout {
		return fmt.Errorf("gateway request timeout (%s) must be shorter than locking timeout (%s)",
			c.Gateway.RequestTimeout, c.Locking.Timeout)
	}
	if c.Locking.Driver == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis locking driver requires redis.addr")
	}
	return nil
}
