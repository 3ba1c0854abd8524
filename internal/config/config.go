package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "SETTLEMENT_"

type Config struct {
	Primary        Primary              `koanf:"primary"`
	Server         ServerConfig         `koanf:"server"`
	Database       DatabaseConfig       `koanf:"database"`
	RabbitMQ       RabbitMQConfig       `koanf:"rabbitmq"`
	Redis          RedisConfig          `koanf:"redis"`
	Leader         LeaderConfig         `koanf:"leader"`
	Minio          MinioConfig          `koanf:"minio"`
	Reconciliation ReconciliationConfig `koanf:"reconciliation"`
	Vedtak         VedtakConfig         `koanf:"vedtak"`
	Retry          RetryConfig          `koanf:"retry"`
	Logger         LoggerConfig         `koanf:"logger"`
	Snowflake      SnowflakeConfig      `koanf:"snowflake"`
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

// RabbitMQConfig names the queues of every logical channel the service uses.
type RabbitMQConfig struct {
	URL              string        `koanf:"url" validate:"required"`
	OrderQueue       string        `koanf:"order_queue" validate:"required"`
	ReceiptQueue     string        `koanf:"receipt_queue" validate:"required"`
	ReceiptDLQ       string        `koanf:"receipt_dlq" validate:"required"`
	ReportQueue      string        `koanf:"report_queue" validate:"required"`
	DecisionQueue    string        `koanf:"decision_queue" validate:"required"`
	DecisionDLQ      string        `koanf:"decision_dlq" validate:"required"`
	StatusEventQueue string        `koanf:"status_event_queue" validate:"required"`
	PublishTimeout   time.Duration `koanf:"publish_timeout" validate:"required"`
	PrefetchCount    int           `koanf:"prefetch_count" validate:"required"`
	ConsumerWorkers  int           `koanf:"consumer_workers" validate:"required"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// LeaderConfig selects how the instance decides whether it runs periodic jobs.
// Mode is one of "redis", "http" or "static".
type LeaderConfig struct {
	Mode       string        `koanf:"mode" validate:"required,oneof=redis http static"`
	Key        string        `koanf:"key"`
	TTL        time.Duration `koanf:"ttl"`
	ElectorURL string        `koanf:"elector_url"`
	Static     bool          `koanf:"static"`
}

type MinioConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

type ReconciliationConfig struct {
	ChunkSize           int           `koanf:"chunk_size" validate:"required,gt=0"`
	GrensesnittInterval time.Duration `koanf:"grensesnitt_interval" validate:"required"`
	KonsistensInterval  time.Duration `koanf:"konsistens_interval" validate:"required"`
	SweepInterval       time.Duration `koanf:"sweep_interval" validate:"required"`
	DefaultWindow       time.Duration `koanf:"default_window" validate:"required"`
	StuckAfter          time.Duration `koanf:"stuck_after" validate:"required"`
	SettleDelay         time.Duration `koanf:"settle_delay" validate:"required"`
	RedispatchInterval  time.Duration `koanf:"redispatch_interval" validate:"required"`
	RedispatchGrace     time.Duration `koanf:"redispatch_grace" validate:"required"`
	RedispatchBatchSize int           `koanf:"redispatch_batch_size" validate:"required,gt=0"`
}

type VedtakConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required"`
	ConnTimeout time.Duration `koanf:"conn_timeout" validate:"required"`
}

type RetryConfig struct {
	BaseDelay  int32 `koanf:"base_delay"`
	MaxRetries int32 `koanf:"max_retries"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SnowflakeConfig struct {
	Node int64 `koanf:"node" validate:"gte=0,lte=1023"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
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

	return mainConfig, nil
}
