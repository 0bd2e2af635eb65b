package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	Kafka      KafkaConfig
	MasterData MasterDataConfig
	Calc       CalcConfig
	Breaker    BreakerConfig
	Recovery   RecoveryConfig
	Delivery   DeliveryConfig
}

type AppConfig struct {
	Name            string
	HTTPPort        string
	HealthPort      string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr        string
	Password    string
	CartTTL     time.Duration
	TerminalTTL time.Duration
}

type PostgresConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MigrationsPath string
}

type KafkaConfig struct {
	Brokers      []string
	TranlogTopic string
	AckTopic     string
	AckGroupID   string
}

type MasterDataConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CalcConfig struct {
	CurrencyDigits   int32
	DiscountRounding string
	TaxRounding      string
}

type BreakerConfig struct {
	FailureThreshold uint32
	CoolDown         time.Duration
}

type RecoveryConfig struct {
	Interval  time.Duration
	Lookback  time.Duration
	MinAge    time.Duration
	Retention time.Duration
	BatchSize int
}

type DeliveryConfig struct {
	Consumers      []string
	PublishTimeout time.Duration
}

// Load reads configuration from the environment, optionally seeded by a .env file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			HTTPPort:        v.GetString("HTTP_PORT"),
			HealthPort:      v.GetString("HEALTH_GRPC_PORT"),
			LogLevel:        v.GetString("LOG_LEVEL"),
			RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:        v.GetString("REDIS_ADDR"),
			Password:    v.GetString("REDIS_PASSWORD"),
			CartTTL:     v.GetDuration("REDIS_CART_TTL"),
			TerminalTTL: v.GetDuration("REDIS_TERMINAL_TTL"),
		},
		Postgres: PostgresConfig{
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetInt("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			MigrationsPath: v.GetString("MIGRATIONS_PATH"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(v.GetString("KAFKA_BROKERS")),
			TranlogTopic: v.GetString("KAFKA_TRANLOG_TOPIC"),
			AckTopic:     v.GetString("KAFKA_ACK_TOPIC"),
			AckGroupID:   v.GetString("KAFKA_ACK_GROUP_ID"),
		},
		MasterData: MasterDataConfig{
			BaseURL: v.GetString("MASTER_DATA_URL"),
			Timeout: v.GetDuration("MASTER_DATA_TIMEOUT"),
		},
		Calc: CalcConfig{
			CurrencyDigits:   v.GetInt32("CURRENCY_DIGITS"),
			DiscountRounding: v.GetString("DISCOUNT_ROUND_METHOD"),
			TaxRounding:      v.GetString("TAX_ROUND_METHOD"),
		},
		Breaker: BreakerConfig{
			FailureThreshold: v.GetUint32("BREAKER_FAILURE_THRESHOLD"),
			CoolDown:         v.GetDuration("BREAKER_COOL_DOWN"),
		},
		Recovery: RecoveryConfig{
			Interval:  v.GetDuration("RECOVERY_INTERVAL"),
			Lookback:  v.GetDuration("RECOVERY_LOOKBACK"),
			MinAge:    v.GetDuration("RECOVERY_MIN_AGE"),
			Retention: v.GetDuration("DELIVERY_RETENTION"),
			BatchSize: v.GetInt("RECOVERY_BATCH_SIZE"),
		},
		Delivery: DeliveryConfig{
			Consumers:      splitList(v.GetString("DELIVERY_CONSUMERS")),
			PublishTimeout: v.GetDuration("PUBLISH_TIMEOUT"),
		},
	}
	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "cart-service")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("HEALTH_GRPC_PORT", "50060")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "5s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "cartdb")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CART_TTL", "15m")
	v.SetDefault("REDIS_TERMINAL_TTL", "5m")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pos")
	v.SetDefault("MIGRATIONS_PATH", "./internal/delivery/migrations")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TRANLOG_TOPIC", "tranlog_report")
	v.SetDefault("KAFKA_ACK_TOPIC", "tranlog_delivery_ack")
	v.SetDefault("KAFKA_ACK_GROUP_ID", "cart-service")
	v.SetDefault("MASTER_DATA_URL", "http://localhost:8002/api/v1")
	v.SetDefault("MASTER_DATA_TIMEOUT", "3s")
	v.SetDefault("CURRENCY_DIGITS", 0)
	v.SetDefault("DISCOUNT_ROUND_METHOD", "floor")
	v.SetDefault("TAX_ROUND_METHOD", "floor")
	v.SetDefault("BREAKER_FAILURE_THRESHOLD", 3)
	v.SetDefault("BREAKER_COOL_DOWN", "60s")
	v.SetDefault("RECOVERY_INTERVAL", "5m")
	v.SetDefault("RECOVERY_LOOKBACK", "24h")
	v.SetDefault("RECOVERY_MIN_AGE", "15m")
	v.SetDefault("DELIVERY_RETENTION", "0s")
	v.SetDefault("RECOVERY_BATCH_SIZE", 100)
	v.SetDefault("DELIVERY_CONSUMERS", "report,journal,stock")
	v.SetDefault("PUBLISH_TIMEOUT", "3s")
}

func (c *Config) validate() error {
	switch {
	case len(c.Kafka.Brokers) == 0:
		return errors.New("KAFKA_BROKERS must not be empty")
	case len(c.Delivery.Consumers) == 0:
		return errors.New("DELIVERY_CONSUMERS must not be empty")
	case c.Recovery.Interval <= 0:
		return errors.New("RECOVERY_INTERVAL must be positive")
	case c.Recovery.Lookback < c.Recovery.MinAge:
		return errors.New("RECOVERY_LOOKBACK must not be shorter than RECOVERY_MIN_AGE")
	case c.Breaker.FailureThreshold == 0:
		return errors.New("BREAKER_FAILURE_THRESHOLD must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
