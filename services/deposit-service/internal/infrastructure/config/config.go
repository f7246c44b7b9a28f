package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/pkg/observability"
	"github.com/bibbank/bib/pkg/postgres"
)

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
	MaxConns int32  `toml:"max_conns"`
}

type KafkaConfig struct {
	Brokers       []string `toml:"brokers"`
	EventsTopic   string   `toml:"events_topic"`
	TLS           bool     `toml:"tls"`
	SASLMechanism string   `toml:"sasl_mechanism"`
	SASLUsername  string   `toml:"sasl_username"`
	SASLPassword  string   `toml:"sasl_password"`
}

// OutboxConfig tunes the relay that forwards stored events to Kafka.
type OutboxConfig struct {
	BatchSize    int      `toml:"batch_size"`
	PollInterval Duration `toml:"poll_interval"`
}

// InterestConfig sets how accrued interest is rounded.
type InterestConfig struct {
	RoundingMode      string `toml:"rounding_mode"`
	RoundingPrecision int    `toml:"rounding_precision"`
}

type ObservabilityConfig struct {
	LogLevel     string  `toml:"log_level"`
	LogFormat    string  `toml:"log_format"`
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	OTLPInsecure bool    `toml:"otlp_insecure"`
	SampleRatio  float64 `toml:"sample_ratio"`
}

type TLSConfig struct {
	CertFile     string `toml:"cert_file"`
	KeyFile      string `toml:"key_file"`
	ClientCAFile string `toml:"client_ca_file"`
}

type Config struct {
	ServiceName   string              `toml:"service_name"`
	GRPCPort      int                 `toml:"grpc_port"`
	HTTPPort      int                 `toml:"http_port"`
	Reflection    bool                `toml:"grpc_reflection"`
	DB            DatabaseConfig      `toml:"database"`
	Kafka         KafkaConfig         `toml:"kafka"`
	Outbox        OutboxConfig        `toml:"outbox"`
	Interest      InterestConfig      `toml:"interest"`
	Observability ObservabilityConfig `toml:"observability"`
	TLS           TLSConfig           `toml:"tls"`
}

// Duration decodes TOML strings such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaults() Config {
	return Config{
		ServiceName: "deposit-service",
		GRPCPort:    9084,
		HTTPPort:    8084,
		DB: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "bib",
			Name:     "bib_deposit",
			SSLMode:  "require",
			MaxConns: 10,
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			EventsTopic: "bib.deposit.events",
		},
		Outbox: OutboxConfig{
			BatchSize:    100,
			PollInterval: Duration{time.Second},
		},
		Interest: InterestConfig{
			RoundingMode:      string(money.RoundHalfEven),
			RoundingPrecision: money.DefaultPrecision,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration from defaults, the TOML file named by CONFIG_FILE (if
// any) and environment variables, in increasing precedence.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	cfg.GRPCPort = getEnvInt("GRPC_PORT", cfg.GRPCPort)
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.Reflection = getEnvBool("GRPC_REFLECTION", cfg.Reflection)

	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnvInt("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnv("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", cfg.DB.SSLMode)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	cfg.Kafka.EventsTopic = getEnv("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)
	cfg.Kafka.SASLPassword = getEnv("KAFKA_SASL_PASSWORD", cfg.Kafka.SASLPassword)

	cfg.Interest.RoundingMode = getEnv("INTEREST_ROUNDING_MODE", cfg.Interest.RoundingMode)

	cfg.Observability.LogLevel = getEnv("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Observability.OTLPEndpoint)

	cfg.TLS.CertFile = getEnv("TLS_CERT_FILE", cfg.TLS.CertFile)
	cfg.TLS.KeyFile = getEnv("TLS_KEY_FILE", cfg.TLS.KeyFile)

	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.DB.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD environment variable is required"))
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
		errs = append(errs, errors.New("at least one Kafka broker is required"))
	}
	if c.Kafka.EventsTopic == "" {
		errs = append(errs, errors.New("kafka events_topic is required"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch_size must be positive"))
	}
	if c.Outbox.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("outbox poll_interval must be positive"))
	}
	if _, err := c.Rounding(); err != nil {
		errs = append(errs, err)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls cert_file and key_file must be set together"))
	}
	return errors.Join(errs...)
}

// Rounding is the policy new accounts lock in for interest computations.
func (c Config) Rounding() (money.RoundingPolicy, error) {
	mode, err := money.ParseRoundingMode(c.Interest.RoundingMode)
	if err != nil {
		return money.RoundingPolicy{}, err
	}
	if c.Interest.RoundingPrecision <= 0 {
		return money.RoundingPolicy{}, fmt.Errorf("interest rounding_precision must be positive, got %d", c.Interest.RoundingPrecision)
	}
	return money.RoundingPolicy{Mode: mode, Precision: c.Interest.RoundingPrecision}, nil
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c Config) Postgres() postgres.Config {
	return postgres.Config{
		Host:     c.DB.Host,
		Port:     c.DB.Port,
		User:     c.DB.User,
		Password: c.DB.Password,
		Database: c.DB.Name,
		SSLMode:  c.DB.SSLMode,
		MaxConns: c.DB.MaxConns,
	}
}

func (c Config) KafkaClient() pkgkafka.Config {
	return pkgkafka.Config{
		Brokers:       c.Kafka.Brokers,
		ClientID:      c.ServiceName,
		TLS:           c.Kafka.TLS,
		SASLEnabled:   c.Kafka.SASLMechanism != "",
		SASLMechanism: c.Kafka.SASLMechanism,
		SASLUsername:  c.Kafka.SASLUsername,
		SASLPassword:  c.Kafka.SASLPassword,
	}
}

func (c Config) Logging() observability.LogConfig {
	return observability.LogConfig{
		Level:   c.Observability.LogLevel,
		Format:  c.Observability.LogFormat,
		Service: c.ServiceName,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
