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
	"github.com/bibbank/bib/pkg/observability"
	"github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
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
	ConsumerGroup string   `toml:"consumer_group"`
	EventsTopic   string   `toml:"events_topic"`
	JournalTopic  string   `toml:"journal_topic"`
	PaymentsTopic string   `toml:"payments_topic"`
	TLS           bool     `toml:"tls"`
	SASLMechanism string   `toml:"sasl_mechanism"`
	SASLUsername  string   `toml:"sasl_username"`
	SASLPassword  string   `toml:"sasl_password"`
}

type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	TLS        bool     `toml:"tls"`
	PreviewTTL Duration `toml:"preview_ttl"`
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

// HolidayConfig is one closed date range; dates are YYYY-MM-DD.
type HolidayConfig struct {
	Name         string `toml:"name"`
	From         string `toml:"from"`
	To           string `toml:"to"`
	RescheduleTo string `toml:"reschedule_to"`
}

// CalendarConfig describes how due dates avoid non-working days.
type CalendarConfig struct {
	RollConvention string          `toml:"roll_convention"`
	NonWorkingDays []string        `toml:"non_working_days"`
	Holidays       []HolidayConfig `toml:"holidays"`
}

type Config struct {
	ServiceName   string              `toml:"service_name"`
	GRPCPort      int                 `toml:"grpc_port"`
	HTTPPort      int                 `toml:"http_port"`
	Reflection    bool                `toml:"grpc_reflection"`
	DB            DatabaseConfig      `toml:"database"`
	Kafka         KafkaConfig         `toml:"kafka"`
	Redis         RedisConfig         `toml:"redis"`
	Observability ObservabilityConfig `toml:"observability"`
	TLS           TLSConfig           `toml:"tls"`
	Calendar      CalendarConfig      `toml:"calendar"`
}

// Duration decodes TOML strings such as "5m".
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
		ServiceName: "lending-service",
		GRPCPort:    9087,
		HTTPPort:    8087,
		DB: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "bib",
			Name:     "bib_lending",
			SSLMode:  "require",
			MaxConns: 10,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "lending-service",
			EventsTopic:   "bib.lending.events",
			JournalTopic:  "bib.accounting.journal-entries",
			PaymentsTopic: "bib.payments.received",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PreviewTTL: Duration{5 * time.Minute},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			SampleRatio: 1,
		},
		Calendar: CalendarConfig{
			RollConvention: string(valueobject.RollFollowing),
			NonWorkingDays: []string{"saturday", "sunday"},
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
	cfg.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", cfg.Kafka.ConsumerGroup)
	cfg.Kafka.EventsTopic = getEnv("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)
	cfg.Kafka.JournalTopic = getEnv("KAFKA_JOURNAL_TOPIC", cfg.Kafka.JournalTopic)
	cfg.Kafka.PaymentsTopic = getEnv("KAFKA_PAYMENTS_TOPIC", cfg.Kafka.PaymentsTopic)
	cfg.Kafka.SASLPassword = getEnv("KAFKA_SASL_PASSWORD", cfg.Kafka.SASLPassword)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

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
	if c.Redis.PreviewTTL.Duration <= 0 {
		errs = append(errs, errors.New("redis preview_ttl must be positive"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls cert_file and key_file must be set together"))
	}
	if _, err := c.HolidayCalendar(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HolidayCalendar converts the calendar section into the domain calendar.
func (c Config) HolidayCalendar() (model.HolidayCalendar, error) {
	convention, err := valueobject.ParseRollConvention(strings.ToUpper(c.Calendar.RollConvention))
	if err != nil {
		return model.HolidayCalendar{}, err
	}
	cal := model.HolidayCalendar{Convention: convention}

	for _, name := range c.Calendar.NonWorkingDays {
		wd, err := parseWeekday(name)
		if err != nil {
			return model.HolidayCalendar{}, err
		}
		cal.NonWorkingDays = append(cal.NonWorkingDays, wd)
	}

	for _, h := range c.Calendar.Holidays {
		from, err := time.Parse(time.DateOnly, h.From)
		if err != nil {
			return model.HolidayCalendar{}, fmt.Errorf("holiday %q: from: %w", h.Name, err)
		}
		to := from
		if h.To != "" {
			if to, err = time.Parse(time.DateOnly, h.To); err != nil {
				return model.HolidayCalendar{}, fmt.Errorf("holiday %q: to: %w", h.Name, err)
			}
		}
		if to.Before(from) {
			return model.HolidayCalendar{}, fmt.Errorf("holiday %q ends before it starts", h.Name)
		}
		holiday := model.Holiday{Name: h.Name, From: from, To: to}
		if h.RescheduleTo != "" {
			d, err := time.Parse(time.DateOnly, h.RescheduleTo)
			if err != nil {
				return model.HolidayCalendar{}, fmt.Errorf("holiday %q: reschedule_to: %w", h.Name, err)
			}
			holiday.RescheduleTo = &d
		}
		cal.Holidays = append(cal.Holidays, holiday)
	}
	return cal, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid non-working day: %q", s)
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
		ConsumerGroup: c.Kafka.ConsumerGroup,
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
