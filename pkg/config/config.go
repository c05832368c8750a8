// Package config loads and validates the indexer configuration from an
// optional YAML file with environment-variable overrides. DATABASE_URL is
// the only required setting; Redis, Kafka and the metrics push are enabled
// only when their addresses are set.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PostgresConfig holds the connection string and connection behaviour.
type PostgresConfig struct {
	URL              string        `yaml:"url"`
	StatementTimeout time.Duration `yaml:"statementTimeout"`
	ConnectTimeout   time.Duration `yaml:"connectTimeout"`
	ConnectAttempts  int           `yaml:"connectAttempts"`
}

// IndexerConfig controls batch size, re-index semantics and the run lock.
type IndexerConfig struct {
	BatchSize      int           `yaml:"batchSize"`
	ReplaceEntries bool          `yaml:"replaceEntries"`
	LockName       string        `yaml:"lockName"`
	LockTTL        time.Duration `yaml:"lockTTL"`
}

// RedisConfig enables the Redis run lock when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// KafkaConfig enables index-complete notifications when Brokers is set.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus Pushgateway push at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	Job            string `yaml:"job"`
}

func (m MetricsConfig) Enabled() bool {
	return m.PushgatewayURL != ""
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfig, "reading config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfig, "parsing config file %s: %v", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			ConnectTimeout:  5 * time.Second,
			ConnectAttempts: 3,
		},
		Indexer: IndexerConfig{
			BatchSize: 100,
			LockName:  "search-indexer:batch",
			LockTTL:   10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Job: "search-indexer",
		},
	}
}

// applyEnvOverrides reads the environment and overrides the corresponding
// config fields. Malformed numeric, boolean or duration values are
// configuration errors.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if err := envInt("INDEXER_BATCH_SIZE", &cfg.Indexer.BatchSize); err != nil {
		return err
	}
	if err := envBool("INDEXER_REPLACE_ENTRIES", &cfg.Indexer.ReplaceEntries); err != nil {
		return err
	}
	if err := envDuration("INDEXER_LOCK_TTL", &cfg.Indexer.LockTTL); err != nil {
		return err
	}
	if err := envDuration("INDEXER_STATEMENT_TIMEOUT", &cfg.Postgres.StatementTimeout); err != nil {
		return err
	}
	if err := envInt("INDEXER_CONNECT_ATTEMPTS", &cfg.Postgres.ConnectAttempts); err != nil {
		return err
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC_INDEX_COMPLETE"); v != "" {
		cfg.Kafka.Topics.IndexComplete = v
	}
	if v := os.Getenv("METRICS_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("METRICS_JOB"); v != "" {
		cfg.Metrics.Job = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Postgres.URL) == "" {
		return apperrors.New(apperrors.ErrConfig, "DATABASE_URL is required")
	}
	if err := validateDatabaseURL(c.Postgres.URL); err != nil {
		return err
	}
	if c.Indexer.BatchSize <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, "batch size must be positive, got %d", c.Indexer.BatchSize)
	}
	if c.Postgres.StatementTimeout < 0 {
		return apperrors.Newf(apperrors.ErrConfig, "statement timeout must not be negative, got %v", c.Postgres.StatementTimeout)
	}
	if c.Indexer.LockTTL <= 0 {
		return apperrors.Newf(apperrors.ErrConfig, "lock TTL must be positive, got %v", c.Indexer.LockTTL)
	}
	if c.Kafka.Enabled() && c.Kafka.Topics.IndexComplete == "" {
		return apperrors.New(apperrors.ErrConfig, "kafka brokers set without an index-complete topic")
	}
	return nil
}

// validateDatabaseURL accepts postgres:// URLs and lib/pq key=value DSNs.
func validateDatabaseURL(raw string) error {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfig, "malformed DATABASE_URL: %v", err)
		}
		if _, err := pq.ParseURL(raw); err != nil {
			return apperrors.Newf(apperrors.ErrConfig, "malformed DATABASE_URL: %v", err)
		}
		if u.Host == "" {
			return apperrors.New(apperrors.ErrConfig, "malformed DATABASE_URL: missing host")
		}
		return nil
	}
	if !strings.Contains(raw, "=") {
		return apperrors.New(apperrors.ErrConfig, "malformed DATABASE_URL: expected a postgres:// URL or key=value pairs")
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return apperrors.Newf(apperrors.ErrConfig, "%s: %v", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return apperrors.Newf(apperrors.ErrConfig, "%s: %v", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return apperrors.Newf(apperrors.ErrConfig, "%s: %v", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Redacted returns the database URL with any password removed, for logging.
func (p PostgresConfig) Redacted() string {
	u, err := url.Parse(p.URL)
	if err != nil || u.User == nil {
		if strings.Contains(p.URL, "://") {
			return p.URL
		}
		return "(dsn)"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func (c *Config) String() string {
	return fmt.Sprintf("postgres=%s batch_size=%d replace_entries=%t redis=%t kafka=%t metrics_push=%t",
		c.Postgres.Redacted(), c.Indexer.BatchSize, c.Indexer.ReplaceEntries,
		c.Redis.Enabled(), c.Kafka.Enabled(), c.Metrics.Enabled())
}
