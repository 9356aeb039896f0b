// Package config loads process configuration from the environment, with an
// optional YAML file overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// EnvConfigFile names the variable holding the optional YAML overlay path.
const EnvConfigFile = "PROFILEREG_CONFIG"

// Config is the full process configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage"`
	Lifetime Lifetime `yaml:"lifetime"`
	Notify   Notify   `yaml:"notify"`
	Kafka    Kafka    `yaml:"kafka"`
	Log      Log      `yaml:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	JWTAudience     string        `yaml:"jwt_audience"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Storage selects and configures the storage host.
type Storage struct {
	Backend     string        `yaml:"backend"`
	Redis       RedisConfig   `yaml:"redis"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	TxTimeout   time.Duration `yaml:"tx_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Prefix       string        `yaml:"prefix"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Lifetime configures entry aging.
type Lifetime struct {
	Initial  time.Duration `yaml:"initial"`
	LowWater time.Duration `yaml:"low_water"`
	Horizon  time.Duration `yaml:"horizon"`
}

// Notify configures event delivery.
type Notify struct {
	BufferSize       int           `yaml:"buffer_size"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	LogEvents        bool          `yaml:"log_events"`
	RelayInterval    time.Duration `yaml:"relay_interval"`
	RelayBatch       int           `yaml:"relay_batch"`
}

// Kafka configures the event stream. Empty Brokers disables it.
type Kafka struct {
	Brokers           []string `yaml:"brokers"`
	TopicPrefix       string   `yaml:"topic_prefix"`
	ClientID          string   `yaml:"client_id"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

// Enabled reports whether brokers are configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Log configures the process logger.
type Log struct {
	Level     string `yaml:"level"`
	AddSource bool   `yaml:"add_source"`
}

// Defaults returns the development configuration.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			JWTSigningKey:   "dev-secret-key-change-in-production",
			JWTIssuer:       "profilereg",
			JWTAudience:     "profilereg",
			TokenTTL:        time.Hour,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: Storage{
			Backend:    BackendMemory,
			TxTimeout:  5 * time.Second,
			MaxRetries: 8,
			Redis: RedisConfig{
				Prefix:       "profilereg:",
				PoolSize:     20,
				MinIdleConns: 2,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Lifetime: Lifetime{
			Initial:  7 * 24 * time.Hour,
			LowWater: 30 * 24 * time.Hour,
			Horizon:  150 * 24 * time.Hour,
		},
		Notify: Notify{
			BufferSize:       4096,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
			LogEvents:        true,
			RelayInterval:    time.Second,
			RelayBatch:       100,
		},
		Kafka: Kafka{
			TopicPrefix:       "profilereg",
			ClientID:          "profilereg",
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Log: Log{Level: "info"},
	}
}

// FromEnv builds a Config from defaults and environment variables.
func FromEnv() (Config, error) {
	cfg := Defaults()
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("PROFILEREG_ADDR", &cfg.Server.Addr)
	str("JWT_SIGNING_KEY", &cfg.Server.JWTSigningKey)
	str("JWT_ISSUER", &cfg.Server.JWTIssuer)
	str("JWT_AUDIENCE", &cfg.Server.JWTAudience)
	dur("TOKEN_TTL", &cfg.Server.TokenTTL)

	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("REDIS_URL", &cfg.Storage.Redis.URL)
	str("REDIS_PREFIX", &cfg.Storage.Redis.Prefix)
	num("REDIS_POOL_SIZE", &cfg.Storage.Redis.PoolSize)
	str("DATABASE_URL", &cfg.Storage.PostgresDSN)
	dur("STORAGE_TX_TIMEOUT", &cfg.Storage.TxTimeout)
	num("STORAGE_MAX_RETRIES", &cfg.Storage.MaxRetries)

	dur("LIFETIME_INITIAL", &cfg.Lifetime.Initial)
	dur("LIFETIME_LOW_WATER", &cfg.Lifetime.LowWater)
	dur("LIFETIME_HORIZON", &cfg.Lifetime.Horizon)

	num("NOTIFY_BUFFER_SIZE", &cfg.Notify.BufferSize)
	if v := os.Getenv("NOTIFY_LOG_EVENTS"); v != "" {
		cfg.Notify.LogEvents = v == "true"
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC_PREFIX", &cfg.Kafka.TopicPrefix)
	str("KAFKA_CLIENT_ID", &cfg.Kafka.ClientID)

	str("LOG_LEVEL", &cfg.Log.Level)

	return cfg, errors.Join(errs...)
}

// Load reads the environment, then overlays the YAML file named by
// PROFILEREG_CONFIG when set, then validates the result.
func Load() (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.Overlay(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

// Overlay merges the YAML document at path into c. Keys absent from the
// file keep their current values.
func (c *Config) Overlay(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Server.JWTSigningKey == "" {
		errs = append(errs, errors.New("server.jwt_signing_key is required"))
	}
	if c.Lifetime.LowWater <= 0 || c.Lifetime.Horizon < c.Lifetime.LowWater {
		errs = append(errs, errors.New("lifetime.horizon must be at least lifetime.low_water"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
