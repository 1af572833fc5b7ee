package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv string `yaml:"app_env"`

	StoreDriver   string        `yaml:"store_driver"`
	StoreDSN      string        `yaml:"store_dsn"`
	StoreTable    string        `yaml:"store_table"`
	MongoDatabase string        `yaml:"mongo_database"`
	StoreTimeout  time.Duration `yaml:"store_timeout"`

	GRPCPort              int  `yaml:"grpc_port"`
	GRPCReflectionEnabled bool `yaml:"grpc_reflection_enabled"`

	HTTPPort    int      `yaml:"http_port"`
	CORSOrigins []string `yaml:"cors_origins"`

	RedisAddr         string   `yaml:"redis_addr"`
	RedisAlertChannel string   `yaml:"redis_alert_channel"`
	KafkaBrokers      []string `yaml:"kafka_brokers"`
	KafkaAlertTopic   string   `yaml:"kafka_alert_topic"`

	AlertWatchInterval time.Duration `yaml:"alert_watch_interval"`
	CatalogFile        string        `yaml:"catalog_file"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		AppEnv:            "development",
		StoreDriver:       DriverSQLite,
		StoreTable:        "customers",
		MongoDatabase:     "analytics",
		StoreTimeout:      5 * time.Second,
		GRPCPort:          50051,
		HTTPPort:          8080,
		RedisAlertChannel: "rfm.alerts",
		KafkaAlertTopic:   "rfm.alerts",
	}
}

// Load reads defaults, then the optional YAML file at path, then the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	if cfg.validate() != nil {
		cfg.StoreDriver = DriverSQLite
		cfg.StoreDSN = defaultDSN(DriverSQLite)
	}
	return cfg
}

func (c *Config) applyEnv() {
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)

	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.StoreDSN = getEnv("STORE_DSN", c.StoreDSN)
	c.StoreTable = getEnv("STORE_TABLE", c.StoreTable)
	c.MongoDatabase = getEnv("MONGO_DATABASE", c.MongoDatabase)
	c.StoreTimeout = getDuration("STORE_TIMEOUT", c.StoreTimeout)

	c.GRPCPort = getInt("GRPC_PORT", c.GRPCPort)
	c.GRPCReflectionEnabled = getBool("GRPC_REFLECTION_ENABLED", c.GRPCReflectionEnabled)
	c.HTTPPort = getInt("HTTP_PORT", c.HTTPPort)
	c.CORSOrigins = getList("CORS_ORIGINS", c.CORSOrigins)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisAlertChannel = getEnv("REDIS_ALERT_CHANNEL", c.RedisAlertChannel)
	c.KafkaBrokers = getList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaAlertTopic = getEnv("KAFKA_ALERT_TOPIC", c.KafkaAlertTopic)

	c.AlertWatchInterval = getDuration("ALERT_WATCH_INTERVAL", c.AlertWatchInterval)
	c.CatalogFile = getEnv("CATALOG_FILE", c.CatalogFile)

	if c.StoreDSN == "" {
		c.StoreDSN = defaultDSN(c.StoreDriver)
	}
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverMySQL, DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", c.StoreDriver)
	}
	if c.StoreDriver != DriverMemory && c.StoreDSN == "" {
		return fmt.Errorf("store driver %s requires STORE_DSN", c.StoreDriver)
	}
	return nil
}

func defaultDSN(driver string) string {
	switch driver {
	case DriverSQLite:
		return "./data/customers.db"
	case DriverMongo:
		return "mongodb://localhost:27017"
	}
	return ""
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
