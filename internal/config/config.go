// Package config loads the registry console configuration from the
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jacksonlee411/registry-console/pkg/authz"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`

	StoreDriver   string `mapstructure:"store_driver"`
	DatabaseURL   string `mapstructure:"database_url"`
	DBHost        string `mapstructure:"db_host"`
	DBPort        string `mapstructure:"db_port"`
	DBUser        string `mapstructure:"db_user"`
	DBPassword    string `mapstructure:"db_password"`
	DBName        string `mapstructure:"db_name"`
	DBSSLMode     string `mapstructure:"db_sslmode"`
	MongoURL      string `mapstructure:"mongo_url"`
	MongoDatabase string `mapstructure:"mongo_database"`

	CacheDir string `mapstructure:"cache_dir"`

	AuthzMode          string `mapstructure:"authz_mode"`
	AuthzAllowDisabled bool   `mapstructure:"authz_unsafe_allow_disabled"`
	AuthzModelPath     string `mapstructure:"authz_model_path"`
	AllowlistPath      string `mapstructure:"allowlist_path"`
	KratosPublicURL    string `mapstructure:"kratos_public_url"`
	// DevAccounts ("email:password") replaces Kratos with a static identity
	// provider when non-empty.
	DevAccounts []string `mapstructure:"dev_accounts"`
	SIDTTLHours int      `mapstructure:"sid_ttl_hours"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	TracingExporter     string  `mapstructure:"tracing_exporter"`
	TracingOTLPEndpoint string  `mapstructure:"tracing_otlp_endpoint"`
	TracingSampleRate   float64 `mapstructure:"tracing_sample_rate"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:            ":8080",
		StoreDriver:         DriverMemory,
		DBHost:              "127.0.0.1",
		DBPort:              "5438",
		DBUser:              "app",
		DBPassword:          "app",
		DBName:              "registry_console",
		DBSSLMode:           "disable",
		MongoDatabase:       "registry_console",
		AuthzMode:           string(authz.ModeEnforce),
		KratosPublicURL:     "http://127.0.0.1:4433",
		SIDTTLHours:         24 * 14,
		LogLevel:            "info",
		LogFormat:           "text",
		TracingExporter:     "none",
		TracingOTLPEndpoint: "localhost:4317",
		TracingSampleRate:   1.0,
	}
}

// Load reads configuration. file may be empty; environment variables
// (upper-cased keys, e.g. DATABASE_URL) override file values.
func Load(file string) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("store_driver", d.StoreDriver)
	v.SetDefault("database_url", "")
	v.SetDefault("db_host", d.DBHost)
	v.SetDefault("db_port", d.DBPort)
	v.SetDefault("db_user", d.DBUser)
	v.SetDefault("db_password", d.DBPassword)
	v.SetDefault("db_name", d.DBName)
	v.SetDefault("db_sslmode", d.DBSSLMode)
	v.SetDefault("mongo_url", "")
	v.SetDefault("mongo_database", d.MongoDatabase)
	v.SetDefault("cache_dir", "")
	v.SetDefault("authz_mode", d.AuthzMode)
	v.SetDefault("authz_unsafe_allow_disabled", false)
	v.SetDefault("authz_model_path", "")
	v.SetDefault("allowlist_path", "")
	v.SetDefault("kratos_public_url", d.KratosPublicURL)
	v.SetDefault("dev_accounts", []string{})
	v.SetDefault("sid_ttl_hours", d.SIDTTLHours)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("tracing_exporter", d.TracingExporter)
	v.SetDefault("tracing_otlp_endpoint", d.TracingOTLPEndpoint)
	v.SetDefault("tracing_sample_rate", d.TracingSampleRate)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverPostgres:
	case DriverMongo:
		if strings.TrimSpace(c.MongoURL) == "" {
			return errors.New("config: store_driver=mongo requires MONGO_URL")
		}
	default:
		return fmt.Errorf("config: unknown store_driver %q (expected memory|postgres|mongo)", c.StoreDriver)
	}
	if _, err := c.AuthzModeValue(); err != nil {
		return err
	}
	switch c.TracingExporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("config: unknown tracing_exporter %q", c.TracingExporter)
	}
	return nil
}

func (c Config) AuthzModeValue() (authz.Mode, error) {
	return authz.ParseMode(c.AuthzMode, c.AuthzAllowDisabled)
}

// DatabaseDSN prefers DATABASE_URL and otherwise assembles a postgres URL
// from the DB_* parts.
func (c Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.DBSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c Config) SessionTTL() time.Duration {
	if c.SIDTTLHours <= 0 {
		return time.Hour * 24 * 14
	}
	return time.Hour * time.Duration(c.SIDTTLHours)
}
