// Package config provides configuration for the soclens backend. Values are
// layered: built-in defaults, then an optional YAML file, then SOCLENS_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the soclens backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Wazuh      WazuhConfig      `mapstructure:"wazuh"`
	Pipelines  PipelinesConfig  `mapstructure:"pipelines"`
	Hub        HubConfig        `mapstructure:"hub"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Syslog     SyslogConfig     `mapstructure:"syslog"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OpenSearchConfig describes the upstream alert index.
type OpenSearchConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Insecure bool          `mapstructure:"insecure"`
	Index    string        `mapstructure:"index"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WazuhConfig describes the Wazuh manager API used by the agent pipeline.
type WazuhConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Insecure bool          `mapstructure:"insecure"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// PipelineConfig configures one poll-normalize-cache-broadcast loop.
type PipelineConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	PageSize  int           `mapstructure:"page_size"`
	CacheSize int           `mapstructure:"cache_size"`
}

// PipelinesConfig holds the per-stream pipeline settings.
type PipelinesConfig struct {
	Alerts       PipelineConfig `mapstructure:"alerts"`
	Agents       PipelineConfig `mapstructure:"agents"`
	OfflineAfter time.Duration  `mapstructure:"offline_after"`
}

// HubConfig tunes the live-session fan-out.
type HubConfig struct {
	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// PostgresConfig describes the document store the dashboard mirrors
// events into. Disabled by default.
type PostgresConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Database   string `mapstructure:"database"`
	SSLMode    string `mapstructure:"sslmode"`
	Migrations string `mapstructure:"migrations"`
}

// ConnString builds the pgx connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisConfig describes the optional checkpoint store.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig describes the optional delta mirror bus.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Name    string `mapstructure:"name"`
}

// SyslogConfig describes the UDP syslog intake.
type SyslogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from the optional file at path, layered over
// defaults, with SOCLENS_* environment variables taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	} else {
		v.SetConfigName("soclens")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/soclens")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SOCLENS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// missing file is fine, defaults plus env apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "admin")
	v.SetDefault("opensearch.insecure", true)
	v.SetDefault("opensearch.index", "wazuh-alerts-*")
	v.SetDefault("opensearch.timeout", 10*time.Second)

	v.SetDefault("wazuh.url", "https://localhost:55000")
	v.SetDefault("wazuh.username", "wazuh")
	v.SetDefault("wazuh.password", "wazuh")
	v.SetDefault("wazuh.insecure", true)
	v.SetDefault("wazuh.timeout", 10*time.Second)
	v.SetDefault("wazuh.token_ttl", 15*time.Minute)

	v.SetDefault("pipelines.alerts.interval", 5*time.Second)
	v.SetDefault("pipelines.alerts.page_size", 50)
	v.SetDefault("pipelines.alerts.cache_size", 100)
	v.SetDefault("pipelines.agents.interval", 30*time.Second)
	v.SetDefault("pipelines.agents.page_size", 100)
	v.SetDefault("pipelines.agents.cache_size", 100)
	v.SetDefault("pipelines.offline_after", 5*time.Minute)

	v.SetDefault("hub.send_buffer", 64)
	v.SetDefault("hub.write_timeout", 10*time.Second)
	v.SetDefault("hub.ping_interval", 30*time.Second)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "soclens")
	v.SetDefault("postgres.password", "soclens")
	v.SetDefault("postgres.database", "soclens")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.migrations", "file://migrations")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "soclens")

	v.SetDefault("syslog.enabled", false)
	v.SetDefault("syslog.addr", ":1514")
}
