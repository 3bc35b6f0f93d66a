// FilePath: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Keycloak   KeycloakConfig   `mapstructure:"keycloak"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Sessions   SessionConfig    `mapstructure:"sessions"`
	Query      QueryConfig      `mapstructure:"query"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	ReadingsDB PostgresConfig `mapstructure:"readings"`
	AppDB      PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type KeycloakConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Addr returns host:port for the redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MonitoringConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	Namespace string `mapstructure:"namespace"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

type SessionConfig struct {
	MaxRegisterAttempts int           `mapstructure:"max_register_attempts"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
}

type QueryConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout"`
	MaxRangeDays   int           `mapstructure:"max_range_days"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LUMEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	for _, db := range []string{"readings", "postgres_app"} {
		v.SetDefault("database."+db+".host", "localhost")
		v.SetDefault("database."+db+".port", 5432)
		v.SetDefault("database."+db+".user", "postgres")
		v.SetDefault("database."+db+".password", "")
		v.SetDefault("database."+db+".dbname", "lumen")
		v.SetDefault("database."+db+".sslmode", "disable")
		v.SetDefault("database."+db+".max_open_conns", 20)
		v.SetDefault("database."+db+".max_idle_conns", 5)
	}

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "5m")

	// Keycloak defaults
	v.SetDefault("keycloak.enabled", false)
	v.SetDefault("keycloak.url", "")
	v.SetDefault("keycloak.realm", "")
	v.SetDefault("keycloak.client_id", "")
	v.SetDefault("keycloak.client_secret", "")

	// Monitoring defaults
	v.SetDefault("monitoring.log_level", "info")
	v.SetDefault("monitoring.namespace", "lumen")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "lumen.sensor-events")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "lumen-hub")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "lumen/+/light")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("sessions.max_register_attempts", 3)
	v.SetDefault("sessions.retry_backoff", "25ms")

	v.SetDefault("query.default_timeout", "10s")
	v.SetDefault("query.max_timeout", "60s")
	v.SetDefault("query.max_range_days", 366)
}

func validateConfig(config *Config) error {
	if config.Database.ReadingsDB.Host == "" {
		return fmt.Errorf("readings database host is required")
	}
	if config.Database.AppDB.Host == "" {
		return fmt.Errorf("postgres app host is required")
	}
	if config.Keycloak.Enabled && config.Keycloak.URL == "" {
		return fmt.Errorf("keycloak URL is required when keycloak is enabled")
	}
	if config.MQTT.Enabled && config.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt is enabled")
	}
	if config.Sessions.MaxRegisterAttempts < 1 {
		return fmt.Errorf("sessions.max_register_attempts must be at least 1")
	}
	if config.Query.MaxTimeout < config.Query.DefaultTimeout {
		return fmt.Errorf("query.max_timeout must not be shorter than query.default_timeout")
	}
	if config.Query.MaxRangeDays < 1 {
		return fmt.Errorf("query.max_range_days must be positive")
	}
	return nil
}
