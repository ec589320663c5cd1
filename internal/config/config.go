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
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	MQTT       MQTTConfig
	Fanout     FanoutConfig
	Monitoring MonitoringConfig
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
	AppDB PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MQTTConfig struct {
	BrokerURL      string        `mapstructure:"broker_url"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	CommandPrefix  string        `mapstructure:"command_prefix"`
	TelemetryTopic string        `mapstructure:"telemetry_topic"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	QoS            int           `mapstructure:"qos"`
}

type FanoutConfig struct {
	// RedisChannel bridges fan-out events between horizontally scaled
	// instances; empty disables the bridge and events stay instance-local.
	RedisChannel    string `mapstructure:"redis_channel"`
	ClientQueueSize int    `mapstructure:"client_queue_size"`
}

type MonitoringConfig struct {
	LogLevel           string `mapstructure:"log_level"`
	PrometheusEndpoint string `mapstructure:"prometheus_endpoint"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("SENTINEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database defaults
	viper.SetDefault("database.postgres_app.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.db", 0)

	// MQTT defaults
	viper.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	viper.SetDefault("mqtt.command_prefix", "drones/commands")
	viper.SetDefault("mqtt.telemetry_topic", "drones/+/telemetry")
	viper.SetDefault("mqtt.publish_timeout", "5s")
	viper.SetDefault("mqtt.qos", 1)

	// Fanout defaults
	viper.SetDefault("fanout.redis_channel", "sentinel:events")
	viper.SetDefault("fanout.client_queue_size", 64)

	// Monitoring defaults
	viper.SetDefault("monitoring.log_level", "info")
	viper.SetDefault("monitoring.prometheus_endpoint", "http://localhost:9090")
}

func validateConfig(config *Config) error {
	if config.Database.AppDB.Host == "" {
		return fmt.Errorf("postgres app host is required")
	}
	if config.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt broker url is required")
	}
	if config.MQTT.QoS < 0 || config.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}
