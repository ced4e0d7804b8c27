package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Channels   []ChannelConfig  `mapstructure:"channels"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MonitoringConfig drives the alerting/capacity/regression engine.
type MonitoringConfig struct {
	DefaultEvaluationInterval time.Duration `mapstructure:"default_evaluation_interval"`
	AlertRetention            time.Duration `mapstructure:"alert_retention"`
	QueryTimeout              time.Duration `mapstructure:"query_timeout"`
	SendTimeout               time.Duration `mapstructure:"send_timeout"`
	DefaultRateLimit          time.Duration `mapstructure:"default_rate_limit"`
	CapacityInterval          time.Duration `mapstructure:"capacity_interval"`
	UtilizationThreshold      float64       `mapstructure:"utilization_threshold"`
	FailureStreak             int           `mapstructure:"failure_streak"`
	RulesFile                 string        `mapstructure:"rules_file"`
	Retry                     RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds notification send retries.
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// ChannelConfig declares a notification transport instance.
type ChannelConfig struct {
	ID       string            `mapstructure:"id"`
	Type     string            `mapstructure:"type"`
	Enabled  bool              `mapstructure:"enabled"`
	Settings map[string]string `mapstructure:"settings"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("monitoring.rules_file", "MONITORING_RULES_FILE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine, defaults and env cover everything.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3100)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.path", "./data/taskhub.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 25)

	viper.SetDefault("logging.level", "info")

	viper.SetDefault("monitoring.default_evaluation_interval", time.Minute)
	viper.SetDefault("monitoring.alert_retention", 7*24*time.Hour)
	viper.SetDefault("monitoring.query_timeout", 10*time.Second)
	viper.SetDefault("monitoring.send_timeout", 10*time.Second)
	viper.SetDefault("monitoring.default_rate_limit", 5*time.Minute)
	viper.SetDefault("monitoring.capacity_interval", time.Hour)
	viper.SetDefault("monitoring.utilization_threshold", 80.0)
	viper.SetDefault("monitoring.failure_streak", 3)

	viper.SetDefault("monitoring.retry.max_retries", 3)
	viper.SetDefault("monitoring.retry.initial_delay", 5*time.Second)
	viper.SetDefault("monitoring.retry.max_delay", time.Minute)
}
