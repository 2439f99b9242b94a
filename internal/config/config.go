package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Disclosure DisclosureConfig `mapstructure:"disclosure"`
	Minio      MinioConfig      `mapstructure:"minio"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds SQLite database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// TextOnly switches the dispatcher to a degraded mode where subscribers
	// receive a link to the source document instead of the binary itself.
	TextOnly bool `mapstructure:"text_only"`
}

// DisclosureConfig holds disclosure provider API configuration
type DisclosureConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Login      string `mapstructure:"login"`
	Password   string `mapstructure:"password"`
	TokenFile  string `mapstructure:"token_file"`
	EventCount int    `mapstructure:"event_count"`
}

// MinioConfig holds object store configuration
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// SchedulerConfig holds polling scheduler configuration
type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.path", "data/bot.db")

	viper.SetDefault("telegram.text_only", false)

	viper.SetDefault("disclosure.base_url", "https://gateway.e-disclosure.ru/api/v1")
	viper.SetDefault("disclosure.token_file", "data/interfax_token.json")
	viper.SetDefault("disclosure.event_count", 100)

	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.bucket", "reports")
	viper.SetDefault("minio.use_ssl", false)

	viper.SetDefault("scheduler.interval_minutes", 15)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.path", "DB_PATH")

	// Telegram
	viper.BindEnv("telegram.token", "BOT_TOKEN")
	viper.BindEnv("telegram.text_only", "BOT_TEXT_ONLY")

	// Disclosure provider
	viper.BindEnv("disclosure.base_url", "INTERFAX_BASE_URL")
	viper.BindEnv("disclosure.login", "INTERFAX_LOGIN")
	viper.BindEnv("disclosure.password", "INTERFAX_PASSWORD")
	viper.BindEnv("disclosure.token_file", "INTERFAX_TOKEN_FILE")
	viper.BindEnv("disclosure.event_count", "INTERFAX_EVENT_COUNT")

	// MinIO
	viper.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("minio.bucket", "MINIO_BUCKET")
	viper.BindEnv("minio.use_ssl", "MINIO_USE_SSL")

	// Scheduler
	viper.BindEnv("scheduler.interval_minutes", "DISPATCH_INTERVAL_MINUTES")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.Disclosure.BaseURL == "" || c.Disclosure.Login == "" || c.Disclosure.Password == "" {
		return fmt.Errorf("disclosure base_url, login, and password are required")
	}

	if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
		return fmt.Errorf("minio endpoint and bucket are required")
	}

	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	return nil
}
