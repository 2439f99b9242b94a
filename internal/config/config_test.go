package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Path: "data/bot.db",
		},
		Telegram: TelegramConfig{
			Token: "123:abc",
		},
		Disclosure: DisclosureConfig{
			BaseURL:  "https://gateway.example.com/api/v1",
			Login:    "login",
			Password: "password",
		},
		Minio: MinioConfig{
			Endpoint: "localhost:9000",
			Bucket:   "reports",
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 15,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)

	invalidConfig := &Config{
		Server: ServerConfig{
			Port: "",
		},
	}
	err = invalidConfig.Validate()
	assert.Error(t, err)
}

func TestConfigValidationMissingPieces(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Disclosure.Password = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Minio.Bucket = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Scheduler.IntervalMinutes = 0
	assert.Error(t, cfg.Validate())
}
