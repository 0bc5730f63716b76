package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spriteops/key-server/internal/api/http"
	"github.com/spriteops/key-server/internal/mail"
)

type Config struct {
	Log   LogConfig
	Http  http.Config
	Batch BatchConfig
	Mail  mail.Config
}

type BatchConfig struct {
	DataFile             string `mapstructure:"data_file"`
	CredDir              string `mapstructure:"cred_dir"`
	LinkTTLHours         int    `mapstructure:"link_ttl_hours"`
	SweepIntervalMinutes int    `mapstructure:"sweep_interval_minutes"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/key-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("http.admin_secret", "KEY_SERVER_SECRET")
	_ = viper.BindEnv("http.base_url", "KEY_SERVER_URL")
	_ = viper.BindEnv("mail.password", "SMTP_PASSWORD")

	viper.SetDefault("log.level", "INFO")
	viper.SetDefault("http.port", 8377)
	viper.SetDefault("http.base_url", "http://localhost:8377")
	viper.SetDefault("http.rate_limit.max", 5)
	viper.SetDefault("http.rate_limit.window_ms", 60000)
	viper.SetDefault("batch.data_file", "data.json")
	viper.SetDefault("batch.cred_dir", "credentials")
	viper.SetDefault("batch.link_ttl_hours", 24)
	viper.SetDefault("batch.sweep_interval_minutes", 10)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	// Initialize logger with configured log level
	initLogger(config.Log.Level)

	// Pretty print config as JSON (only at DEBUG level)
	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		redacted := config
		redacted.Http.AdminSecret = "<redacted>"
		redacted.Mail.Password = "<redacted>"
		configJSON, err := json.MarshalIndent(redacted, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
