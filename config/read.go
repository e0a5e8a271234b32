package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ReadConfig reads the configuration from the specified JSON file.
func ReadConfig(configPath string) (Config, error) {
	var cfg Config

	viper.SetConfigFile(configPath)
	viper.SetConfigType("json")

	viper.SetDefault("port", 7070)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("completion.model", "llama3-70b-8192")
	viper.SetDefault("completion.timeout_seconds", 30)
	viper.SetDefault("chat.max_content_length", 4000)
	viper.SetDefault("chat.history_limit", 50)
	viper.SetDefault("chat.typing_ttl_seconds", 5)

	if err := viper.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// MustReadConfig reads the configuration or panics if there's an error.
func MustReadConfig(configPath string) Config {
	cfg, err := ReadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return cfg
}
