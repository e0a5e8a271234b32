package config

import "time"

type Config struct {
	Port        int              `mapstructure:"port"`
	LogLevel    string           `mapstructure:"log_level"`
	NATSURL     string           `mapstructure:"nats_url"`
	RedisURL    string           `mapstructure:"redis_url"`
	DatabaseURL string           `mapstructure:"database_url"`
	Completion  CompletionConfig `mapstructure:"completion"`
	Chat        ChatConfig       `mapstructure:"chat"`
}

type CompletionConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ChatConfig struct {
	MaxContentLength int `mapstructure:"max_content_length"`
	HistoryLimit     int `mapstructure:"history_limit"`
	TypingTTLSeconds int `mapstructure:"typing_ttl_seconds"`
}

func (c CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ChatConfig) TypingTTL() time.Duration {
	return time.Duration(c.TypingTTLSeconds) * time.Second
}
