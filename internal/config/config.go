package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Bluesky  BlueskyConfig  `mapstructure:"bluesky"`
	Poll     PollConfig     `mapstructure:"poll"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Email    EmailConfig    `mapstructure:"email"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	API      APIConfig      `mapstructure:"api"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	// URL is a postgres DSN. Empty means run with in-memory stores
	// (state is lost on restart).
	URL string `mapstructure:"url"`
}

type BlueskyConfig struct {
	// APIBase is the unauthenticated read API endpoint.
	APIBase string `mapstructure:"api_base"`
	// FeedLimit is how many recent posts to request per account per cycle.
	FeedLimit int `mapstructure:"feed_limit"`
}

type PollConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// Interval returns the poll interval as a duration, floored at one second.
func (p PollConfig) Interval() time.Duration {
	if p.IntervalSeconds < 1 {
		return time.Minute
	}
	return time.Duration(p.IntervalSeconds) * time.Second
}

type NotifyConfig struct {
	// Headless disables native desktop notifications and substitutes
	// console output (containers, servers without a display).
	Headless bool `mapstructure:"headless"`
}

type EmailConfig struct {
	APIKey string `mapstructure:"api_key"`
	Domain string `mapstructure:"domain"`
	From   string `mapstructure:"from"`
	To     string `mapstructure:"to"`
}

// Complete reports whether every field required to send mail is set.
// An incomplete config means the email channel is skipped, not fatal.
func (e EmailConfig) Complete() bool {
	return e.APIKey != "" && e.Domain != "" && e.From != "" && e.To != ""
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether event publishing is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type APIConfig struct {
	// AuthSecret enables bearer-token auth on the management API when set.
	AuthSecret string `mapstructure:"auth_secret"`
}

// Load reads configuration from environment variables and an optional
// config file. Environment variables override file values. Prefix: BSKY_NOTIFY_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.url", "")
	v.SetDefault("bluesky.api_base", "https://public.api.bsky.app")
	v.SetDefault("bluesky.feed_limit", 20)
	v.SetDefault("poll.interval_seconds", 60)
	v.SetDefault("notify.headless", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "bsky.posts.detected")

	// Environment variables (e.g. BSKY_NOTIFY_POLL_INTERVAL_SECONDS)
	v.SetEnvPrefix("BSKY_NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short env names for Docker Compose convenience
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("email.api_key", "EMAIL_API_KEY")
	v.BindEnv("email.domain", "EMAIL_DOMAIN")
	v.BindEnv("email.from", "EMAIL_FROM")
	v.BindEnv("email.to", "EMAIL_TO")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("api.auth_secret", "API_AUTH_SECRET")

	// Config file is optional
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
