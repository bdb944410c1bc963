package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        int
	SMTPPort        int
	DBPath          string
	AuthSecret      string
	SMTPAuthEnabled bool
	SMTPUsername    string
	SMTPPassword    string
	LogLevel        string

	Workers       int
	QueueSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	Expiry        time.Duration
	PurgeSchedule string

	NotifyEnabled bool
	RelayAddr     string
	RelayUsername string
	RelayPassword string
	NotifyFrom    string
	PublicURL     string
}

var defaults = map[string]any{
	"http_port":         3025,
	"smtp_port":         2025,
	"db_path":           "",
	"auth_secret":       "",
	"smtp_auth_enabled": true,
	"smtp_username":     "threadparse",
	"smtp_password":     "threadparse",
	"log_level":         "info",
	"workers":           4,
	"queue_size":        256,
	"max_attempts":      3,
	"retry_backoff":     "5s",
	"expiry":            "24h",
	"purge_schedule":    "@every 10m",
	"notify_enabled":    false,
	"relay_addr":        "127.0.0.1:25",
	"relay_username":    "",
	"relay_password":    "",
	"notify_from":       "threadparse@localhost",
	"public_url":        "http://localhost:3025",
}

// Load reads configuration from the optional YAML file named by CONFIG_FILE
// and from environment variables, which take precedence. Keys are the
// lower-cased variable names, e.g. HTTP_PORT is http_port.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		HTTPPort:        v.GetInt("http_port"),
		SMTPPort:        v.GetInt("smtp_port"),
		DBPath:          strings.TrimSpace(v.GetString("db_path")),
		AuthSecret:      strings.TrimSpace(v.GetString("auth_secret")),
		SMTPAuthEnabled: v.GetBool("smtp_auth_enabled"),
		SMTPUsername:    v.GetString("smtp_username"),
		SMTPPassword:    v.GetString("smtp_password"),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		Workers:         v.GetInt("workers"),
		QueueSize:       v.GetInt("queue_size"),
		MaxAttempts:     v.GetInt("max_attempts"),
		RetryBackoff:    v.GetDuration("retry_backoff"),
		Expiry:          v.GetDuration("expiry"),
		PurgeSchedule:   strings.TrimSpace(v.GetString("purge_schedule")),
		NotifyEnabled:   v.GetBool("notify_enabled"),
		RelayAddr:       strings.TrimSpace(v.GetString("relay_addr")),
		RelayUsername:   v.GetString("relay_username"),
		RelayPassword:   v.GetString("relay_password"),
		NotifyFrom:      strings.TrimSpace(v.GetString("notify_from")),
		PublicURL:       strings.TrimRight(strings.TrimSpace(v.GetString("public_url")), "/"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Expiry <= 0 {
		return fmt.Errorf("expiry must be positive, got %s", c.Expiry)
	}
	return nil
}
