// Package config provides configuration management for the stock alert monitor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stockquote-alert/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. STOCKALERT_EMAIL_SMTP_PASS.
const EnvPrefix = "STOCKALERT"

// Config holds all application configuration.
type Config struct {
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Cooldown   CooldownConfig   `mapstructure:"cooldown"`
	Email      EmailConfig      `mapstructure:"email"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Store      StoreConfig      `mapstructure:"store"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
	// TemplateCreated is set when Load wrote a fresh config.toml.
	TemplateCreated bool `mapstructure:"-"`
}

// MonitoringConfig holds price polling settings.
type MonitoringConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	APIBaseURL    string        `mapstructure:"api_base_url"`
	BrapiToken    string        `mapstructure:"brapi_token"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	FreeSymbols   []string      `mapstructure:"free_symbols"`
}

// CooldownConfig holds alert cooldown settings.
type CooldownConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Duration time.Duration `mapstructure:"duration"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	SenderEmail       string        `mapstructure:"sender_email"`
	SMTPServer        string        `mapstructure:"smtp_server"`
	SMTPPort          int           `mapstructure:"smtp_port"`
	SMTPUser          string        `mapstructure:"smtp_user"`
	SMTPPass          string        `mapstructure:"smtp_pass"`
	RecipientEmail    string        `mapstructure:"recipient_email"`
	SendTimeout       time.Duration `mapstructure:"send_timeout"`
	RequireConfigured bool          `mapstructure:"require_configured"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// StoreConfig holds alert journal settings.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stockquote-alert"
	}
	return filepath.Join(home, ".config", "stockquote-alert")
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("monitoring.check_interval", "1m")
	v.SetDefault("monitoring.api_base_url", "https://brapi.dev/")
	v.SetDefault("monitoring.brapi_token", "")
	v.SetDefault("monitoring.fetch_timeout", "10s")
	v.SetDefault("monitoring.free_symbols", []string{"PETR4", "MGLU3", "VALE3", "ITUB4"})

	v.SetDefault("cooldown.enabled", true)
	v.SetDefault("cooldown.duration", "30m")

	v.SetDefault("email.sender_email", "")
	v.SetDefault("email.smtp_server", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_pass", "")
	v.SetDefault("email.recipient_email", "")
	v.SetDefault("email.send_timeout", "15s")
	v.SetDefault("email.require_configured", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "stockalert.log"))
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", filepath.Join(configDir, "alerts.db"))
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, configDir)

	cfg := &Config{Dir: configDir}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		cfg.TemplateCreated = true
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads .env files from the config directory and the working
// directory. Existing environment variables win.
func loadDotEnv(configDir string) {
	for _, path := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// Path returns the config file location.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, "config.toml")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Monitoring.CheckInterval <= 0 {
		return errors.NewValidationError("monitoring.check_interval", c.Monitoring.CheckInterval, "must be positive")
	}
	if strings.TrimSpace(c.Monitoring.APIBaseURL) == "" {
		return errors.NewValidationError("monitoring.api_base_url", c.Monitoring.APIBaseURL, "is required")
	}
	if c.Monitoring.FetchTimeout <= 0 {
		return errors.NewValidationError("monitoring.fetch_timeout", c.Monitoring.FetchTimeout, "must be positive")
	}
	if c.Cooldown.Duration < 0 {
		return errors.NewValidationError("cooldown.duration", c.Cooldown.Duration, "must not be negative")
	}
	if c.Email.SMTPPort < 0 || c.Email.SMTPPort > 65535 {
		return errors.NewValidationError("email.smtp_port", c.Email.SMTPPort, "must be between 0 and 65535")
	}
	if c.Email.SendTimeout < 0 {
		return errors.NewValidationError("email.send_timeout", c.Email.SendTimeout, "must not be negative")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return errors.NewValidationError("store.path", c.Store.Path, "is required when the store is enabled")
	}
	return nil
}

// EmailConfigured reports whether the SMTP settings are complete.
func (c *Config) EmailConfigured() bool {
	e := c.Email
	return e.SMTPServer != "" && e.SMTPPort > 0 && e.SenderEmail != "" && e.RecipientEmail != ""
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Monitoring.FreeSymbols = append([]string(nil), c.Monitoring.FreeSymbols...)
	out.Monitoring.BrapiToken = mask(c.Monitoring.BrapiToken)
	out.Email.SMTPPass = mask(c.Email.SMTPPass)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
