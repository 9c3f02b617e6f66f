// Package config holds the settings shared by the Telegram runtime and the
// loader that fills any config struct from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook receives updates on an HTTPS listener.
	RunModeWebhook = "webhook"
	// RunModeLongpoll pulls updates with getUpdates.
	RunModeLongpoll = "longpoll"
)

// TelegramConfig identifies the bot and how it receives updates.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	// RunMode is webhook or longpoll; empty picks webhook when a URL is set.
	RunMode                string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	LongPollTimeoutSeconds int    `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig is used in webhook mode only.
type WebhookConfig struct {
	URL         string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen      string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port        int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig selects level, format and an optional log file.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// DebugSample is "N/M": write N of every M high-volume debug lines.
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_FILE"`
	// Profile "debug" or "dev" defaults the format to text.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig sets the minimum gap between two updates of one user.
// ExcludeUpdates names update kinds that skip the limit: callback, message,
// command or document. Payment updates are never limited.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config is the shared section every bot config embeds.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Decode fills out from the YAML file at path, then from the environment.
// A .env file is loaded first; variables already set in the process win.
// A missing file is not an error so env-only deployments work.
func Decode(path string, out any) error {
	_ = godotenv.Load()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, out); err != nil {
				return fmt.Errorf("config: parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return nil
}

// Normalize validates c and fills defaults.
func Normalize(c *Config) error {
	if c == nil {
		return errors.New("config: nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("config: telegram token is required")
	}
	if c.Telegram.LongPollTimeoutSeconds < 0 {
		return errors.New("config: telegram.longpoll_timeout_seconds must be >= 0")
	}
	c.Webhook.fromPlatform()
	if err := c.resolveRunMode(); err != nil {
		return err
	}
	return c.RateLimit.normalize()
}

// fromPlatform reads the public URL and port that hosting platforms publish
// under their own names.
func (w *WebhookConfig) fromPlatform() {
	if strings.TrimSpace(w.URL) == "" {
		for _, key := range []string{"RENDER_EXTERNAL_URL", "RENDER_SERVICE_URL"} {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				w.URL = v
				break
			}
		}
	}
	if w.Port == 0 {
		if p, err := strconv.Atoi(strings.TrimSpace(os.Getenv("PORT"))); err == nil {
			w.Port = p
		}
	}
}

func (c *Config) resolveRunMode() error {
	mode := strings.ToLower(strings.TrimSpace(c.Telegram.RunMode))
	switch mode {
	case "":
		mode = RunModeLongpoll
		if strings.TrimSpace(c.Webhook.URL) != "" {
			mode = RunModeWebhook
		}
	case "polling":
		mode = RunModeLongpoll
	}

	switch mode {
	case RunModeLongpoll:
	case RunModeWebhook:
		if strings.TrimSpace(c.Webhook.URL) == "" {
			return errors.New("config: webhook.url is required in webhook mode")
		}
		if c.Webhook.Port <= 0 {
			return errors.New("config: webhook.port must be > 0 in webhook mode")
		}
		if strings.TrimSpace(c.Webhook.Listen) == "" {
			c.Webhook.Listen = "0.0.0.0"
		}
	default:
		return fmt.Errorf("config: invalid telegram.run_mode %q; allowed: webhook, longpoll", c.Telegram.RunMode)
	}
	c.Telegram.RunMode = mode
	return nil
}

var excludable = map[string]bool{"callback": true, "message": true, "command": true, "document": true}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 {
		return errors.New("config: rate_limit.interval_ms must be >= 0")
	}
	kept := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if !excludable[key] {
			return fmt.Errorf("config: rate_limit.exclude_updates: unknown kind %q", v)
		}
		kept = append(kept, key)
	}
	r.ExcludeUpdates = kept
	return nil
}
