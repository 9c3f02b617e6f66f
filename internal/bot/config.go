package bot

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/tarotbot/core/config"
	"github.com/m3rciful/tarotbot/core/database"
	"github.com/m3rciful/tarotbot/internal/billing"
	"github.com/m3rciful/tarotbot/internal/delivery"
	"github.com/m3rciful/tarotbot/internal/genai"
)

// PacingConfig sets delivery delays in milliseconds.
type PacingConfig struct {
	IntroMS   int `yaml:"intro_ms" envconfig:"PACING_INTRO_MS"`
	DwellMS   int `yaml:"dwell_ms" envconfig:"PACING_DWELL_MS"`
	VerdictMS int `yaml:"verdict_ms" envconfig:"PACING_VERDICT_MS"`
}

// Pacing converts the settings, using the default for unset values.
func (p PacingConfig) Pacing() delivery.Pacing {
	out := delivery.DefaultPacing
	if p.IntroMS > 0 {
		out.Intro = time.Duration(p.IntroMS) * time.Millisecond
	}
	if p.DwellMS > 0 {
		out.Dwell = time.Duration(p.DwellMS) * time.Millisecond
	}
	if p.VerdictMS > 0 {
		out.Verdict = time.Duration(p.VerdictMS) * time.Millisecond
	}
	return out
}

// TarotConfig holds product settings.
type TarotConfig struct {
	// FreeUsers read without paying.
	FreeUsers     []int64      `yaml:"free_users" envconfig:"FREE_USERS"`
	StandardPrice int          `yaml:"standard_price" envconfig:"STANDARD_PRICE"`
	PremiumPrice  int          `yaml:"premium_price" envconfig:"PREMIUM_PRICE"`
	ProviderToken string       `yaml:"provider_token" envconfig:"PAYMENT_PROVIDER_TOKEN"`
	Pacing        PacingConfig `yaml:"pacing"`
}

// Catalog returns the price list.
func (t TarotConfig) Catalog() billing.Catalog {
	return billing.Catalog{StandardPrice: t.StandardPrice, PremiumPrice: t.PremiumPrice}
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Tarot  TarotConfig     `yaml:"tarot"`
	GenAI  genai.Config    `yaml:"genai"`
	Ledger database.Config `yaml:"ledger"`
}

// LoadConfig reads path and the environment into a validated Config.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if c.Tarot.StandardPrice <= 0 {
		c.Tarot.StandardPrice = 100
	}
	if c.Tarot.PremiumPrice <= 0 {
		c.Tarot.PremiumPrice = 300
	}
	c.GenAI.Normalize()
	if err := c.Ledger.Normalize(); err != nil {
		return fmt.Errorf("ledger config: %w", err)
	}
	return nil
}
