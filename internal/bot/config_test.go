package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m3rciful/tarotbot/core/database"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tarot.StandardPrice != 100 || cfg.Tarot.PremiumPrice != 300 {
		t.Fatalf("prices = %d/%d", cfg.Tarot.StandardPrice, cfg.Tarot.PremiumPrice)
	}
	if cfg.GenAI.TimeoutSeconds != 60 || cfg.GenAI.Model == "" {
		t.Fatalf("genai defaults not applied: %+v", cfg.GenAI)
	}
	if cfg.Ledger.Enabled() {
		t.Fatal("ledger should default to memory")
	}
	if cfg.Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	p := cfg.Tarot.Pacing.Pacing()
	if p.Intro != 2*time.Second || p.Dwell != 3*time.Second || p.Verdict != 4*time.Second {
		t.Fatalf("pacing = %+v", p)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
tarot:
  free_users: [11, 22]
  standard_price: 50
  premium_price: 150
  pacing:
    dwell_ms: 10
ledger:
  driver: sqlite
  path: /tmp/ledger.db
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Tarot.FreeUsers) != 2 || cfg.Tarot.FreeUsers[1] != 22 {
		t.Fatalf("free users = %v", cfg.Tarot.FreeUsers)
	}
	cat := cfg.Tarot.Catalog()
	if cat.StandardPrice != 50 || cat.PremiumPrice != 150 {
		t.Fatalf("catalog = %+v", cat)
	}
	if cfg.Ledger.Driver != database.DriverSQLite {
		t.Fatalf("driver = %q", cfg.Ledger.Driver)
	}
	if got := cfg.Tarot.Pacing.Pacing().Dwell; got != 10*time.Millisecond {
		t.Fatalf("dwell = %v", got)
	}
}

func TestLoadConfigFreeUsersFromEnv(t *testing.T) {
	t.Setenv("FREE_USERS", "5,6,7")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Tarot.FreeUsers) != 3 || cfg.Tarot.FreeUsers[0] != 5 {
		t.Fatalf("free users = %v", cfg.Tarot.FreeUsers)
	}
	if cfg.GenAI.APIKey != "sk-test" {
		t.Fatalf("api key not read from env")
	}
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	path := writeConfig(t, "tarot:\n  standard_price: 10\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error without token")
	}
}
