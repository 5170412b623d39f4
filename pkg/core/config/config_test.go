package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"balance_sheet_analyzer/pkg/core/agent"
	"balance_sheet_analyzer/pkg/core/store"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

const minimal = `
llm:
  active_provider: gemini
seed:
  tata:
    companies: [Tata Motors]
  reliance:
    companies: [Jio Platforms]
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal), env(map[string]string{"GEMINI_API_KEY": "k"}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Database.Driver != store.DriverSQLite {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Extraction.MaxInputChars != 900_000 || cfg.ExtractionTimeout() != 3*time.Minute {
		t.Errorf("extraction defaults = %+v", cfg.Extraction)
	}
	if len(cfg.Groups) != 2 || cfg.Groups[0] != "reliance" {
		t.Errorf("groups = %v", cfg.Groups)
	}
	if cfg.Extraction.LenientJSON {
		t.Error("lenient JSON should default off")
	}
	if cfg.Chat.Temperature != nil {
		t.Errorf("chat temperature = %v, want unset", *cfg.Chat.Temperature)
	}
}

func TestParseMissingCredential(t *testing.T) {
	_, err := Parse([]byte(minimal), env(nil))
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestParsePerAgentRouting(t *testing.T) {
	data := `
groups: [tata]
llm:
  active_provider: gemini
  agents:
    analyst:
      provider: deepseek
`
	// analyst routed to deepseek needs its key even when gemini's is present
	_, err := Parse([]byte(data), env(map[string]string{"GEMINI_API_KEY": "k"}))
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v", err)
	}

	cfg, err := Parse([]byte(data), env(map[string]string{"GEMINI_API_KEY": "k", "DEEPSEEK_API_KEY": "d"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.ProviderName(agent.Analyst) != "deepseek" || cfg.LLM.ProviderName(agent.Extraction) != "gemini" {
		t.Errorf("routing = %+v", cfg.LLM)
	}
}

func TestParseQwenKeyAliases(t *testing.T) {
	data := "llm:\n  active_provider: qwen\ngroups: [tata]\n"
	cfg, err := Parse([]byte(data), env(map[string]string{"QWEN_API_KEY": "q"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Credentials.Key("qwen") != "q" {
		t.Errorf("qwen key = %q", cfg.Credentials.Key("qwen"))
	}
}

func TestParsePostgresNeedsURL(t *testing.T) {
	data := "database:\n  driver: postgres\ngroups: [tata]\n"
	_, err := Parse([]byte(data), env(map[string]string{"GEMINI_API_KEY": "k"}))
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v", err)
	}
	cfg, err := Parse([]byte(data), env(map[string]string{"GEMINI_API_KEY": "k", "DATABASE_URL": "postgres://x"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreOptions().URL != "postgres://x" {
		t.Errorf("store options = %+v", cfg.StoreOptions())
	}
}

func TestLoadShippedConfig(t *testing.T) {
	path := filepath.Join("..", "..", "..", "config", "app.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("config/app.yaml not found")
	}
	t.Setenv("GEMINI_API_KEY", "test-key")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seed, ok := cfg.Seed["reliance"]
	if !ok || len(seed.Users) == 0 || seed.Access["ceo_jio"][0] != "Jio Platforms" {
		t.Errorf("reliance seed = %+v", seed)
	}
	if cfg.Chat.Temperature == nil || *cfg.Chat.Temperature != 0.2 {
		t.Errorf("chat temperature = %v, want 0.2", cfg.Chat.Temperature)
	}
}
