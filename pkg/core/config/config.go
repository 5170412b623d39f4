// Package config loads config/app.yaml and the credentials taken from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"balance_sheet_analyzer/pkg/core/agent"
	"balance_sheet_analyzer/pkg/core/store"

	"gopkg.in/yaml.v2"
)

// ErrMissingCredential means a required API key or connection string is not set.
// The process cannot start without it.
var ErrMissingCredential = errors.New("missing required credential")

type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Database   DatabaseConfig        `yaml:"database"`
	Groups     []string              `yaml:"groups"`
	Extraction ExtractionConfig      `yaml:"extraction"`
	Chat       ChatConfig            `yaml:"chat"`
	LLM        agent.Config          `yaml:"llm"`
	Logging    LoggingConfig         `yaml:"logging"`
	Resources  string                `yaml:"resources_dir"`
	Seed       map[string]store.Seed `yaml:"seed"`

	Credentials Credentials `yaml:"-"`
}

type ServerConfig struct {
	Addr              string `yaml:"addr"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	UploadDir         string `yaml:"upload_dir"`
}

type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	URL     string `yaml:"url"`
	DataDir string `yaml:"data_dir"`
}

type ExtractionConfig struct {
	MaxInputChars  int  `yaml:"max_input_chars"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	LenientJSON    bool `yaml:"lenient_json"`
}

type ChatConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Temperature    *float64 `yaml:"temperature"` // unset keeps the provider default
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Credentials are never read from the YAML file.
type Credentials struct {
	GeminiAPIKey   string
	DeepSeekAPIKey string
	QwenAPIKey     string
	DatabaseURL    string
}

// Key returns the API key for a provider name.
func (c Credentials) Key(provider string) string {
	switch provider {
	case "gemini":
		return c.GeminiAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	case "qwen":
		return c.QwenAPIKey
	}
	return ""
}

// Load reads path, applies defaults and environment credentials, and checks
// that every provider the agents route to has a key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, os.Getenv)
}

// Parse is Load without the file read; getenv supplies the credentials.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	cfg.Credentials = Credentials{
		GeminiAPIKey:   getenv("GEMINI_API_KEY"),
		DeepSeekAPIKey: getenv("DEEPSEEK_API_KEY"),
		QwenAPIKey:     firstNonEmpty(getenv("DASHSCOPE_API_KEY"), getenv("QWEN_API_KEY")),
		DatabaseURL:    firstNonEmpty(getenv("DATABASE_URL"), cfg.Database.URL),
	}
	cfg.Database.URL = cfg.Credentials.DatabaseURL

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.SessionTTLMinutes <= 0 {
		c.Server.SessionTTLMinutes = 12 * 60
	}
	if c.Database.Driver == "" {
		c.Database.Driver = store.DriverSQLite
	}
	if c.Database.DataDir == "" {
		c.Database.DataDir = "data"
	}
	if c.Extraction.MaxInputChars <= 0 {
		c.Extraction.MaxInputChars = 900_000
	}
	if c.Extraction.TimeoutSeconds <= 0 {
		c.Extraction.TimeoutSeconds = 180
	}
	if c.Chat.TimeoutSeconds <= 0 {
		c.Chat.TimeoutSeconds = 120
	}
	if c.LLM.ActiveProvider == "" {
		c.LLM.ActiveProvider = "gemini"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Resources == "" {
		c.Resources = "resources"
	}
	if len(c.Groups) == 0 {
		for g := range c.Seed {
			c.Groups = append(c.Groups, g)
		}
		sort.Strings(c.Groups)
	}
}

func (c *Config) validate() error {
	if len(c.Groups) == 0 {
		return fmt.Errorf("config: no groups configured")
	}
	for _, role := range []string{agent.Extraction, agent.Analyst} {
		provider := c.LLM.ProviderName(role)
		switch provider {
		case "gemini", "deepseek", "qwen":
		default:
			return fmt.Errorf("config: agent %q routes to unknown provider %q", role, provider)
		}
		if c.Credentials.Key(provider) == "" {
			return fmt.Errorf("%w: API key for %s (agent %s)", ErrMissingCredential, provider, role)
		}
	}
	if c.Database.Driver == store.DriverPostgres && c.Database.URL == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingCredential)
	}
	return nil
}

// StoreOptions maps the database section onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{Driver: c.Database.Driver, URL: c.Database.URL, DataDir: c.Database.DataDir}
}

func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}

func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Chat.TimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
