// Package config holds all finsight configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all finsight configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Transaction store configuration
	Store StoreConfig `yaml:"store"`

	// Query engine settings
	Engine EngineConfig `yaml:"engine"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the language-model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // groq, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// StoreConfig configures the SQLite transaction store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EngineConfig configures the query orchestration engine.
type EngineConfig struct {
	// Execution-failure retry budget per request
	MaxAttempts int `yaml:"max_attempts"`

	// Whole-request timeout (wraps the full pipeline)
	RequestTimeout string `yaml:"request_timeout"`

	// Conversation turns kept for follow-up context
	HistorySize int `yaml:"history_size"`

	// Rows shown in the tabular preview
	PreviewRows int `yaml:"preview_rows"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.1,
			Timeout:     "60s",
		},
		Store: StoreConfig{
			DatabasePath: "data/transactions.db",
		},
		Engine: EngineConfig{
			MaxAttempts:    3,
			RequestTimeout: "2m",
			HistorySize:    5,
			PreviewRows:    100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "logs/finsight.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Console:    true,
		},
	}
}

// Load reads configuration from a YAML file, applies defaults for missing
// fields, then applies environment overrides. A missing file is not an
// error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FINSIGHT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("GROQ_API_KEY")
		}
	}
	if v := os.Getenv("FINSIGHT_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("FINSIGHT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("FINSIGHT_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("FINSIGHT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Engine.MaxAttempts < 1 {
		return fmt.Errorf("engine.max_attempts must be at least 1, got %d", c.Engine.MaxAttempts)
	}
	if c.Engine.HistorySize < 0 {
		return fmt.Errorf("engine.history_size must not be negative, got %d", c.Engine.HistorySize)
	}
	if c.Engine.PreviewRows < 1 {
		return fmt.Errorf("engine.preview_rows must be at least 1, got %d", c.Engine.PreviewRows)
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	return nil
}

// LLMTimeout parses the LLM timeout duration.
func (c *Config) LLMTimeout() (time.Duration, error) {
	if c.LLM.Timeout == "" {
		return 60 * time.Second, nil
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	return d, nil
}

// RequestTimeout parses the whole-request timeout duration.
func (c *Config) RequestTimeout() (time.Duration, error) {
	if c.Engine.RequestTimeout == "" {
		return 2 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.Engine.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid engine.request_timeout %q: %w", c.Engine.RequestTimeout, err)
	}
	return d, nil
}
