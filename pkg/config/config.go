package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:podscope.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Poll PollConfig `yaml:"poll" json:"poll" jsonschema:"description=Source polling configuration"`

	Generation GenerationConfig `yaml:"generation" json:"generation" jsonschema:"description=Episode generation scheduling"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Outbound fetch configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for episode composition"`
}

// PollConfig holds poll scheduler settings
type PollConfig struct {
	Tick            time.Duration            `yaml:"tick" json:"tick" jsonschema:"default=1m,description=Poll scheduler tick period"`
	MaxFailures     int                      `yaml:"max_failures" json:"max_failures" jsonschema:"default=5,description=Consecutive permanent failures before a source is auto-disabled"`
	MaxBackoffHours int                      `yaml:"max_backoff_hours" json:"max_backoff_hours" jsonschema:"default=24,description=Cap on the backed-off poll interval in hours"`
	TypeDelays      map[string]time.Duration `yaml:"type_delays" json:"type_delays" jsonschema:"description=Pre-request delay per source type"`
	HostDelays      map[string]time.Duration `yaml:"host_delays" json:"host_delays" jsonschema:"description=Pre-request delay per host"`
}

// GenerationConfig holds generation scheduler settings
type GenerationConfig struct {
	Tick            time.Duration `yaml:"tick" json:"tick" jsonschema:"default=1m,description=Generation scheduler tick period"`
	StalenessWindow time.Duration `yaml:"staleness_window" json:"staleness_window" jsonschema:"default=30m,description=Maximum lag for a cron occurrence to still fire"`
}

// FetchConfig holds outbound request settings shared by all fetchers
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Per-fetch timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Podscope/1.0,description=User agent for HTTP requests"`
}

// LLMConfig holds LLM configuration for episode composition
type LLMConfig struct {
	Endpoint     string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model        string        `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. gpt-4o-mini or llama3)"`
	Temperature  float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.7,description=Temperature for response generation"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=2000,description=Maximum tokens in response"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt for the LLM (optional)"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:podscope.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for polling
	if cfg.Poll.Tick == 0 {
		cfg.Poll.Tick = time.Minute
	}
	if cfg.Poll.MaxFailures == 0 {
		cfg.Poll.MaxFailures = 5
	}
	if cfg.Poll.MaxBackoffHours == 0 {
		cfg.Poll.MaxBackoffHours = 24
	}

	// set defaults for generation
	if cfg.Generation.Tick == 0 {
		cfg.Generation.Tick = time.Minute
	}
	if cfg.Generation.StalenessWindow == 0 {
		cfg.Generation.StalenessWindow = 30 * time.Minute
	}

	// set defaults for fetching
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "Podscope/1.0"
	}

	// set defaults for LLM
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Poll.Tick < time.Second {
		return fmt.Errorf("poll.tick must be at least 1 second")
	}
	if cfg.Poll.MaxFailures < 1 {
		return fmt.Errorf("poll.max_failures must be at least 1")
	}
	if cfg.Poll.MaxBackoffHours < 1 {
		return fmt.Errorf("poll.max_backoff_hours must be at least 1")
	}
	for key, delay := range cfg.Poll.HostDelays {
		if delay < 0 {
			return fmt.Errorf("poll.host_delays[%s] must be non-negative", key)
		}
	}
	for key, delay := range cfg.Poll.TypeDelays {
		if delay < 0 {
			return fmt.Errorf("poll.type_delays[%s] must be non-negative", key)
		}
	}

	if cfg.Generation.Tick < time.Second {
		return fmt.Errorf("generation.tick must be at least 1 second")
	}
	if cfg.Generation.StalenessWindow < time.Minute {
		return fmt.Errorf("generation.staleness_window must be at least 1 minute")
	}

	if cfg.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch.timeout must be at least 1 second")
	}

	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	return nil
}

// GetPollConfig returns poll scheduler configuration
func (c *Config) GetPollConfig() PollConfig {
	return c.Poll
}

// GetGenerationConfig returns generation scheduler configuration
func (c *Config) GetGenerationConfig() GenerationConfig {
	return c.Generation
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}
