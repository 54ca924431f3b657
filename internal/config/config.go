// Package config provides configuration loading for birdsql.
//
// Configuration is read from a YAML file, overridden by BIRDSQL_-prefixed
// environment variables, with hardcoded defaults filling any gaps. Per-role
// overrides under agent_overrides are merged over the global values by
// Resolve before the orchestration loop starts, so the control flow never
// consults lookup chains at runtime.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. It is read-only once loaded
// and safe to share across concurrently processed questions.
type Config struct {
	LLM            LLMConfig           `koanf:"llm"`
	Database       DatabaseConfig      `koanf:"database"`
	Agents         AgentsConfig        `koanf:"agents"`
	AgentOverrides map[string]Override `koanf:"agent_overrides"`
	Logging        LoggingConfig       `koanf:"logging"`

	// DebugMode selects direct agent invocation instead of the group-chat
	// transport. Direct mode is fully deterministic.
	DebugMode bool `koanf:"debug_mode"`
}

// LLMConfig holds the model parameters shared by all LLM-backed agents.
type LLMConfig struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
}

// DatabaseConfig locates the SQLite database files.
type DatabaseConfig struct {
	// Path is the directory containing <database_id>.sqlite files.
	Path string `koanf:"path"`

	// QueryTimeout bounds a single SQL statement.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// AgentsConfig holds the global conversation limits.
type AgentsConfig struct {
	// MaxRepairAttempts bounds the repair loop. Shared between execution
	// errors and validation failures; not two independent budgets.
	MaxRepairAttempts int `koanf:"max_repair_attempts"`

	// MaxConsecutiveReplies is the conversation turn ceiling, the safety
	// valve against runaway agent loops.
	MaxConsecutiveReplies int `koanf:"max_consecutive_replies"`
}

// Override carries per-role settings. Nil fields inherit the global value.
type Override struct {
	Model                 *string        `koanf:"model"`
	Temperature           *float64       `koanf:"temperature"`
	MaxTokens             *int           `koanf:"max_tokens"`
	Timeout               *time.Duration `koanf:"timeout"`
	MaxRepairAttempts     *int           `koanf:"max_repair_attempts"`
	MaxConsecutiveReplies *int           `koanf:"max_consecutive_replies"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// RoleConfig is the fully-resolved configuration for one agent role.
type RoleConfig struct {
	Model                 string
	Temperature           float64
	MaxTokens             int
	Timeout               time.Duration
	MaxRepairAttempts     int
	MaxConsecutiveReplies int
}

// Resolve merges the agent_overrides entry for role over the global values,
// producing one flat struct. Unknown roles resolve to the globals.
func (c *Config) Resolve(role string) RoleConfig {
	rc := RoleConfig{
		Model:                 c.LLM.Model,
		Temperature:           c.LLM.Temperature,
		MaxTokens:             c.LLM.MaxTokens,
		Timeout:               c.LLM.Timeout,
		MaxRepairAttempts:     c.Agents.MaxRepairAttempts,
		MaxConsecutiveReplies: c.Agents.MaxConsecutiveReplies,
	}

	o, ok := c.AgentOverrides[role]
	if !ok {
		return rc
	}
	if o.Model != nil {
		rc.Model = *o.Model
	}
	if o.Temperature != nil {
		rc.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		rc.MaxTokens = *o.MaxTokens
	}
	if o.Timeout != nil {
		rc.Timeout = *o.Timeout
	}
	if o.MaxRepairAttempts != nil {
		rc.MaxRepairAttempts = *o.MaxRepairAttempts
	}
	if o.MaxConsecutiveReplies != nil {
		rc.MaxConsecutiveReplies = *o.MaxConsecutiveReplies
	}
	return rc
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or openai, got %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Agents.MaxRepairAttempts < 0 {
		return fmt.Errorf("agents.max_repair_attempts must not be negative, got %d", c.Agents.MaxRepairAttempts)
	}
	if c.Agents.MaxConsecutiveReplies < 1 {
		return fmt.Errorf("agents.max_consecutive_replies must be at least 1, got %d", c.Agents.MaxConsecutiveReplies)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-3-7-sonnet-20250219"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/databases"
	}
	if cfg.Database.QueryTimeout == 0 {
		cfg.Database.QueryTimeout = 30 * time.Second
	}
	if cfg.Agents.MaxRepairAttempts == 0 {
		cfg.Agents.MaxRepairAttempts = 3
	}
	if cfg.Agents.MaxConsecutiveReplies == 0 {
		cfg.Agents.MaxConsecutiveReplies = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
