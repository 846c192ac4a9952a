package config

import (
	"os"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log          LogConfig              `mapstructure:"log" yaml:"log"`
	AI           AIConfig               `mapstructure:"ai" yaml:"ai"`
	Models       map[string]ModelConfig `mapstructure:"models" yaml:"models"`
	Tools        map[string]ToolConfig  `mapstructure:"tools" yaml:"tools"`
	Workflow     WorkflowConfig         `mapstructure:"workflow" yaml:"workflow"`
	Conversation ConversationConfig     `mapstructure:"conversation" yaml:"conversation"`
	Storage      StorageConfig          `mapstructure:"storage" yaml:"storage"`
	Server       ServerConfig           `mapstructure:"server" yaml:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// AIConfig configures model selection, fallback and response caching.
type AIConfig struct {
	PrimaryModel     string        `mapstructure:"primary_model" yaml:"primary_model"`
	FallbackModels   []string      `mapstructure:"fallback_models" yaml:"fallback_models"`
	FallbackStrategy string        `mapstructure:"fallback_strategy" yaml:"fallback_strategy"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Cache            CacheConfig   `mapstructure:"cache" yaml:"cache"`
}

// CacheConfig configures the non-streaming response cache.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries" yaml:"max_entries"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// ModelConfig configures one model adapter.
type ModelConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider"`
	Model        string        `mapstructure:"model" yaml:"model"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APIKeyEnv    string        `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature  float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Priority     int           `mapstructure:"priority" yaml:"priority"`
	RateLimitRPM int           `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm,omitempty"`
}

// ResolveAPIKey returns the literal key, or the value of APIKeyEnv.
func (m ModelConfig) ResolveAPIKey() string {
	if m.APIKey != "" {
		return m.APIKey
	}
	if m.APIKeyEnv != "" {
		return os.Getenv(m.APIKeyEnv)
	}
	return ""
}

// ToolConfig configures one refinement tool.
type ToolConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Retry      bool          `mapstructure:"retry" yaml:"retry"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Priority   int           `mapstructure:"priority" yaml:"priority"`
}

// WorkflowConfig configures the phase orchestrator.
type WorkflowConfig struct {
	MaxSteps         int `mapstructure:"max_steps" yaml:"max_steps"`
	ChecklistLimit   int `mapstructure:"checklist_limit" yaml:"checklist_limit"`
	BatchConcurrency int `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
}

// ConversationConfig configures the conversational refinement session.
type ConversationConfig struct {
	TransitionDelay time.Duration `mapstructure:"transition_delay" yaml:"transition_delay"`
	ChunkSize       int           `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkDelay      time.Duration `mapstructure:"chunk_delay" yaml:"chunk_delay"`
	BufferPercent   int           `mapstructure:"buffer_percent" yaml:"buffer_percent"`
}

// StorageConfig configures the reference persistence collaborators.
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path" yaml:"db_path"`
	ProfilePath string `mapstructure:"profile_path" yaml:"profile_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}
