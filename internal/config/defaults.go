package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ToolNames lists the tool keys accepted under tools.*.
var ToolNames = []string{"decompose", "estimate", "prioritize", "clarify", "checklist"}

// DefaultModels is used when the configuration declares no models.
func DefaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"gpt-4o-mini": {
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.7,
			MaxTokens:   2048,
			MaxRetries:  2,
			Enabled:     true,
			Priority:    10,
		},
	}
}

// DefaultConfigYAML is written by `aiplanner init`.
const DefaultConfigYAML = `# aiplanner configuration
log:
  level: info
  format: auto

ai:
  primary_model: gpt-4o-mini
  fallback_models: [claude-haiku]
  fallback_strategy: next
  timeout: 60s
  cache:
    enabled: true
    ttl: 10m
    max_entries: 512
    sweep_interval: 1m

models:
  gpt-4o-mini:
    provider: openai
    model: gpt-4o-mini
    api_key_env: OPENAI_API_KEY
    temperature: 0.7
    max_tokens: 2048
    max_retries: 2
    enabled: true
    priority: 10
  claude-haiku:
    provider: anthropic
    model: claude-3-5-haiku-latest
    api_key_env: ANTHROPIC_API_KEY
    temperature: 0.7
    max_tokens: 2048
    max_retries: 1
    enabled: true
    priority: 5

tools:
  decompose:  {enabled: true, retry: true, max_retries: 1, timeout: 90s, priority: 10}
  clarify:    {enabled: true, retry: true, max_retries: 1, timeout: 60s, priority: 9}
  estimate:   {enabled: true, retry: true, max_retries: 1, timeout: 60s, priority: 8}
  prioritize: {enabled: true, retry: true, max_retries: 1, timeout: 90s, priority: 7}
  checklist:  {enabled: true, retry: false, max_retries: 0, timeout: 60s, priority: 5}

workflow:
  max_steps: 16
  checklist_limit: 3
  batch_concurrency: 4

conversation:
  transition_delay: 1s
  chunk_size: 3
  chunk_delay: 20ms
  buffer_percent: 20

storage:
  db_path: .aiplanner/aiplanner.db
  profile_path: .aiplanner/profiles.json

server:
  host: 127.0.0.1
  port: 8088
  cors_origins: ["http://localhost:3000"]
`

// WriteDefault writes DefaultConfigYAML to path unless the file exists and
// force is false.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return atomicWrite(path, []byte(DefaultConfigYAML))
}

// Marshal renders cfg as YAML with secrets masked.
func Marshal(cfg *Config) ([]byte, error) {
	masked := *cfg
	masked.Models = make(map[string]ModelConfig, len(cfg.Models))
	for name, m := range cfg.Models {
		if m.APIKey != "" {
			m.APIKey = "********"
		}
		masked.Models[name] = m
	}
	return yaml.Marshal(&masked)
}
