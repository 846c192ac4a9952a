package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "auto"},
		AI: AIConfig{
			PrimaryModel:     "a",
			FallbackModels:   []string{"b"},
			FallbackStrategy: "next",
			Timeout:          time.Minute,
			Cache:            CacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 10},
		},
		Models: map[string]ModelConfig{
			"a": {Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.7},
			"b": {Provider: "anthropic", Model: "claude"},
		},
		Tools:        map[string]ToolConfig{"decompose": {Enabled: true}},
		Workflow:     WorkflowConfig{MaxSteps: 10, BatchConcurrency: 2},
		Conversation: ConversationConfig{ChunkSize: 3, BufferPercent: 20},
		Server:       ServerConfig{Port: 8088},
	}
}

func TestValidator_Valid(t *testing.T) {
	if err := NewValidator().Validate(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"unknown primary", func(c *Config) { c.AI.PrimaryModel = "zzz" }, "ai.primary_model"},
		{"unknown fallback", func(c *Config) { c.AI.FallbackModels = []string{"zzz"} }, "ai.fallback_models"},
		{"strategy", func(c *Config) { c.AI.FallbackStrategy = "random" }, "ai.fallback_strategy"},
		{"cache ttl", func(c *Config) { c.AI.Cache.TTL = 0 }, "ai.cache.ttl"},
		{"provider", func(c *Config) { c.Models["a"] = ModelConfig{Provider: "bard", Model: "x"} }, "models.a.provider"},
		{"compatible needs url", func(c *Config) { c.Models["a"] = ModelConfig{Provider: "openai-compatible", Model: "x"} }, "models.a.base_url"},
		{"unknown tool", func(c *Config) { c.Tools["summarize"] = ToolConfig{} }, "tools.summarize"},
		{"max steps", func(c *Config) { c.Workflow.MaxSteps = 0 }, "workflow.max_steps"},
		{"buffer", func(c *Config) { c.Conversation.BufferPercent = 150 }, "conversation.buffer_percent"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewValidator().Validate(cfg)
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verrs)
			}
		})
	}
}
