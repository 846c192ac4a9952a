package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateModels(cfg.Models)
	v.validateAI(&cfg.AI, cfg.Models)
	v.validateTools(cfg.Tools)
	v.validateWorkflow(&cfg.Workflow)
	v.validateConversation(&cfg.Conversation)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

var validProviders = map[string]bool{
	"openai": true, "openai-compatible": true, "chat": true,
	"anthropic": true, "ollama": true, "langchain-openai": true,
}

func (v *Validator) validateModels(models map[string]ModelConfig) {
	if len(models) == 0 {
		v.addError("models", nil, "at least one model required")
	}
	for name, m := range models {
		prefix := "models." + name
		if !validProviders[m.Provider] {
			v.addError(prefix+".provider", m.Provider, "unknown provider")
		}
		if m.Model == "" {
			v.addError(prefix+".model", m.Model, "model identifier required")
		}
		if m.Provider == "openai-compatible" && m.BaseURL == "" {
			v.addError(prefix+".base_url", m.BaseURL, "base_url required for openai-compatible providers")
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			v.addError(prefix+".temperature", m.Temperature, "must be between 0 and 2")
		}
		if m.MaxTokens < 0 || m.MaxTokens > 200000 {
			v.addError(prefix+".max_tokens", m.MaxTokens, "must be between 0 and 200000")
		}
		if m.MaxRetries < 0 || m.MaxRetries > 10 {
			v.addError(prefix+".max_retries", m.MaxRetries, "must be between 0 and 10")
		}
		if m.Timeout < 0 {
			v.addError(prefix+".timeout", m.Timeout, "must not be negative")
		}
		if m.RateLimitRPM < 0 {
			v.addError(prefix+".rate_limit_rpm", m.RateLimitRPM, "must not be negative")
		}
	}
}

func (v *Validator) validateAI(cfg *AIConfig, models map[string]ModelConfig) {
	if cfg.PrimaryModel == "" {
		v.addError("ai.primary_model", cfg.PrimaryModel, "required")
	} else if _, ok := models[cfg.PrimaryModel]; !ok {
		v.addError("ai.primary_model", cfg.PrimaryModel, "not declared under models")
	}
	for _, name := range cfg.FallbackModels {
		if _, ok := models[name]; !ok {
			v.addError("ai.fallback_models", name, "not declared under models")
		}
	}
	if cfg.FallbackStrategy != "next" && cfg.FallbackStrategy != "none" {
		v.addError("ai.fallback_strategy", cfg.FallbackStrategy, "must be one of: next, none")
	}
	if cfg.Timeout <= 0 {
		v.addError("ai.timeout", cfg.Timeout, "must be positive")
	}
	if cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 {
			v.addError("ai.cache.ttl", cfg.Cache.TTL, "must be positive when cache is enabled")
		}
		if cfg.Cache.MaxEntries <= 0 {
			v.addError("ai.cache.max_entries", cfg.Cache.MaxEntries, "must be positive when cache is enabled")
		}
	}
}

func (v *Validator) validateTools(tools map[string]ToolConfig) {
	known := make(map[string]bool, len(ToolNames))
	for _, n := range ToolNames {
		known[n] = true
	}
	for name, t := range tools {
		if !known[name] {
			v.addError("tools."+name, name, "unknown tool")
			continue
		}
		if t.MaxRetries < 0 || t.MaxRetries > 5 {
			v.addError("tools."+name+".max_retries", t.MaxRetries, "must be between 0 and 5")
		}
		if t.Timeout < 0 {
			v.addError("tools."+name+".timeout", t.Timeout, "must not be negative")
		}
	}
}

func (v *Validator) validateWorkflow(cfg *WorkflowConfig) {
	if cfg.MaxSteps <= 0 || cfg.MaxSteps > 100 {
		v.addError("workflow.max_steps", cfg.MaxSteps, "must be between 1 and 100")
	}
	if cfg.ChecklistLimit < 0 {
		v.addError("workflow.checklist_limit", cfg.ChecklistLimit, "must not be negative")
	}
	if cfg.BatchConcurrency <= 0 {
		v.addError("workflow.batch_concurrency", cfg.BatchConcurrency, "must be positive")
	}
}

func (v *Validator) validateConversation(cfg *ConversationConfig) {
	if cfg.ChunkSize <= 0 {
		v.addError("conversation.chunk_size", cfg.ChunkSize, "must be positive")
	}
	if cfg.ChunkDelay < 0 {
		v.addError("conversation.chunk_delay", cfg.ChunkDelay, "must not be negative")
	}
	if cfg.TransitionDelay < 0 {
		v.addError("conversation.transition_delay", cfg.TransitionDelay, "must not be negative")
	}
	if cfg.BufferPercent < 0 || cfg.BufferPercent > 100 {
		v.addError("conversation.buffer_percent", cfg.BufferPercent, "must be between 0 and 100")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
}
