package ai

import (
	"testing"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/config"
	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

func TestNewServiceFromConfig(t *testing.T) {
	cfg := &config.Config{
		AI: config.AIConfig{
			PrimaryModel:   "main",
			FallbackModels: []string{"backup", "broken", "off"},
			Timeout:        time.Second,
			Cache:          config.CacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 8},
		},
		Models: map[string]config.ModelConfig{
			"main":   {Provider: "openai", Model: "gpt-4o-mini", Enabled: true, Priority: 10},
			"backup": {Provider: "openai-compatible", Model: "m", BaseURL: "http://localhost:1", Enabled: true, Priority: 5},
			"broken": {Provider: "carrier-pigeon", Model: "m", Enabled: true},
			"off":    {Provider: "openai", Model: "m", Enabled: false},
		},
	}

	svc, err := NewServiceFromConfig(cfg, BuildDeps{})
	if err != nil {
		t.Fatalf("NewServiceFromConfig() error = %v", err)
	}
	if svc.PrimaryModel() != "main" {
		t.Fatalf("primary = %s", svc.PrimaryModel())
	}
	adapters := svc.Adapters()
	if len(adapters) != 2 || adapters[0].Name() != "main" {
		t.Fatalf("adapters not registered by priority: %d", len(adapters))
	}
	if len(svc.fallbacks) != 1 || svc.fallbacks[0] != "backup" {
		t.Fatalf("fallbacks = %v", svc.fallbacks)
	}

	cfg.AI.PrimaryModel = "missing"
	if _, err := NewServiceFromConfig(cfg, BuildDeps{}); !core.IsCategory(err, core.ErrCatConfig) {
		t.Fatalf("expected config error for unknown primary, got %v", err)
	}
}
