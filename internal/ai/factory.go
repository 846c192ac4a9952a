package ai

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/lumia-zhu/aiplanner-sub000/internal/config"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
)

// NewProvider builds the transport for cfg.Provider.
func NewProvider(cfg ModelConfig, client *http.Client) (Provider, error) {
	switch cfg.Provider {
	case "openai", "chat", "":
		return NewChatCompletionsProvider(cfg.Name, cfg.BaseURL, cfg.APIKey, client), nil
	case "openai-compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("model %s: base_url required for openai-compatible provider", cfg.Name)
		}
		return NewChatCompletionsProvider(cfg.Name, cfg.BaseURL, cfg.APIKey, client), nil
	case "anthropic", "ollama", "langchain-openai":
		llm, err := newLangChainModel(cfg, client)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", cfg.Name, err)
		}
		return NewLangChainProvider(cfg.Name, llm), nil
	default:
		return nil, fmt.Errorf("model %s: unknown provider %q", cfg.Name, cfg.Provider)
	}
}

// ModelConfigFrom converts a configured model entry into an adapter config.
func ModelConfigFrom(name string, m config.ModelConfig) ModelConfig {
	return ModelConfig{
		Name:         name,
		Provider:     m.Provider,
		APIKey:       m.ResolveAPIKey(),
		BaseURL:      m.BaseURL,
		Model:        m.Model,
		Temperature:  m.Temperature,
		MaxTokens:    m.MaxTokens,
		MaxRetries:   m.MaxRetries,
		Timeout:      m.Timeout,
		Enabled:      m.Enabled,
		Priority:     m.Priority,
		RateLimitRPM: m.RateLimitRPM,
	}
}

// BuildDeps carries the collaborators shared by every adapter.
type BuildDeps struct {
	HTTPClient *http.Client
	Logger     *logging.Logger
	Recorder   *Recorder
	Bus        *events.EventBus
	Tokens     TokenCounter
}

// NewServiceFromConfig builds a service with one adapter per enabled model
// and checks the primary and fallback selection.
func NewServiceFromConfig(cfg *config.Config, deps BuildDeps) (*Service, error) {
	svc := NewService(ServiceConfig{
		PrimaryModel:     cfg.AI.PrimaryModel,
		FallbackModels:   cfg.AI.FallbackModels,
		FallbackStrategy: cfg.AI.FallbackStrategy,
		Timeout:          cfg.AI.Timeout,
		CacheEnabled:     cfg.AI.Cache.Enabled,
		CacheTTL:         cfg.AI.Cache.TTL,
		CacheSize:        cfg.AI.Cache.MaxEntries,
	}, WithServiceLogger(deps.Logger), WithServiceRecorder(deps.Recorder), WithEventBus(deps.Bus))

	names := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := []AdapterOption{WithLogger(deps.Logger), WithRecorder(deps.Recorder)}
	if deps.Tokens != nil {
		opts = append(opts, WithTokenCounter(deps.Tokens))
	}
	for _, name := range names {
		mc := ModelConfigFrom(name, cfg.Models[name])
		if !mc.Enabled {
			continue
		}
		provider, err := NewProvider(mc, deps.HTTPClient)
		if err != nil {
			if name == cfg.AI.PrimaryModel {
				return nil, err
			}
			logging.OrNop(deps.Logger).Warn("skipping model", "model", name, "error", err)
			continue
		}
		svc.RegisterAdapter(NewAdapter(mc, provider, opts...))
	}

	fallbacks := make([]string, 0, len(cfg.AI.FallbackModels))
	for _, name := range cfg.AI.FallbackModels {
		if _, err := svc.Adapter(name); err == nil {
			fallbacks = append(fallbacks, name)
		}
	}
	svc.fallbacks = fallbacks

	if err := svc.Validate(); err != nil {
		return nil, err
	}
	return svc, nil
}
