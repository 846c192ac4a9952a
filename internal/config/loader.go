package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "AIPLANNER",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance so
// CLI flag bindings take effect.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "AIPLANNER",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (AIPLANNER_*)
// 3. Project config (.aiplanner/config.yaml)
// 4. User config (~/.config/aiplanner/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".aiplanner")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "aiplanner"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if cfg.Tools == nil {
		cfg.Tools = map[string]ToolConfig{}
	}
	for _, name := range ToolNames {
		if _, ok := cfg.Tools[name]; !ok {
			cfg.Tools[name] = ToolConfig{Enabled: true, Retry: true, MaxRetries: 1, Timeout: l.v.GetDuration("ai.timeout")}
		}
	}
	return &cfg, nil
}

// Watch reloads the config file on change and hands the result to onChange.
// Decode or validation failures are passed to onError and the previous
// configuration stays in effect.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err == nil {
			err = NewValidator().Validate(cfg)
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("ai.primary_model", "gpt-4o-mini")
	l.v.SetDefault("ai.fallback_models", []string{})
	l.v.SetDefault("ai.fallback_strategy", "next")
	l.v.SetDefault("ai.timeout", "60s")
	l.v.SetDefault("ai.cache.enabled", true)
	l.v.SetDefault("ai.cache.ttl", "10m")
	l.v.SetDefault("ai.cache.max_entries", 512)
	l.v.SetDefault("ai.cache.sweep_interval", "1m")

	l.v.SetDefault("workflow.max_steps", 16)
	l.v.SetDefault("workflow.checklist_limit", 3)
	l.v.SetDefault("workflow.batch_concurrency", 4)

	l.v.SetDefault("conversation.transition_delay", "1s")
	l.v.SetDefault("conversation.chunk_size", 3)
	l.v.SetDefault("conversation.chunk_delay", "20ms")
	l.v.SetDefault("conversation.buffer_percent", 20)

	l.v.SetDefault("storage.db_path", ".aiplanner/aiplanner.db")
	l.v.SetDefault("storage.profile_path", ".aiplanner/profiles.json")

	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8088)
	l.v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
