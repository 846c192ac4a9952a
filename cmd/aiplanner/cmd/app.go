package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/lumia-zhu/aiplanner-sub000/internal/adapters/profile"
	"github.com/lumia-zhu/aiplanner-sub000/internal/adapters/store"
	"github.com/lumia-zhu/aiplanner-sub000/internal/ai"
	"github.com/lumia-zhu/aiplanner-sub000/internal/config"
	"github.com/lumia-zhu/aiplanner-sub000/internal/conversation"
	"github.com/lumia-zhu/aiplanner-sub000/internal/events"
	"github.com/lumia-zhu/aiplanner-sub000/internal/logging"
	"github.com/lumia-zhu/aiplanner-sub000/internal/prompts"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
	"github.com/lumia-zhu/aiplanner-sub000/internal/workflow"
)

// app holds the collaborators shared by the commands. Everything is built
// explicitly here and handed down; nothing is global.
type app struct {
	cfg       *config.Config
	loader    *config.Loader
	logger    *logging.Logger
	logCloser io.Closer
	level     *slog.LevelVar

	metrics  *prometheus.Registry
	bus      *events.EventBus
	ai       *ai.Service
	prompts  *prompts.Renderer
	registry *tools.Registry
	store    *store.SQLiteStore
	profiles *profile.JSONStore
	sessions *conversation.Manager
}

type appOptions struct {
	// logFile overrides cfg.Log.File, so the TUI can keep logs off the screen.
	logFile string
	// skipStorage avoids opening the database for commands that don't need it.
	skipStorage bool
}

func loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func newApp(opts appOptions) (*app, error) {
	cfg, loader, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, loader: loader, level: new(slog.LevelVar)}
	logFile := cfg.Log.File
	if opts.logFile != "" {
		logFile = opts.logFile
	}
	a.logger, a.logCloser, err = logging.NewWithFile(logging.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   os.Stderr,
		File:     logFile,
		LevelVar: a.level,
	})
	if err != nil {
		return nil, err
	}

	a.metrics = prometheus.NewRegistry()
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := ai.NewRecorder(a.metrics)

	a.bus = events.New(512)
	a.ai, err = ai.NewServiceFromConfig(cfg, ai.BuildDeps{
		HTTPClient: &http.Client{Timeout: cfg.AI.Timeout + 10*time.Second},
		Logger:     a.logger,
		Recorder:   recorder,
		Bus:        a.bus,
		Tokens:     ai.NewTiktokenCounter(),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.prompts, err = prompts.NewRenderer()
	if err != nil {
		a.close()
		return nil, err
	}
	a.registry = tools.NewDefaultRegistry(tools.Deps{
		AI:       a.ai,
		Prompts:  a.prompts,
		Logger:   a.logger,
		Bus:      a.bus,
		Recorder: recorder,
	}, tools.ConfigsFrom(cfg.Tools))

	if opts.skipStorage {
		return a, nil
	}

	a.store, err = store.Open(cfg.Storage.DBPath)
	if err != nil {
		a.close()
		return nil, err
	}
	a.profiles = profile.NewJSONStore(cfg.Storage.ProfilePath)
	a.sessions = conversation.NewManager(conversation.ConfigFrom(cfg.Conversation, cfg.AI.Timeout), conversation.Deps{
		Assistant: &conversation.AIAssistant{Registry: a.registry, AI: a.ai, Prompts: a.prompts},
		Tasks:     a.store,
		Chats:     a.store,
		Profiles:  a.profiles,
		Bus:       a.bus,
		Logger:    a.logger,
	})
	return a, nil
}

func (a *app) workflowDeps() workflow.Deps {
	return workflow.Deps{
		Registry:       a.registry,
		AI:             a.ai,
		Bus:            a.bus,
		Logger:         a.logger,
		MaxSteps:       a.cfg.Workflow.MaxSteps,
		ChecklistLimit: a.cfg.Workflow.ChecklistLimit,
	}
}

// startBackground runs the cache sweeper until ctx ends.
func (a *app) startBackground(ctx context.Context) {
	a.ai.StartCacheSweeper(ctx, a.cfg.AI.Cache.SweepInterval)
}

// watchConfig applies log level changes from the config file without a
// restart. Other settings need one.
func (a *app) watchConfig() {
	if a.loader.ConfigFile() == "" {
		return
	}
	a.loader.Watch(func(next *config.Config) {
		if next.Log.Level != a.cfg.Log.Level {
			a.logger.Info("log level changed", "from", a.cfg.Log.Level, "to", next.Log.Level)
			a.level.Set(logging.ParseLevel(next.Log.Level))
			a.cfg.Log.Level = next.Log.Level
		}
	}, func(err error) {
		a.logger.Warn("ignoring invalid config change", "error", err)
	})
}

func (a *app) close() {
	var errs []error
	if a.sessions != nil {
		a.sessions.CloseAll()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

func dataDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Storage.DBPath)
}
