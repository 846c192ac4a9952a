package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/api"
	"github.com/lumia-zhu/aiplanner-sub000/internal/diagnostics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the planner HTTP API: conversation sessions with a server-sent
event stream, direct tool execution, headless workflow runs and model metrics.

Examples:
  # Start with the configured address (default 127.0.0.1:8088)
  aiplanner serve

  # Listen on all interfaces
  aiplanner serve --host 0.0.0.0 --port 9000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (default from config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	dumps := diagnostics.NewCrashDumpWriter(
		filepath.Join(dataDir(a.cfg), "crashes"), "serve", 10,
		diagnostics.NewCollector(dataDir(a.cfg)), a.logger)
	defer dumps.RecoverAndDump()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.startBackground(ctx)
	a.watchConfig()

	host, port := a.cfg.Server.Host, a.cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	server := api.NewServer(api.Deps{
		Sessions:       a.sessions,
		Registry:       a.registry,
		AI:             a.ai,
		Tasks:          a.store,
		Bus:            a.bus,
		Logger:         a.logger,
		Gatherer:       a.metrics,
		Workflow:       a.workflowDeps(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})

	a.logger.Info("models ready", "primary", a.ai.PrimaryModel(), "count", len(a.ai.Adapters()))
	if err := server.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("serving %s: %w", addr, err)
	}
	a.logger.Info("server stopped")
	return nil
}
