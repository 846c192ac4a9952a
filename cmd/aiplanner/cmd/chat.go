package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/clip"
	"github.com/lumia-zhu/aiplanner-sub000/internal/diagnostics"
	"github.com/lumia-zhu/aiplanner-sub000/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Refine today's tasks in an interactive chat",
	Long: `Open a guided conversation that clarifies, breaks down, estimates or
prioritizes the tasks of one day. Choose options with the arrow keys and
enter; switch to free text with tab.`,
	RunE: runChat,
}

var (
	chatDate  string
	chatPlain bool
)

func init() {
	rootCmd.AddCommand(chatCmd)
	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().StringVar(&chatDate, "date", "", "day to plan (YYYY-MM-DD, today, tomorrow)")
		c.Flags().BoolVar(&chatPlain, "plain", false, "render replies without markdown styling")
	}
}

func runChat(_ *cobra.Command, _ []string) error {
	day, err := parseDay(chatDate, time.Now())
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(dataDir(cfg), "logs", "chat.log")
	}

	a, err := newApp(appOptions{logFile: logFile})
	if err != nil {
		return err
	}
	defer a.close()

	dumps := diagnostics.NewCrashDumpWriter(
		filepath.Join(dataDir(a.cfg), "crashes"), "chat", 10,
		diagnostics.NewCollector(dataDir(a.cfg)), a.logger)
	defer dumps.RecoverAndDump()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.startBackground(ctx)

	session := a.sessions.Create(userID, day)
	dumps.SetContext("session", session.ID())
	a.logger.WithSession(session.ID()).WithUser(userID).Info("chat started", "date", day.Format("2006-01-02"))

	if err := tui.Run(session, tui.Options{
		Bus:             a.bus,
		Copier:          clip.New(),
		DispatchTimeout: 3 * a.cfg.AI.Timeout,
		Plain:           chatPlain,
	}); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
