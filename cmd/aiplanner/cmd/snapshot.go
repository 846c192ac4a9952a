package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Back up and restore planner data",
}

var (
	exportOutput string
	exportFrom   string
	exportTo     string

	importPolicy string
	importUser   string
	importDryRun bool
	importJSON   bool
)

var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write tasks, chat history and profile to a tar.gz archive",
	Example: `  aiplanner snapshot export --from 2026-03-01 --to 2026-03-31
  aiplanner snapshot export -o backup.tar.gz`,
	RunE: func(c *cobra.Command, _ []string) error {
		now := time.Now()
		from, err := parseDay(exportFrom, now)
		if err != nil {
			return err
		}
		to := from
		if exportTo != "" {
			if to, err = parseDay(exportTo, now); err != nil {
				return err
			}
		}

		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		out := exportOutput
		if out == "" {
			out = filepath.Join(dataDir(a.cfg), "snapshots",
				fmt.Sprintf("%s-%s.tar.gz", userID, now.Format("20060102-150405")))
		}
		res, err := snapshot.Export(context.Background(), a.snapshotStores(), snapshot.ExportOptions{
			OutputPath: out,
			UserID:     userID,
			From:       from,
			To:         to,
			AppVersion: appVersion,
		})
		if err != nil {
			return err
		}
		m := res.Manifest
		fmt.Fprintf(c.OutOrStdout(), "wrote %s: %d days, %d tasks, %d messages\n",
			res.OutputPath, len(m.Days), m.TaskCount, m.MessageCount)
		return nil
	},
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import <archive>",
	Short: "Restore an archive written by snapshot export",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		report, err := snapshot.Import(context.Background(), a.snapshotStores(), snapshot.ImportOptions{
			InputPath:      args[0],
			ConflictPolicy: snapshot.ConflictPolicy(importPolicy),
			UserID:         importUser,
			DryRun:         importDryRun,
		})
		if err != nil {
			return err
		}
		if importJSON {
			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printImportReport(c.OutOrStdout(), report)
		return nil
	},
}

var snapshotValidateCmd = &cobra.Command{
	Use:   "validate <archive>",
	Short: "Check an archive's manifest and checksums",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		m, err := snapshot.Validate(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.OutOrStdout(), "ok: user %s, %s..%s, %d days, %d files\n",
			m.UserID, m.From, m.To, len(m.Days), len(m.Files))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotExportCmd, snapshotImportCmd, snapshotValidateCmd)

	snapshotExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "archive path (default <data dir>/snapshots/<user>-<time>.tar.gz)")
	snapshotExportCmd.Flags().StringVar(&exportFrom, "from", "", "first day (YYYY-MM-DD, today, yesterday)")
	snapshotExportCmd.Flags().StringVar(&exportTo, "to", "", "last day, inclusive (defaults to --from)")

	snapshotImportCmd.Flags().StringVar(&importPolicy, "on-conflict", string(snapshot.ConflictSkip), "skip, overwrite or fail")
	snapshotImportCmd.Flags().StringVar(&importUser, "as-user", "", "restore under another user id")
	snapshotImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report without writing")
	snapshotImportCmd.Flags().BoolVar(&importJSON, "json", false, "print the report as JSON")
}

func (a *app) snapshotStores() snapshot.Stores {
	return snapshot.Stores{Tasks: a.store, Chats: a.store, Profiles: a.profiles}
}

func printImportReport(w io.Writer, r *snapshot.ImportReport) {
	verb := "restored"
	if r.DryRun {
		verb = "would restore"
	}
	fmt.Fprintf(w, "%s for %s: tasks %d created, %d updated, %d skipped; chat days %d restored, %d skipped\n",
		verb, r.UserID, r.TasksCreated, r.TasksUpdated, r.TasksSkipped, r.ChatDaysRestored, r.ChatDaysSkipped)
	if r.ProfileRestored {
		fmt.Fprintln(w, "profile restored")
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}
