package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, models and the host",
	Long: `Validate the configuration, probe every configured model, check that
the data files are writable and report system resources.`,
	RunE: runDoctor,
}

var (
	doctorOffline bool
	doctorJSON    bool
	doctorTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip model probes")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "print the report as JSON")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 15*time.Second, "timeout per model probe")
}

func runDoctor(c *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout+10*time.Second)
	defer cancel()

	report := diagnostics.Report{}
	a, err := newApp(appOptions{skipStorage: true})
	if err != nil {
		report.System = diagnostics.NewCollector("").Collect(ctx)
		report.Checks = append(report.Checks, diagnostics.Check{Name: "config", Status: diagnostics.StatusFail, Detail: err.Error()})
		return finishDoctor(c.OutOrStdout(), report)
	}
	defer a.close()

	configDetail := "defaults"
	if f := a.loader.ConfigFile(); f != "" {
		configDetail = f
	}
	report.Checks = append(report.Checks, diagnostics.Check{Name: "config", Status: diagnostics.StatusOK, Detail: configDetail})

	report.System = diagnostics.NewCollector(dataDir(a.cfg)).Collect(ctx)
	report.Checks = append(report.Checks,
		diagnostics.CheckWritable("database", a.cfg.Storage.DBPath),
		diagnostics.CheckWritable("profiles", a.cfg.Storage.ProfilePath),
	)
	report.Checks = append(report.Checks, diagnostics.CheckResources(report.System, diagnostics.DefaultThresholds())...)

	if doctorOffline {
		report.Checks = append(report.Checks, diagnostics.Check{Name: "models", Status: diagnostics.StatusWarn, Detail: "not probed (--offline)"})
	} else {
		report.Checks = append(report.Checks, diagnostics.CheckModels(ctx, a.ai, doctorTimeout)...)
	}
	return finishDoctor(c.OutOrStdout(), report)
}

func finishDoctor(w io.Writer, report diagnostics.Report) error {
	if doctorJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(w, report)
	}
	if !report.Healthy() {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func printReport(w io.Writer, r diagnostics.Report) {
	s := r.System
	fmt.Fprintln(w, "System")
	fmt.Fprintf(w, "  %s (%s), %s, %d cores / %d threads\n", orDash(s.Hostname), orDash(s.Platform), orDash(s.CPUModel), s.CPUCores, s.CPUThreads)
	fmt.Fprintf(w, "  memory %.0f/%.0f MB, disk %.1f GB free, %s\n", s.MemUsedMB, s.MemTotalMB, s.DiskFreeGB, s.GoVersion)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Checks")
	for _, c := range r.Checks {
		fmt.Fprintf(w, "  %s %-16s %s\n", statusIcon(c.Status), c.Name, c.Detail)
	}
}

func statusIcon(s diagnostics.Status) string {
	switch s {
	case diagnostics.StatusOK:
		return "✓"
	case diagnostics.StatusWarn:
		return "⚠"
	default:
		return "✗"
	}
}
