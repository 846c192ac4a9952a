package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [query]",
	Short: "List the refinement tools",
	Long: `List the registered refinement tools with their settings. An optional
query fuzzy-matches tool names and types.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTools,
}

var toolsTag string

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringVar(&toolsTag, "tag", "", "only tools carrying this tag")
}

func runTools(c *cobra.Command, args []string) error {
	a, err := newApp(appOptions{skipStorage: true})
	if err != nil {
		return err
	}
	defer a.close()

	var list []tools.Tool
	if len(args) == 1 {
		list = a.registry.FindByName(args[0])
	} else {
		list = a.registry.Query(tools.Filter{Tag: toolsTag})
	}
	printTools(c.OutOrStdout(), list)
	return nil
}

func printTools(w io.Writer, list []tools.Tool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tENABLED\tPRIORITY\tRETRIES\tTIMEOUT\tRUNS")
	for _, t := range list {
		cfg, st := t.Config(), t.Statistics()
		retries := "off"
		if cfg.Retry {
			retries = fmt.Sprint(cfg.MaxRetries)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\t%s\t%d\n",
			cfg.Type, cfg.Name, cfg.Enabled, cfg.Priority, retries, cfg.Timeout.Round(time.Second), st.TotalExecutions)
	}
	_ = tw.Flush()
}
