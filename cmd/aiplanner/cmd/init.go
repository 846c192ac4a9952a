package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lumia-zhu/aiplanner-sub000/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration",
	Long: `Create .aiplanner/config.yaml with the default models, tools and
storage paths. API keys are read from the environment variables named by
api_key_env, or from a .env file.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
}

func runInit(c *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = filepath.Join(".aiplanner", "config.yaml")
	}
	if err := config.WriteDefault(path, initForce); err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "wrote %s\n", path)
	return nil
}
