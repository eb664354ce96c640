package cmd

import (
	"fmt"
	"os"

	"github.com/brogergvhs/mangapark-dl/internal/config"
	"github.com/brogergvhs/mangapark-dl/internal/ui"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the merged config and manage config profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Loaded config from:\n  %s\n\n", used)
		cfg.Print(out)

		fmt.Fprintf(out, "\nLog file: %s\n", ui.LogFilePath(cfg.Output))
		if p := os.Getenv(config.EnvChromePath); p != "" {
			fmt.Fprintf(out, "%s=%s overrides chrome_path\n", config.EnvChromePath, p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
