package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/brogergvhs/mangapark-dl/internal/config"

	"github.com/spf13/cobra"
)

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.ListConfigs()
		if err != nil {
			return fmt.Errorf("cannot read configs directory: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No configs yet. Run `mangapark-dl config init`.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "LABEL\tENGINE\tOUTPUT\tACTIVE\tPATH")

		for _, c := range list {
			engine, output := "?", "?"
			if cfg, err := config.Load(c.Path); err == nil {
				engine, output = cfg.Engine, cfg.Output
			}

			activeMark := ""
			if c.Active {
				activeMark = "yes"
			}

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Label, engine, output, activeMark, c.Path)
		}

		if err := w.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to flush table output: %v\n", err)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
}
