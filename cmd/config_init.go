package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/brogergvhs/mangapark-dl/internal/config"

	"github.com/spf13/cobra"
)

var flagInitYes bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Default config and make it active",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		defaultPath, err := config.PathForLabel(config.DefaultLabel)
		if err != nil {
			return err
		}

		if _, err := os.Stat(defaultPath); err == nil {
			fmt.Fprintf(out, "Configuration already exists at:\n   %s\n", defaultPath)
			fmt.Fprintln(out, "Use `mangapark-dl config reset` to recreate it.")
			return nil
		}

		if !flagInitYes {
			fmt.Fprintln(out, "Default configuration:")
			config.DefaultConfig().Print(out)
			fmt.Fprintln(out)

			if !confirm(cmd, fmt.Sprintf("Create Default config at %s?", defaultPath)) {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		path, err := config.InitDefaultConfig()
		if err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Fprintln(out, "Config created at:", path)
		fmt.Fprintf(out, "This config is now active (label: %s).\n", config.DefaultLabel)
		return nil
	},
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)

	resp, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	resp = strings.TrimSpace(strings.ToLower(resp))

	return resp == "y" || resp == "yes"
}

func init() {
	configInitCmd.Flags().BoolVarP(&flagInitYes, "yes", "y", false, "create without asking")
	configCmd.AddCommand(configInitCmd)
}
