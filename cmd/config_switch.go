package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brogergvhs/mangapark-dl/internal/config"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var configSwitchCmd = &cobra.Command{
	Use:   "switch [label]",
	Short: "Switch to a different configuration profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := ""
		if len(args) == 1 {
			label = args[0]
		} else {
			picked, err := pickConfig()
			if err != nil {
				return err
			}
			label = picked
		}

		if err := config.SwitchConfig(label); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Switched to:", label)
		return nil
	},
}

func pickConfig() (string, error) {
	list, err := config.ListConfigs()
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", errors.New("no configs available, run `mangapark-dl config init`")
	}

	start := 0
	for i, c := range list {
		if c.Active {
			start = i
		}
	}

	prompt := promptui.Select{
		Label: "Select config",
		Items: list,
		Size:  10,
		Templates: &promptui.SelectTemplates{
			Active:   `> {{ .Label | cyan }}{{ if .Active }} (active){{ end }}`,
			Inactive: `  {{ .Label }}{{ if .Active }} (active){{ end }}`,
			Selected: `{{ .Label | green }}`,
			Details:  `{{ .Path | faint }}`,
		},
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(list[index].Label), strings.ToLower(input))
		},
		CursorPos: start,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}

	return list[idx].Label, nil
}

func init() {
	configCmd.AddCommand(configSwitchCmd)
}
