package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/browser"
	"github.com/brogergvhs/mangapark-dl/internal/ui"

	"github.com/spf13/cobra"
)

const defaultCheckURL = "https://httpbin.org/get"

var checkCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Start a browser session, load a page and shut it down again",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := defaultCheckURL
		if len(args) == 1 {
			target = args[0]
		}

		cfg, _, err := loadDownloadConfig(cmd)
		if err != nil {
			return err
		}

		log := ui.NewLogger(os.Stdout, cfg.Debug)

		client, err := newHTTPClient(cfg, log)
		if err != nil {
			return err
		}

		sessions := browser.NewManager(sessionOptions(cfg, client), log)
		if err := checkSession(cmd.Context(), sessions, target, cfg.TimeoutDuration()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s engine OK: loaded %s\n", cfg.Engine, target)
		return nil
	},
}

func checkSession(ctx context.Context, sessions *browser.Manager, target string, timeout time.Duration) error {
	sess, err := sessions.Acquire(ctx)
	if err != nil {
		return err
	}
	defer sessions.Release()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sess.Navigate(ctx, target); err != nil {
		return err
	}

	return sess.WaitPresent(ctx, "body")
}

func init() {
	addBrowserFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}
