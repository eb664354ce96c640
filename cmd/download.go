package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/browser"
	"github.com/brogergvhs/mangapark-dl/internal/config"
	"github.com/brogergvhs/mangapark-dl/internal/downloader"
	"github.com/brogergvhs/mangapark-dl/internal/scraper"
	"github.com/brogergvhs/mangapark-dl/internal/ui"
	"github.com/brogergvhs/mangapark-dl/internal/util"

	"github.com/spf13/cobra"
)

var (
	// chapter
	flagOutput string
	flagName   string

	// browser
	flagHeadless   bool
	flagTimeout    int
	flagEngine     string
	flagChromePath string

	// scraping / fetching
	flagMarker         string
	flagReaderSelector string
	flagRetries        int
	flagUserAgent      string
	flagReferer        string

	// output
	flagProgress bool
	flagCBZ      bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <chapter_url>",
	Short: "Download one chapter. Uses the defaults from the selected config, overwritten by CLI flags",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	addDownloadFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}

func addBrowserFlags(c *cobra.Command) {
	f := c.Flags()

	f.BoolVar(&flagHeadless, "headless", true, "run the browser headless")
	f.IntVarP(&flagTimeout, "timeout", "t", 30, "page load timeout in seconds")
	f.StringVar(&flagEngine, "engine", "", "session engine: chrome or static")
	f.StringVar(&flagChromePath, "chrome-path", "", "Chrome/Chromium binary (env "+config.EnvChromePath+")")
	f.StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
}

func addDownloadFlags(c *cobra.Command) {
	addBrowserFlags(c)

	f := c.Flags()

	f.StringVarP(&flagOutput, "output", "o", "", "output directory (default \"downloads\")")
	f.StringVarP(&flagName, "name", "n", "", "chapter folder name (default chapter_<unix time>)")

	f.StringVar(&flagMarker, "marker", "", "domain fragment kept image URLs must contain")
	f.StringVar(&flagReaderSelector, "reader-selector", "", "CSS selector for images in the reader container")
	f.IntVar(&flagRetries, "retries", 3, "download attempts per image")
	f.StringVar(&flagReferer, "referer", "", "Referer sent with image requests")

	f.BoolVar(&flagProgress, "progress", false, "show a progress bar on stderr")
	f.BoolVar(&flagCBZ, "cbz", false, "also pack the pages into <output>/<name>.cbz")
}

func loadDownloadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, usedPath, err := config.LoadMerged(config.Options{
		IgnoreConfig:   flagIgnoreConfig,
		Debug:          flagDebug,
		Output:         flagOutput,
		Engine:         flagEngine,
		ChromePath:     flagChromePath,
		UserAgent:      flagUserAgent,
		Referer:        flagReferer,
		Marker:         flagMarker,
		ReaderSelector: flagReaderSelector,
	})
	if err != nil {
		return nil, "", err
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Headless = flagHeadless
	}
	if flags.Changed("timeout") && flagTimeout > 0 {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("retries") && flagRetries > 0 {
		cfg.MaxRetries = flagRetries
	}
	if flags.Changed("progress") {
		cfg.Progress = flagProgress
	}
	if flags.Changed("cbz") {
		cfg.CBZ = flagCBZ
	}

	switch browser.Engine(cfg.Engine) {
	case browser.EngineChrome, browser.EngineStatic:
	default:
		return nil, "", fmt.Errorf("unknown engine %q (want chrome or static)", cfg.Engine)
	}

	return cfg, usedPath, nil
}

func sessionOptions(cfg *config.Config, client *http.Client) browser.Options {
	opts := browser.DefaultOptions()
	opts.Engine = browser.Engine(cfg.Engine)
	opts.Headless = cfg.Headless
	opts.PageLoadTimeout = cfg.TimeoutDuration()
	opts.ImplicitWait = cfg.ImplicitWaitDuration()
	opts.UserAgent = util.PickUserAgent(cfg.UserAgent)
	opts.ExecPath = cfg.ChromePath
	opts.HTTPClient = client
	return opts
}

func newHTTPClient(cfg *config.Config, log ui.Logger) (*http.Client, error) {
	return util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     30 * time.Second,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		DebugLogger: log,
	})
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, usedPath, err := loadDownloadConfig(cmd)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	log, logFile, err := ui.NewFileLogger(cfg.Output, cfg.Debug)
	if err != nil {
		return err
	}
	defer func() {
		_ = logFile.Close()
	}()

	log.Debugf("Config file: %s", usedPath)

	client, err := newHTTPClient(cfg, log)
	if err != nil {
		return err
	}

	sessions := browser.NewManager(sessionOptions(cfg, client), log)

	scr := scraper.New(scraper.Options{
		Marker:         cfg.Marker,
		ReaderSelector: cfg.ReaderSelector,
		SettleDelay:    cfg.SettleDelay(),
	}, log)

	fetcher := downloader.NewFetcher(client, log, cfg.Referer, cfg.Backoff())

	stats := &ui.Stats{}
	dl := downloader.New(sessions, scr, fetcher, log, downloader.Options{
		DownloadPath: cfg.Output,
		Timeout:      cfg.TimeoutDuration(),
		MaxRetries:   cfg.MaxRetries,
		PageDelay:    cfg.PageDelay(),
		ChapterDelay: cfg.ChapterDelay(),
	}).WithStats(stats)

	var pm *ui.MPBProgressManager
	if cfg.Progress {
		pm = ui.NewProgressManager(os.Stderr)
		label := flagName
		if label == "" {
			label = "Chapter"
		}
		dl.WithProgress(pm.Register(label))
	}

	ctx := cmd.Context()
	start := time.Now()
	out := dl.DownloadChapter(ctx, args[0], flagName)

	if pm != nil {
		pm.Close()
	}

	if ctx.Err() != nil {
		fmt.Println("\nDownload interrupted by user")
		return reportedError{errors.New("download interrupted by user")}
	}

	if !out.Success() {
		fmt.Println("Download failed!")
		return reportedError{fmt.Errorf("chapter %q: %w", out.Chapter.Name, failureCause(out))}
	}

	if cfg.CBZ {
		cbz := out.Chapter.OutputCBZPath()
		if err := util.CreateCBZ(out.Files(), cbz); err != nil {
			log.Errorf("CBZ for %s failed: %v", out.Chapter.Name, err)
		} else {
			log.Infof("Created %s", cbz)
		}
	}

	log.Infof("%s", stats.Summary(time.Since(start)))

	fmt.Println("Download completed successfully!")
	return nil
}

func failureCause(out downloader.Outcome) error {
	if out.Cause != nil {
		return out.Cause
	}
	return errors.New("no page could be downloaded")
}
