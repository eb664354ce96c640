package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

// stabilityFlags keep long headless runs alive on small machines. Images
// are never rendered because only their URLs are read.
var stabilityFlags = map[string]any{
	"no-sandbox":                             true,
	"disable-dev-shm-usage":                  true,
	"disable-gpu":                            true,
	"disable-extensions":                     true,
	"disable-plugins":                        true,
	"blink-settings":                         "imagesEnabled=false",
	"memory-pressure-off":                    true,
	"js-flags":                               "--max-old-space-size=4096",
	"disable-background-timer-throttling":    true,
	"disable-backgrounding-occluded-windows": true,
	"disable-renderer-backgrounding":         true,
}

// allocatorOptions are the settings every chrome session runs with. Only
// headless mode, the user agent and the binary come from the caller.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)

	for name, value := range stabilityFlags {
		flags = append(flags, chromedp.Flag(name, value))
	}

	if opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(opts.ExecPath))
	}

	return flags
}

func newChromeSession(ctx context.Context, opts Options) (*chromeSession, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:    browserCtx,
		cancel: func() { cancelBrowser(); cancelAlloc() },
		opts:   opts,
	}

	// the browser process only starts on the first Run
	if err := chromedp.Run(browserCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return s, nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := boundedContext(s.ctx, ctx, s.opts.PageLoadTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	return nil
}

func (s *chromeSession) WaitPresent(ctx context.Context, selector string) error {
	runCtx, cancel := boundedContext(s.ctx, ctx, 0)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll}
	if s.opts.ImplicitWait <= 0 {
		opts = append(opts, chromedp.AtLeast(0))
	}

	runCtx, cancel := boundedContext(s.ctx, ctx, s.opts.ImplicitWait)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(runCtx, chromedp.Nodes(selector, &nodes, opts...))
	if err != nil {
		// nothing matched within the implicit wait
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = nodeElement{n}
	}

	return out, nil
}

// Close asks Chrome to shut down and then releases the allocator whatever
// the outcome.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	return err
}

type nodeElement struct {
	n *cdp.Node
}

func (e nodeElement) Attr(name string) (string, bool) {
	return e.n.Attribute(name)
}
