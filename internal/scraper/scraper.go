// Package scraper pulls the ordered page image URLs out of a rendered
// chapter page.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/browser"
	"github.com/brogergvhs/mangapark-dl/internal/ui"
	"github.com/brogergvhs/mangapark-dl/internal/util"
)

var ErrPageLoadTimeout = errors.New("page load timeout")

const (
	DefaultMarker         = "mangapark"
	DefaultReaderSelector = ".reader-main img"
	DefaultSettleDelay    = 3 * time.Second

	presenceSelector = "img"
)

type Options struct {
	// Marker is the domain fragment every kept image URL must contain.
	Marker         string
	ReaderSelector string
	SettleDelay    time.Duration
}

func DefaultOptions() Options {
	return Options{
		Marker:         DefaultMarker,
		ReaderSelector: DefaultReaderSelector,
		SettleDelay:    DefaultSettleDelay,
	}
}

type Scraper struct {
	opts  Options
	log   ui.Logger
	sleep func(context.Context, time.Duration) error
}

func New(opts Options, log ui.Logger) *Scraper {
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.ReaderSelector == "" {
		opts.ReaderSelector = DefaultReaderSelector
	}

	return &Scraper{opts: opts, log: log, sleep: util.Sleep}
}

// Strategies lists the selectors tried in order; the first one with any
// match wins.
func (s *Scraper) Strategies() []string {
	return []string{
		fmt.Sprintf("img[src*='%s']", s.opts.Marker),
		s.opts.ReaderSelector,
		"img[data-src]",
	}
}

// ExtractImageURLs returns the chapter's image URLs in document order. Every
// failure, a page that never shows an image within timeout included, is
// logged and yields an empty slice.
func (s *Scraper) ExtractImageURLs(ctx context.Context, sess browser.Session, pageURL string, timeout time.Duration) (urls []string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Error extracting images from %s: %v", pageURL, r)
			urls = []string{}
		}
	}()

	urls, err := s.extract(ctx, sess, pageURL, timeout)
	switch {
	case errors.Is(err, ErrPageLoadTimeout):
		s.log.Errorf("Timeout loading chapter: %s", pageURL)
		return []string{}
	case err != nil:
		s.log.Errorf("Error extracting images from %s: %v", pageURL, err)
		return []string{}
	}

	s.log.Infof("Found %d images in chapter", len(urls))
	return urls
}

func (s *Scraper) extract(ctx context.Context, sess browser.Session, pageURL string, timeout time.Duration) ([]string, error) {
	s.log.Infof("Loading chapter: %s", pageURL)

	loadCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.load(loadCtx, sess, pageURL); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrPageLoadTimeout
		}
		return nil, err
	}

	if err := s.sleep(ctx, s.opts.SettleDelay); err != nil {
		return nil, err
	}

	for _, sel := range s.Strategies() {
		els, err := sess.QueryAll(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(els) == 0 {
			continue
		}

		s.log.Debugf("Selector %q matched %d elements", sel, len(els))
		return s.collect(pageURL, els), nil
	}

	return []string{}, nil
}

func (s *Scraper) load(ctx context.Context, sess browser.Session, pageURL string) error {
	if err := sess.Navigate(ctx, pageURL); err != nil {
		return err
	}

	return sess.WaitPresent(ctx, presenceSelector)
}

func (s *Scraper) collect(pageURL string, els []browser.Element) []string {
	out := make([]string, 0, len(els))

	for _, el := range els {
		raw, ok := el.Attr("src")
		if !ok || raw == "" {
			raw, ok = el.Attr("data-src")
		}
		if !ok || raw == "" {
			continue
		}

		u := resolve(pageURL, strings.TrimSpace(raw))
		if strings.Contains(u, s.opts.Marker) {
			out = append(out, u)
		}
	}

	return out
}
