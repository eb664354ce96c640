package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/util"

	"github.com/PuerkitoBio/goquery"
)

var errNoPage = errors.New("no page loaded")

// staticSession renders nothing: it fetches the raw HTML once and answers
// queries from that snapshot.
type staticSession struct {
	client *http.Client
	opts   Options
	doc    *goquery.Document
}

func newStaticSession(opts Options) *staticSession {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.PageLoadTimeout}
	}

	return &staticSession{client: client, opts: opts}
}

func (s *staticSession) Navigate(ctx context.Context, url string) error {
	if s.opts.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.PageLoadTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := util.DoWithRetry(s.client, req, 3, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("navigate %s: HTTP %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}

	s.doc = doc
	return nil
}

// WaitPresent returns at once when the snapshot matches. A static page never
// changes, so otherwise it just waits for ctx to run out.
func (s *staticSession) WaitPresent(ctx context.Context, selector string) error {
	if s.doc == nil {
		return errNoPage
	}

	if s.doc.Find(selector).Length() > 0 {
		return nil
	}

	<-ctx.Done()
	return ctx.Err()
}

func (s *staticSession) QueryAll(_ context.Context, selector string) ([]Element, error) {
	if s.doc == nil {
		return nil, errNoPage
	}

	var out []Element
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, selectionElement{sel})
	})

	return out, nil
}

func (s *staticSession) Close() error {
	s.doc = nil
	s.client.CloseIdleConnections()
	return nil
}

type selectionElement struct {
	sel *goquery.Selection
}

func (e selectionElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}
