// Package downloader fetches page images and runs the per-chapter pipeline:
// session, scrape, sequential download, teardown.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/browser"
	"github.com/brogergvhs/mangapark-dl/internal/chapters"
	"github.com/brogergvhs/mangapark-dl/internal/ui"
	"github.com/brogergvhs/mangapark-dl/internal/util"
)

var ErrNoImagesFound = errors.New("no images found")

type State int

const (
	StateIdle State = iota
	StateSessionActive
	StateScraping
	StateDownloading
	StateSessionClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionActive:
		return "session-active"
	case StateScraping:
		return "scraping"
	case StateDownloading:
		return "downloading"
	case StateSessionClosed:
		return "session-closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type SessionProvider interface {
	Acquire(ctx context.Context) (browser.Session, error)
	Release()
}

type URLExtractor interface {
	ExtractImageURLs(ctx context.Context, sess browser.Session, pageURL string, timeout time.Duration) []string
}

// ImageFetcher downloads one page image. progress, when set, receives the
// bytes written so far for that image.
type ImageFetcher interface {
	FetchImageWithProgress(ctx context.Context, url, dest string, maxRetries int, progress func(done int64)) bool
}

// PageProgress receives page counts for one chapter; *ui.ProgressHandle
// satisfies it.
type PageProgress interface {
	SetTotal(total int)
	Update(done, failed int, bytes int64)
	MarkDone()
}

type Options struct {
	DownloadPath string
	// Timeout bounds loading the chapter page until an image shows up.
	Timeout      time.Duration
	MaxRetries   int
	PageDelay    time.Duration
	ChapterDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		DownloadPath: "downloads",
		Timeout:      30 * time.Second,
		MaxRetries:   DefaultMaxRetries,
		PageDelay:    time.Second,
		ChapterDelay: 5 * time.Second,
	}
}

type PageOutcome struct {
	Page  chapters.Page
	Path  string
	OK    bool
	Bytes int64
}

// Outcome summarises one DownloadChapter call. Cause is the reason the
// chapter stopped early, if it did.
type Outcome struct {
	Chapter      chapters.Chapter
	Pages        []PageOutcome
	SuccessCount int
	Bytes        int64
	Cause        error
}

// Success follows the partial-success policy: one saved page is enough.
func (o Outcome) Success() bool {
	return o.SuccessCount > 0
}

// Files lists the saved page paths in ordinal order.
func (o Outcome) Files() []string {
	files := make([]string, 0, o.SuccessCount)
	for _, p := range o.Pages {
		if p.OK {
			files = append(files, p.Path)
		}
	}
	return files
}

// Downloader runs one chapter at a time. Concurrent DownloadChapter calls on
// the same instance are not supported.
type Downloader struct {
	sessions SessionProvider
	scraper  URLExtractor
	fetcher  ImageFetcher
	log      ui.Logger
	opts     Options

	progress PageProgress
	stats    *ui.Stats
	state    State

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func New(sessions SessionProvider, scraper URLExtractor, fetcher ImageFetcher, log ui.Logger, opts Options) *Downloader {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}

	return &Downloader{
		sessions: sessions,
		scraper:  scraper,
		fetcher:  fetcher,
		log:      log,
		opts:     opts,
		sleep:    util.Sleep,
		now:      time.Now,
	}
}

func (d *Downloader) WithProgress(p PageProgress) *Downloader {
	d.progress = p
	return d
}

func (d *Downloader) WithStats(s *ui.Stats) *Downloader {
	d.stats = s
	return d
}

func (d *Downloader) State() State {
	return d.state
}

func (d *Downloader) setState(s State) {
	d.log.Debugf("Chapter state: %s -> %s", d.state, s)
	d.state = s
}

// DownloadChapter downloads every image of the chapter at pageURL into
// <DownloadPath>/<name>. An empty name becomes chapter_<unix time>. The
// session is released exactly once on every path out, panics included, and
// the chapter pause runs afterwards unless ctx is done.
func (d *Downloader) DownloadChapter(ctx context.Context, pageURL, name string) (out Outcome) {
	ch := chapters.New(pageURL, name, d.opts.DownloadPath, d.now())
	out.Chapter = ch
	d.state = StateIdle

	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("Error downloading chapter %s: %v", ch.Name, r)
			out.Cause = fmt.Errorf("panic: %v", r)
		}

		d.release()
		d.setState(StateSessionClosed)

		if n := util.RemovePartials(ch.Dir); n > 0 {
			d.log.Debugf("Removed %d partial files from %s", n, ch.Dir)
		}

		_ = d.sleep(ctx, d.opts.ChapterDelay)
	}()

	if err := ch.EnsureDir(); err != nil {
		d.log.Errorf("Error downloading chapter %s: %v", ch.Name, err)
		out.Cause = err
		return out
	}

	d.log.Infof("Starting download for: %s", ch.Name)

	sess, err := d.sessions.Acquire(ctx)
	if err != nil {
		d.log.Errorf("Error downloading chapter %s: %v", ch.Name, err)
		out.Cause = err
		return out
	}
	d.setState(StateSessionActive)

	d.setState(StateScraping)
	urls := d.scraper.ExtractImageURLs(ctx, sess, pageURL, d.opts.Timeout)
	if len(urls) == 0 {
		d.log.Errorf("No images found for chapter: %s", ch.Name)
		out.Cause = ErrNoImagesFound
		if ctx.Err() != nil {
			out.Cause = ctx.Err()
		}
		return out
	}

	d.setState(StateDownloading)
	out.Pages, out.Cause = d.downloadPages(ctx, ch, chapters.PagesFromURLs(urls))

	for _, p := range out.Pages {
		if p.OK {
			out.SuccessCount++
			out.Bytes += p.Bytes
		}
	}

	if d.stats != nil {
		d.stats.TotalChapters.Add(1)
		d.stats.TotalImages.Add(int64(out.SuccessCount))
		d.stats.FailedImages.Add(int64(len(out.Pages) - out.SuccessCount))
		d.stats.TotalBytes.Add(out.Bytes)
	}

	d.log.Infof("Chapter '%s' completed: %d/%d images downloaded", ch.Name, out.SuccessCount, len(urls))
	return out
}

func (d *Downloader) downloadPages(ctx context.Context, ch chapters.Chapter, pages []chapters.Page) ([]PageOutcome, error) {
	progress := d.progress
	if progress == nil {
		progress = nopProgress{}
	}
	defer progress.MarkDone()

	progress.SetTotal(len(pages))

	outcomes := make([]PageOutcome, 0, len(pages))
	var failed int
	var bytes int64

	for i, p := range pages {
		if i > 0 {
			if err := d.sleep(ctx, d.opts.PageDelay); err != nil {
				return outcomes, err
			}
		}
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		po := PageOutcome{Page: p, Path: ch.PagePath(p.Ordinal)}
		po.OK = d.fetcher.FetchImageWithProgress(ctx, p.URL, po.Path, d.opts.MaxRetries, func(done int64) {
			progress.Update(len(outcomes), failed, bytes+done)
		})

		if po.OK {
			if fi, err := os.Stat(po.Path); err == nil {
				po.Bytes = fi.Size()
			}
			bytes += po.Bytes
		} else {
			failed++
		}

		outcomes = append(outcomes, po)
		progress.Update(len(outcomes), failed, bytes)
	}

	return outcomes, nil
}

func (d *Downloader) release() {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warnf("Error closing driver: %v", r)
		}
	}()

	d.sessions.Release()
}

type nopProgress struct{}

func (nopProgress) SetTotal(int)           {}
func (nopProgress) Update(int, int, int64) {}
func (nopProgress) MarkDone()              {}
