package downloader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/brogergvhs/mangapark-dl/internal/ui"
	"github.com/brogergvhs/mangapark-dl/internal/util"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffUnit = time.Second
)

// ImageFetchError describes one failed attempt at downloading an image.
type ImageFetchError struct {
	URL     string
	Attempt int
	Err     error
}

func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("attempt %d for %s: %v", e.Attempt, e.URL, e.Err)
}

func (e *ImageFetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads single images. Each attempt writes to a ".part" file
// that is only renamed into place once it passes validation.
type Fetcher struct {
	client      *http.Client
	log         ui.Logger
	referer     string
	backoffUnit time.Duration
	sleep       func(context.Context, time.Duration) error
}

func NewFetcher(client *http.Client, log ui.Logger, referer string, backoffUnit time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if backoffUnit <= 0 {
		backoffUnit = DefaultBackoffUnit
	}

	return &Fetcher{
		client:      client,
		log:         log,
		referer:     referer,
		backoffUnit: backoffUnit,
		sleep:       util.Sleep,
	}
}

// FetchImage downloads url to dest with up to maxRetries attempts. It reports
// success only when dest holds a complete body.
func (f *Fetcher) FetchImage(ctx context.Context, url, dest string, maxRetries int) bool {
	return f.FetchImageWithProgress(ctx, url, dest, maxRetries, nil)
}

// FetchImageWithProgress is FetchImage reporting the bytes written by the
// current attempt after every chunk. Each new attempt starts again from 0.
func (f *Fetcher) FetchImageWithProgress(ctx context.Context, url, dest string, maxRetries int, progress func(done int64)) bool {
	_, err := f.fetchWithRetry(ctx, url, dest, maxRetries, progress)
	return err == nil
}

// Backoff is the pause after failed attempt (0-indexed).
func (f *Fetcher) Backoff(attempt int) time.Duration {
	return f.backoffUnit << attempt
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, url, dest string, maxRetries int, progress func(int64)) (int64, error) {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	var last error
	attempts := 0
	for attempts < maxRetries {
		attempts++

		n, err := f.download(ctx, url, dest, progress)
		if err == nil {
			f.log.Infof("Downloaded: %s", dest)
			return n, nil
		}

		last = &ImageFetchError{URL: url, Attempt: attempts, Err: err}
		f.log.Warnf("Attempt %d failed for %s: %v", attempts, url, err)

		if ctx.Err() != nil {
			break
		}

		if attempts < maxRetries {
			if err := f.sleep(ctx, f.Backoff(attempts-1)); err != nil {
				break
			}
		}
	}

	if attempts < maxRetries {
		f.log.Errorf("Gave up on %s after %d of %d attempts: %v", url, attempts, maxRetries, ctx.Err())
	} else {
		f.log.Errorf("Failed to download %s after %d attempts", url, attempts)
	}
	return 0, last
}

func (f *Fetcher) download(ctx context.Context, url, dest string, progress func(int64)) (n int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); notImageType(mt) {
			return 0, fmt.Errorf("unexpected MIME: %s", ct)
		}
	}

	part := dest + util.PartialSuffix
	defer func() {
		if err != nil {
			_ = os.Remove(part)
		}
	}()

	out, err := os.Create(part)
	if err != nil {
		return 0, err
	}

	n, err = copyWithProgress(out, resp.Body, progress)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	if resp.ContentLength > 0 && n < resp.ContentLength {
		return 0, fmt.Errorf("short body: %d of %d bytes", n, resp.ContentLength)
	}

	if err = validateImage(part); err != nil {
		return 0, err
	}

	if err = os.Rename(part, dest); err != nil {
		return 0, err
	}

	return n, nil
}

// notImageType reports media types that are certainly not a page image:
// error pages and API payloads. Generic types such as
// application/octet-stream pass.
func notImageType(mt string) bool {
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case mt == "application/json", mt == "application/xhtml+xml", mt == "application/xml":
		return true
	default:
		return false
	}
}

var errNotImage = errors.New("not an image")

// validateImage fails bodies of a known image format that do not decode
// (truncated or corrupt) and bodies that sniff as text. Formats without a
// registered decoder, such as AVIF, are accepted as they are.
func validateImage(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = fh.Close()
	}()

	_, _, err = image.DecodeConfig(fh)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, image.ErrFormat):
		return fmt.Errorf("%w: %v", errNotImage, err)
	}

	head := make([]byte, 512)
	k, rerr := fh.ReadAt(head, 0)
	if rerr != nil && rerr != io.EOF {
		return rerr
	}
	if k == 0 {
		return fmt.Errorf("%w: empty body", errNotImage)
	}
	if sniffed := http.DetectContentType(head[:k]); notImageType(strings.SplitN(sniffed, ";", 2)[0]) {
		return fmt.Errorf("%w: body looks like %s", errNotImage, sniffed)
	}

	return nil
}
