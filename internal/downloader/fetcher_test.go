package downloader

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 6))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestFetcher(client *http.Client, log ui.Logger) (*Fetcher, *sleepRecorder) {
	rec := &sleepRecorder{}
	f := NewFetcher(client, log, "https://mangapark.io/", time.Second)
	f.sleep = rec.sleep
	return f, rec
}

func TestFetchImage(t *testing.T) {
	body := pngBytes(t)
	var referer atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer.Store(r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	log := ui.NewCaptureLogger()
	f, rec := newTestFetcher(srv.Client(), log)
	dest := filepath.Join(t.TempDir(), "page_001.jpg")

	assert.True(t, f.FetchImage(context.Background(), srv.URL+"/1.png", dest, 3))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.NoFileExists(t, dest+".part")
	assert.Equal(t, "https://mangapark.io/", referer.Load())
	assert.Empty(t, rec.delays)
	assert.Equal(t, []string{"Downloaded: " + dest}, log.Messages("INFO"))
}

func TestFetchImageRetriesThenSucceeds(t *testing.T) {
	body := pngBytes(t)
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	log := ui.NewCaptureLogger()
	f, rec := newTestFetcher(srv.Client(), log)
	dest := filepath.Join(t.TempDir(), "page_001.jpg")

	assert.True(t, f.FetchImage(context.Background(), srv.URL, dest, 3))
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
	assert.Len(t, log.Messages("WARNING"), 2)
	assert.FileExists(t, dest)
}

func TestFetchImageGivesUp(t *testing.T) {
	for _, maxRetries := range []int{1, 3, 5} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))

		log := ui.NewCaptureLogger()
		f, rec := newTestFetcher(srv.Client(), log)
		dest := filepath.Join(t.TempDir(), "page_001.jpg")

		assert.False(t, f.FetchImage(context.Background(), srv.URL, dest, maxRetries))
		assert.EqualValues(t, maxRetries, calls.Load())

		require.Len(t, rec.delays, maxRetries-1)
		for k, d := range rec.delays {
			assert.Equal(t, time.Second<<k, d)
		}

		assert.Len(t, log.Messages("WARNING"), maxRetries)
		assert.Len(t, log.Messages("ERROR"), 1)
		assert.NoFileExists(t, dest)
		assert.NoFileExists(t, dest+".part")

		srv.Close()
	}
}

func TestFetchImageRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"html page", "text/html; charset=utf-8", "<html>cloudflare</html>"},
		{"truncated image", "image/jpeg", "\xff\xd8\xff\xe0 not really"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f, _ := newTestFetcher(srv.Client(), ui.NewCaptureLogger())
			dest := filepath.Join(t.TempDir(), "page_001.jpg")

			assert.False(t, f.FetchImage(context.Background(), srv.URL, dest, 2))
			assert.NoFileExists(t, dest)
			assert.NoFileExists(t, dest+".part")
		})
	}
}

func TestFetchImageAcceptsLooseResponses(t *testing.T) {
	avif := "\x00\x00\x00\x1cftypavif\x00\x00\x00\x00avifmif1miaf\x00\x00\x00\x00meta"

	tests := []struct {
		name        string
		status      int
		contentType string
		body        []byte
	}{
		{"png as octet-stream", http.StatusOK, "application/octet-stream", pngBytes(t)},
		{"undecodable avif", http.StatusOK, "image/avif", []byte(avif)},
		{"no content type", http.StatusOK, "", pngBytes(t)},
		{"non-authoritative", http.StatusNonAuthoritativeInfo, "image/png", pngBytes(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header()["Content-Type"] = []string{tt.contentType}
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer srv.Close()

			f, rec := newTestFetcher(srv.Client(), ui.NewCaptureLogger())
			dest := filepath.Join(t.TempDir(), "page_001.jpg")

			require.True(t, f.FetchImage(context.Background(), srv.URL, dest, 3))
			assert.Empty(t, rec.delays)

			got, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, tt.body, got)
		})
	}
}

func TestFetchImageWithProgress(t *testing.T) {
	body := append(pngBytes(t), make([]byte, 3*chunkSize)...)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(srv.Client(), ui.NewCaptureLogger())
	dest := filepath.Join(t.TempDir(), "page_001.jpg")

	var seen []int64
	require.True(t, f.FetchImageWithProgress(context.Background(), srv.URL, dest, 1, func(done int64) {
		seen = append(seen, done)
	}))

	require.GreaterOrEqual(t, len(seen), 2)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
	assert.EqualValues(t, len(body), seen[len(seen)-1])
}

func TestFetchImageOverwritesStaleFile(t *testing.T) {
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "page_001.jpg")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))
	require.NoError(t, os.WriteFile(dest+".part", []byte("junk"), 0644))

	f, _ := newTestFetcher(srv.Client(), ui.NewCaptureLogger())
	require.True(t, f.FetchImage(context.Background(), srv.URL, dest, 1))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchImageStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f, _ := newTestFetcher(srv.Client(), ui.NewCaptureLogger())
	f.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	log := ui.NewCaptureLogger()
	f.log = log

	assert.False(t, f.FetchImage(ctx, srv.URL, filepath.Join(t.TempDir(), "p.jpg"), 5))
	assert.EqualValues(t, 1, calls.Load())

	errs := log.Messages("ERROR")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "after 1 of 5 attempts")
}

func TestBackoff(t *testing.T) {
	f := NewFetcher(nil, ui.NewCaptureLogger(), "", 250*time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, f.Backoff(0))
	assert.Equal(t, 500*time.Millisecond, f.Backoff(1))
	assert.Equal(t, 2*time.Second, f.Backoff(3))
}

func TestImageFetchError(t *testing.T) {
	err := &ImageFetchError{URL: "https://x/1.jpg", Attempt: 2, Err: os.ErrDeadlineExceeded}
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Contains(t, err.Error(), "attempt 2")
}
