// Package browser owns the browser session used to render chapter pages.
//
// Callers only see the Session capability interface; the chrome engine
// drives a real headless Chrome through chromedp, the static engine fetches
// plain HTML and queries it with goquery.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brogergvhs/mangapark-dl/internal/util"
)

type Engine string

const (
	EngineChrome Engine = "chrome"
	EngineStatic Engine = "static"
)

// Element is a node matched by Session.QueryAll.
type Element interface {
	Attr(name string) (string, bool)
}

// Session is a live page-rendering handle.
type Session interface {
	// Navigate loads url, bounded by the page-load timeout.
	Navigate(ctx context.Context, url string) error
	// WaitPresent blocks until selector matches at least one element or ctx
	// is done.
	WaitPresent(ctx context.Context, selector string) error
	// QueryAll returns matches in document order. It waits up to the
	// implicit wait for a first match and returns an empty slice when none
	// shows up.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Close() error
}

type Options struct {
	Engine          Engine
	Headless        bool
	PageLoadTimeout time.Duration
	ImplicitWait    time.Duration
	UserAgent       string
	ExecPath        string

	// HTTPClient is used by the static engine.
	HTTPClient *http.Client
}

func DefaultOptions() Options {
	return Options{
		Engine:          EngineChrome,
		Headless:        true,
		PageLoadTimeout: 30 * time.Second,
		ImplicitWait:    10 * time.Second,
		UserAgent:       util.DefaultUserAgent,
	}
}

// SessionCreationError is returned when a session could not be started.
type SessionCreationError struct {
	Engine Engine
	Err    error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("create %s session: %v", e.Engine, e.Err)
}

func (e *SessionCreationError) Unwrap() error {
	return e.Err
}

// Launch starts a session for opts.Engine.
func Launch(ctx context.Context, opts Options) (Session, error) {
	switch opts.Engine {
	case EngineChrome, "":
		s, err := newChromeSession(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case EngineStatic:
		return newStaticSession(opts), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
}

// boundedContext derives a context from parent that also ends when the
// caller's ctx ends (keeping its deadline) and, if timeout > 0, after timeout.
func boundedContext(parent, ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(parent)
	cancels := []context.CancelFunc{cancel}

	if d, ok := ctx.Deadline(); ok {
		var c context.CancelFunc
		runCtx, c = context.WithDeadline(runCtx, d)
		cancels = append(cancels, c)
	}
	if timeout > 0 {
		var c context.CancelFunc
		runCtx, c = context.WithTimeout(runCtx, timeout)
		cancels = append(cancels, c)
	}

	stop := context.AfterFunc(ctx, cancel)

	return runCtx, func() {
		stop()
		for i := len(cancels) - 1; i >= 0; i-- {
			cancels[i]()
		}
	}
}
