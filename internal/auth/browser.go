package auth

import (
	"context"
	"time"

	"clubprogress/internal/session"
)

// Browser starts an interactive browsing session. Authentication only needs a
// handful of page operations, so the real browser can be swapped for a fake in
// tests.
type Browser interface {
	Open(ctx context.Context) (BrowserSession, error)
}

// BrowserSession is a single page in a fresh browser context.
type BrowserSession interface {
	Goto(url string) error
	// WaitFor reports whether the selector became visible within timeout.
	WaitFor(selector string, timeout time.Duration) bool
	Fill(selector, value string) error
	Click(selector string) error
	WaitForNetworkIdle(timeout time.Duration) error
	Cookies() ([]session.Cookie, error)
	UserAgent() (string, error)
	// Content returns the HTML of the current page.
	Content() (string, error)
	Close() error
}
