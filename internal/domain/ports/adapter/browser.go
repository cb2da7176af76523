package adapter

import "context"

// BrowserDriver opens isolated browser sessions. One session per candidate.
type BrowserDriver interface {
	Open(ctx context.Context) (BrowserSession, error)
}

// BrowserSession drives a single page. Close is idempotent and must be
// called on every exit path.
type BrowserSession interface {
	// Navigate loads url and waits for the page to settle.
	// Fails with domain.ErrBrowserTimeout when the page does not load in time.
	Navigate(ctx context.Context, url string) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Content returns the rendered markup.
	Content(ctx context.Context) (string, error)
	// Type fills the element matched by selector.
	// Fails with domain.ErrFieldNotFound or domain.ErrBrowserTimeout.
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Close() error
}

// ScreenshotStore persists screenshots and returns a reference for the audit log.
type ScreenshotStore interface {
	Save(ctx context.Context, applicationID, step string, png []byte) (string, error)
}
