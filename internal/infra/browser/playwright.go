package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/config"
	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/ports/adapter"
	"autoapply-agent/internal/infra/metrics"
)

const enginePlaywright = "playwright"

var (
	_ Driver                 = (*PlaywrightDriver)(nil)
	_ adapter.BrowserSession = (*playwrightSession)(nil)
)

// PlaywrightDriver keeps one Chromium process and gives every session its
// own browser context.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.BrowserConfig
	log     *zerolog.Logger
}

func NewPlaywrightDriver(cfg config.BrowserConfig, logger *zerolog.Logger) (*PlaywrightDriver, error) {
	l := logger.With().Str("component", "PlaywrightDriver").Logger()
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not launch playwright: %w", err)
	}
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.NoSandbox {
		opts.Args = []string{"--no-sandbox", "--disable-dev-shm-usage"}
	}
	b, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	l.Info().Bool("headless", cfg.Headless).Msg("chromium launched")
	return &PlaywrightDriver{pw: pw, browser: b, cfg: cfg, log: &l}, nil
}

func (d *PlaywrightDriver) Open(ctx context.Context) (adapter.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var opts playwright.BrowserNewContextOptions
	if d.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(d.cfg.UserAgent)
	}
	bctx, err := d.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	metrics.BrowserSessionOpened(enginePlaywright)
	return &playwrightSession{
		bctx:     bctx,
		page:     page,
		navMs:    float64(d.cfg.NavigationTimeout / time.Millisecond),
		actionMs: float64(d.cfg.ActionTimeout / time.Millisecond),
	}, nil
}

func (d *PlaywrightDriver) Close() error {
	err := d.browser.Close()
	if stopErr := d.pw.Stop(); err == nil {
		err = stopErr
	}
	return err
}

type playwrightSession struct {
	bctx      playwright.BrowserContext
	page      playwright.Page
	navMs     float64
	actionMs  float64
	closed    atomic.Bool
	closeOnce sync.Once
}

func (s *playwrightSession) ready(ctx context.Context) error {
	if s.closed.Load() {
		return domain.ErrSessionClosed
	}
	return ctx.Err()
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	start := time.Now()
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(s.navMs),
	})
	metrics.ObserveNavigation(enginePlaywright, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return mapPlaywrightErr(err, domain.ErrNavigation)
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("%w: http %d", domain.ErrNavigation, resp.Status())
	}
	return nil
}

func (s *playwrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	png, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, mapPlaywrightErr(err, nil)
	}
	return png, nil
}

func (s *playwrightSession) Content(ctx context.Context) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	html, err := s.page.Content()
	if err != nil {
		return "", mapPlaywrightErr(err, nil)
	}
	return html, nil
}

func (s *playwrightSession) locate(selector string) (playwright.Locator, error) {
	loc := s.page.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFieldNotFound, selector, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrFieldNotFound, selector)
	}
	return loc.First(), nil
}

func (s *playwrightSession) Type(ctx context.Context, selector, text string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	loc, err := s.locate(selector)
	if err != nil {
		return err
	}
	return mapPlaywrightErr(loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(s.actionMs)}), nil)
}

func (s *playwrightSession) Click(ctx context.Context, selector string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	loc, err := s.locate(selector)
	if err != nil {
		return err
	}
	return mapPlaywrightErr(loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(s.actionMs)}), nil)
}

func (s *playwrightSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.bctx.Close()
		metrics.BrowserSessionClosed(enginePlaywright)
	})
	return err
}

// mapPlaywrightErr turns playwright timeouts into domain.ErrBrowserTimeout and
// wraps anything else in kind when given.
func mapPlaywrightErr(err, kind error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %v", domain.ErrBrowserTimeout, err)
	case kind != nil:
		return fmt.Errorf("%w: %v", kind, err)
	default:
		return err
	}
}
