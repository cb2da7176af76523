package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/config"
	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/ports/adapter"
	"autoapply-agent/internal/infra/metrics"
)

const engineChromedp = "chromedp"

var (
	_ Driver                 = (*ChromedpDriver)(nil)
	_ adapter.BrowserSession = (*chromedpSession)(nil)
)

// ChromedpDriver drives a local Chrome over CDP. Sessions are tabs in
// separate browser contexts of one browser process.
type ChromedpDriver struct {
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelRoot  context.CancelFunc
	cfg         config.BrowserConfig
	log         *zerolog.Logger
}

func NewChromedpDriver(ctx context.Context, cfg config.BrowserConfig, logger *zerolog.Logger) (*ChromedpDriver, error) {
	l := logger.With().Str("component", "ChromedpDriver").Logger()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelRoot := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelRoot()
		cancelAlloc()
		return nil, fmt.Errorf("could not launch chrome: %w", err)
	}
	l.Info().Bool("headless", cfg.Headless).Msg("chrome launched")
	return &ChromedpDriver{browserCtx: browserCtx, cancelAlloc: cancelAlloc, cancelRoot: cancelRoot, cfg: cfg, log: &l}, nil
}

func (d *ChromedpDriver) Open(ctx context.Context) (adapter.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("new tab: %w", err)
	}
	metrics.BrowserSessionOpened(engineChromedp)
	return &chromedpSession{
		tabCtx:   tabCtx,
		cancel:   cancel,
		navTO:    d.cfg.NavigationTimeout,
		actionTO: d.cfg.ActionTimeout,
	}, nil
}

func (d *ChromedpDriver) Close() error {
	err := chromedp.Cancel(d.browserCtx)
	d.cancelRoot()
	d.cancelAlloc()
	return err
}

type chromedpSession struct {
	tabCtx    context.Context
	cancel    context.CancelFunc
	navTO     time.Duration
	actionTO  time.Duration
	closed    atomic.Bool
	closeOnce sync.Once
}

// run executes actions in the tab, bounded by timeout and by ctx.
func (s *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return domain.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", domain.ErrBrowserTimeout, err)
	}
	return err
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	err := s.run(ctx, s.navTO, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	metrics.ObserveNavigation(engineChromedp, time.Since(start).Milliseconds(), err == nil)
	if err != nil && !errors.Is(err, domain.ErrBrowserTimeout) && !errors.Is(err, domain.ErrSessionClosed) {
		return fmt.Errorf("%w: %v", domain.ErrNavigation, err)
	}
	return err
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 yields PNG
	if err := s.run(ctx, s.navTO, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chromedpSession) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.actionTO, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromedpSession) exists(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := s.run(ctx, s.actionTO, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", domain.ErrFieldNotFound, selector)
	}
	return nil
}

func (s *chromedpSession) Type(ctx context.Context, selector, text string) error {
	if err := s.exists(ctx, selector); err != nil {
		return err
	}
	return s.run(ctx, s.actionTO,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (s *chromedpSession) Click(ctx context.Context, selector string) error {
	if err := s.exists(ctx, selector); err != nil {
		return err
	}
	return s.run(ctx, s.actionTO, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *chromedpSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = chromedp.Cancel(s.tabCtx)
		s.cancel()
		metrics.BrowserSessionClosed(engineChromedp)
	})
	return err
}
