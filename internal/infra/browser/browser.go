// Package browser provides the page drivers the apply pipeline uses:
// playwright (default) and chromedp.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"autoapply-agent/internal/config"
	"autoapply-agent/internal/domain/ports/adapter"
)

// Driver is a BrowserDriver that owns a browser process.
type Driver interface {
	adapter.BrowserDriver
	Close() error
}

// New starts the engine named in cfg.Engine.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zerolog.Logger) (Driver, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", "playwright":
		return NewPlaywrightDriver(cfg, logger)
	case "chromedp":
		return NewChromedpDriver(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}
