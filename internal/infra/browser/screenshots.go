package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"autoapply-agent/internal/domain/ports/adapter"
)

var _ adapter.ScreenshotStore = (*FileScreenshotStore)(nil)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileScreenshotStore writes PNGs under dir/<application id>/ and returns
// the path relative to dir as the reference.
type FileScreenshotStore struct {
	dir string
	now func() time.Time
}

func NewFileScreenshotStore(dir string) (*FileScreenshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("screenshot dir: %w", err)
	}
	return &FileScreenshotStore{dir: dir, now: time.Now}, nil
}

func (s *FileScreenshotStore) Save(ctx context.Context, applicationID, step string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(png) == 0 {
		return "", errors.New("empty screenshot")
	}
	sub := unsafeName.ReplaceAllString(applicationID, "_")
	if sub == "" {
		sub = "unknown"
	}
	if err := os.MkdirAll(filepath.Join(s.dir, sub), 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.png", unsafeName.ReplaceAllString(step, "_"), s.now().UTC().Format("20060102T150405.000000000"))
	ref := filepath.ToSlash(filepath.Join(sub, name))
	if err := os.WriteFile(filepath.Join(s.dir, sub, name), png, 0o644); err != nil {
		return "", err
	}
	return ref, nil
}
