// Package snapshot writes debug artifacts of the browser page at uncertain
// steps of a run. Every failure here is logged and swallowed.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/apptrelay/config"
)

// Page is the part of *rod.Page the writer needs.
type Page interface {
	Screenshot(fullPage bool, req *proto.PageCaptureScreenshot) ([]byte, error)
	HTML() (string, error)
}

// Writer saves screenshots (and optionally markdown renderings) to a directory.
// The zero value and a nil *Writer are disabled writers.
type Writer struct {
	dir      string
	enabled  bool
	markdown bool
	conv     *converter.Converter
	now      func() time.Time
}

// NewWriter creates the snapshot directory when snapshots are enabled.
func NewWriter(cfg config.SnapshotConfig) (*Writer, error) {
	w := &Writer{
		dir:      cfg.Dir,
		enabled:  cfg.Enabled,
		markdown: cfg.Markdown,
		now:      time.Now,
	}
	if !w.enabled {
		return w, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir %q: %w", cfg.Dir, err)
	}
	if w.markdown {
		w.conv = newMarkdownConverter()
	}
	return w, nil
}

// Enabled reports whether Capture writes anything.
func (w *Writer) Enabled() bool {
	return w != nil && w.enabled
}

// Capture saves a full-page PNG named <label>_<unixmillis>.png and returns
// its path, or "" when disabled or on failure.
func (w *Writer) Capture(page Page, label string) string {
	if !w.Enabled() || page == nil {
		return ""
	}

	stamp := w.now().UnixMilli()
	base := filepath.Join(w.dir, fmt.Sprintf("%s_%d", label, stamp))

	img, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		slog.Warn("could not take screenshot", "label", label, "error", err)
		return ""
	}
	path := base + ".png"
	if err := os.WriteFile(path, img, 0o644); err != nil {
		slog.Warn("could not save screenshot", "label", label, "path", path, "error", err)
		return ""
	}
	slog.Info("screenshot saved", "label", label, "path", path)

	if w.markdown {
		w.writeMarkdown(page, base+".md", label)
	}
	return path
}

func (w *Writer) writeMarkdown(page Page, path, label string) {
	raw, err := page.HTML()
	if err != nil {
		slog.Warn("could not read page html for snapshot", "label", label, "error", err)
		return
	}
	md, err := ToMarkdown(w.conv, raw)
	if err != nil {
		slog.Warn("could not convert page to markdown", "label", label, "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		slog.Warn("could not save markdown snapshot", "label", label, "path", path, "error", err)
	}
}
