package scraper

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
)

// dismissIdentityModal closes the identity-confirmation dialog the portal
// shows after sign-in. Nothing here fails the run.
func (s *Scraper) dismissIdentityModal(ctx context.Context, page *rod.Page) {
	_, sel, err := firstVisible(ctx, page, "identity modal", identityModalSelectors, s.cfg.ModalWait)
	if err != nil {
		slog.Info("no identity modal")
		return
	}
	slog.Info("identity modal detected", "selector", sel.String())

	closed := false
	btn, closeSel, err := firstVisible(ctx, page, "modal close button", modalCloseSelectors, s.cfg.ModalCloseWait)
	if err == nil {
		if err := click(btn); err != nil {
			slog.Warn("could not click modal close button", "selector", closeSel.String(), "error", err)
		} else {
			slog.Info("identity modal closed", "selector", closeSel.String())
			closed = true
		}
	}
	if !closed {
		slog.Info("no close button, pressing Escape")
		if err := pressEscape(page); err != nil {
			slog.Warn("could not press Escape", "error", err)
		}
	}

	_ = pause(ctx, s.cfg.ModalSettle)
}
