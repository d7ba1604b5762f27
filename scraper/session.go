package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/apptrelay/models"
)

// snapshotTimeout bounds a debug capture. Captures run detached from the
// run context so a timed-out run still leaves its debug_error image.
const snapshotTimeout = 15 * time.Second

// Scrape performs one complete run: launch, sign in when the profile has no
// valid session, dismiss the identity modal and read the calendar.
//
// Records gathered before a fatal error are returned alongside it.
func (s *Scraper) Scrape(ctx context.Context, creds models.Credentials) ([]models.Appointment, error) {
	sess, err := s.launch(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	records, err := s.run(ctx, sess.page, creds)
	if err != nil {
		slog.Error("scrape failed", "error", err, "url", currentURL(sess.page))
		s.capture(ctx, sess.page, "debug_error")
		return records, err
	}
	return records, nil
}

func (s *Scraper) run(ctx context.Context, page *rod.Page, creds models.Credentials) ([]models.Appointment, error) {
	// ── 1. Fresh storage, keep cookies ───────────────────────────────
	clearStorage(page)
	s.capture(ctx, page, "initial_browser_start")

	// ── 2. Still signed in from a previous run ───────────────────────
	if s.onCalendar(page) {
		slog.Info("already on calendar, reloading", "url", currentURL(page))
		if err := s.reload(ctx, page); err != nil {
			return nil, err
		}
		s.dismissIdentityModal(ctx, page)
		return s.scrapeCalendar(ctx, page)
	}

	// ── 3. Sign-in page ──────────────────────────────────────────────
	if err := s.navigate(ctx, page, s.portalCfg.SigninURL); err != nil {
		return nil, err
	}
	if err := pause(ctx, s.cfg.SettleDelay); err != nil {
		return nil, categorizeError(ctx, err, models.ErrCodeTimeout, "run interrupted")
	}
	s.capture(ctx, page, "after_navigation")

	// ── 4. Login unless the cookies redirected straight to the calendar
	if s.onCalendar(page) {
		slog.Info("redirected to calendar, login skipped", "url", currentURL(page))
	} else {
		if err := s.login(ctx, page, creds); err != nil {
			return nil, err
		}
	}

	// ── 5. Identity modal, then calendar ─────────────────────────────
	s.dismissIdentityModal(ctx, page)
	return s.scrapeCalendar(ctx, page)
}

func (s *Scraper) onCalendar(page *rod.Page) bool {
	return s.calendarRe.MatchString(currentURL(page))
}

// navigate loads url within the navigation timeout.
func (s *Scraper) navigate(ctx context.Context, page *rod.Page, url string) error {
	slog.Info("navigating", "url", url)

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(ctx, err, models.ErrCodeNavigation, "navigation to sign-in page failed")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(ctx, err, models.ErrCodeNavigation, "sign-in page did not finish loading")
	}
	settle(ctx, page)
	slog.Info("navigation complete", "url", currentURL(page))
	return nil
}

func (s *Scraper) reload(ctx context.Context, page *rod.Page) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Reload(); err != nil {
		return categorizeError(ctx, err, models.ErrCodeNavigation, "calendar reload failed")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(ctx, err, models.ErrCodeNavigation, "calendar did not finish loading")
	}
	settle(ctx, page)
	return nil
}

// clearStorage empties local and session storage. Cookies are kept so the
// profile's session survives.
func clearStorage(page *rod.Page) {
	_, err := page.Eval(`() => {
		try { window.localStorage.clear(); } catch (e) {}
		try { window.sessionStorage.clear(); } catch (e) {}
	}`)
	if err != nil {
		slog.Warn("could not clear web storage", "error", err)
	}
}

// capture takes a debug snapshot on a context detached from the run.
func (s *Scraper) capture(ctx context.Context, page *rod.Page, label string) {
	if !s.snapshots.Enabled() {
		return
	}
	snapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()
	s.snapshots.Capture(page.Context(snapCtx), label)
}
