package scraper

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/use-agent/apptrelay/models"
	"github.com/use-agent/apptrelay/snapshot"
)

// login fills whichever sign-in form the portal shows and waits for the
// redirect to the calendar. The portal serves either a username+password
// form or, for a remembered account, a password-only form.
func (s *Scraper) login(ctx context.Context, page *rod.Page, creds models.Credentials) error {
	cfg := s.cfg

	if s.portalCfg.AcceptCookies {
		s.acceptCookies(ctx, page)
	}

	settle(ctx, page)
	s.capture(ctx, page, "before_form_search")

	// ── Password field ───────────────────────────────────────────────
	password, sel, err := firstVisible(ctx, page, "password field", passwordSelectors, cfg.PasswordWait)
	if err != nil {
		if ctx.Err() != nil {
			return categorizeError(ctx, err, models.ErrCodePasswordNotFound, "password field lookup interrupted")
		}
		s.logInputs(page)
		s.capture(ctx, page, "password_field_not_found")
		return models.NewScrapeError(models.ErrCodePasswordNotFound, "password field not found with any selector", err)
	}
	slog.Info("password field found", "selector", sel.String())

	// ── Username field decides the form mode ─────────────────────────
	username, userSel, err := firstVisible(ctx, page, "username field", usernameSelectors, cfg.FieldWait)
	if ctx.Err() != nil {
		return categorizeError(ctx, ctx.Err(), models.ErrCodeLoginFailed, "login interrupted")
	}
	passwordOnly := err != nil

	if strings.TrimSpace(creds.Password) == "" {
		return models.NewScrapeError(models.ErrCodeMissingCredentials, "password is required to sign in", nil)
	}

	if passwordOnly {
		slog.Info("no username field, using password-only form")
		s.capture(ctx, page, "password_only_mode")
		err = s.submitPasswordOnly(ctx, page, password, creds.Password)
	} else {
		slog.Info("username field found", "selector", userSel.String())
		if strings.TrimSpace(creds.Email) == "" {
			return models.NewScrapeError(models.ErrCodeMissingCredentials, "email is required by the sign-in form", nil)
		}
		err = s.submitFull(ctx, page, username, password, creds)
	}
	if err != nil {
		return err
	}

	return s.awaitCalendar(ctx, page)
}

// acceptCookies clicks through the consent banner. Absence is normal.
func (s *Scraper) acceptCookies(ctx context.Context, page *rod.Page) {
	btn, sel, err := firstVisible(ctx, page, "cookie consent", cookieConsentSelectors, s.cfg.ConsentWait)
	if err != nil {
		slog.Info("no cookie consent banner")
		return
	}
	if err := click(btn); err != nil {
		slog.Warn("could not click cookie consent", "selector", sel.String(), "error", err)
		return
	}
	slog.Info("cookie consent accepted", "selector", sel.String())
	_ = pause(ctx, s.cfg.ConsentSettle)
}

func (s *Scraper) submitFull(ctx context.Context, page *rod.Page, username, password *rod.Element, creds models.Credentials) error {
	cfg := s.cfg

	submit, sel, err := firstVisible(ctx, page, "submit button", submitSelectors, cfg.FieldWait)
	if err != nil {
		return s.buttonMissing(ctx, err)
	}
	slog.Info("submit button found", "selector", sel.String())

	if err := fill(username, creds.Email); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "could not type username")
	}
	if err := pause(ctx, cfg.TypingPause); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "login interrupted")
	}
	if err := fill(password, creds.Password); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "could not type password")
	}
	if err := pause(ctx, cfg.TypingPause); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "login interrupted")
	}
	if err := click(submit); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "could not click submit button")
	}
	slog.Info("credentials submitted")
	return nil
}

func (s *Scraper) submitPasswordOnly(ctx context.Context, page *rod.Page, password *rod.Element, secret string) error {
	cfg := s.cfg

	if err := fill(password, secret); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "could not type password")
	}
	if err := pause(ctx, cfg.TypingPause); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "login interrupted")
	}

	btn, sel, err := firstVisible(ctx, page, "login button", loginButtonSelectors, cfg.FieldWait)
	if err != nil {
		return s.buttonMissing(ctx, err)
	}
	slog.Info("login button found", "selector", sel.String())

	if err := click(btn); err != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "could not click login button")
	}
	slog.Info("password submitted")
	return nil
}

func (s *Scraper) buttonMissing(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginButtonMissing, "login interrupted")
	}
	return models.NewScrapeError(models.ErrCodeLoginButtonMissing, "login button not found with any selector", err)
}

// awaitCalendar waits for the post-login redirect. On failure the page's
// visible error messages are logged to tell bad credentials from a changed
// login flow.
func (s *Scraper) awaitCalendar(ctx context.Context, page *rod.Page) error {
	slog.Info("waiting for calendar", "timeout", s.cfg.LoginRedirectTimeout.String())

	err := waitURL(ctx, page, s.calendarRe, s.cfg.LoginRedirectTimeout)
	if err == nil {
		slog.Info("login successful", "url", currentURL(page))
		return nil
	}
	if ctx.Err() != nil {
		return categorizeError(ctx, err, models.ErrCodeLoginFailed, "login interrupted")
	}

	slog.Error("login did not reach the calendar", "url", currentURL(page))
	s.capture(ctx, page, "login_failed")
	s.logPageErrors(page)
	return models.NewScrapeError(models.ErrCodeLoginFailed, "login did not redirect to the calendar", err)
}

// logInputs lists every input on the page to help adapt the selectors.
func (s *Scraper) logInputs(page *rod.Page) {
	raw, err := page.HTML()
	if err != nil {
		slog.Warn("could not read page html", "error", err)
		return
	}
	inputs, err := snapshot.DescribeInputs(raw)
	if err != nil {
		slog.Warn("could not parse page inputs", "error", err)
		return
	}
	slog.Info("inputs on page", "count", len(inputs))
	for i, in := range inputs {
		slog.Info("input",
			"index", i+1,
			"type", in.Type,
			"id", in.ID,
			"name", in.Name,
			"placeholder", in.Placeholder,
			"class", in.Class,
		)
	}
}

func (s *Scraper) logPageErrors(page *rod.Page) {
	raw, err := page.HTML()
	if err != nil {
		return
	}
	msgs, err := snapshot.ErrorMessages(raw)
	if err != nil {
		slog.Warn("could not parse page error messages", "error", err)
		return
	}
	for _, msg := range msgs {
		slog.Error("page error message", "text", msg)
	}
}
