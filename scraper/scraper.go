// Package scraper drives the scheduling portal in Chromium through rod: it
// signs in, dismisses the identity modal and reads every appointment of the
// calendar day.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/models"
	"github.com/use-agent/apptrelay/snapshot"
	"github.com/ysmood/gson"
)

// Scraper runs portal sessions. A browser is launched for each run on the
// persistent profile directory, so runs must not overlap; the runs package
// guarantees that.
type Scraper struct {
	browserCfg config.BrowserConfig
	portalCfg  config.PortalConfig
	cfg        config.ScraperConfig
	snapshots  *snapshot.Writer
	calendarRe *regexp.Regexp
}

// New validates the portal configuration. No browser is started until Scrape.
func New(browserCfg config.BrowserConfig, portalCfg config.PortalConfig, scraperCfg config.ScraperConfig, snapshots *snapshot.Writer) (*Scraper, error) {
	re, err := regexp.Compile("(?i)" + portalCfg.CalendarURLPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar url pattern %q: %w", portalCfg.CalendarURLPattern, err)
	}
	if portalCfg.SigninURL == "" {
		return nil, fmt.Errorf("sign-in url is empty")
	}
	return &Scraper{
		browserCfg: browserCfg,
		portalCfg:  portalCfg,
		cfg:        scraperCfg,
		snapshots:  snapshots,
		calendarRe: re,
	}, nil
}

const browserCloseTimeout = 10 * time.Second

// session is one launched browser and the page the run drives.
type session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
}

// launch starts Chromium on the profile directory and prepares its page.
func (s *Scraper) launch(ctx context.Context) (*session, error) {
	bc := s.browserCfg

	l := launcher.New().
		Headless(bc.Headless).
		NoSandbox(bc.NoSandbox)

	if bc.UserDataDir != "" {
		l = l.UserDataDir(bc.UserDataDir)
	}
	if bc.BrowserBin != "" {
		l = l.Bin(bc.BrowserBin)
	}
	if bc.Proxy != "" {
		l = l.Proxy(bc.Proxy)
	}

	// ── Stealth and container flags ──────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-accelerated-2d-canvas"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("no-zygote"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-popup-blocking"))
	if bc.AcceptLanguage != "" {
		l.Set(flags.Flag("lang"), primaryLanguage(bc.AcceptLanguage))
	}
	if bc.ViewportWidth > 0 && bc.ViewportHeight > 0 {
		l.Set(flags.Flag("window-size"), strconv.Itoa(bc.ViewportWidth)+","+strconv.Itoa(bc.ViewportHeight))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "userDataDir", bc.UserDataDir)

	// The browser itself stays off the run context so it can still be
	// closed cleanly after a timeout; the page carries ctx.
	browser := rod.New().ControlURL(controlURL)
	if bc.SlowMotion > 0 {
		browser = browser.SlowMotion(bc.SlowMotion)
	}
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	sess := &session{launcher: l, browser: browser}

	// Reuse the page restored by the profile when there is one.
	var page *rod.Page
	pages, err := browser.Pages()
	if err == nil && len(pages) > 0 {
		page = pages.First()
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			sess.close()
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
		}
	}
	sess.page = page.Context(ctx)

	s.preparePage(sess)
	return sess, nil
}

// preparePage applies the stealth script, viewport, user agent, headers and
// request blocking. Every step is best-effort.
func (s *Scraper) preparePage(sess *session) {
	bc := s.browserCfg
	page := sess.page

	if bc.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if bc.ViewportWidth > 0 && bc.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             bc.ViewportWidth,
			Height:            bc.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			slog.Warn("failed to set viewport", "error", err)
		}
	}

	if bc.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      bc.UserAgent,
			AcceptLanguage: bc.AcceptLanguage,
		}); err != nil {
			slog.Warn("failed to set user agent", "error", err)
		}
	}

	if bc.AcceptLanguage != "" {
		_ = page.EnableDomain(&proto.NetworkEnable{})
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": bc.AcceptLanguage}),
		}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	sess.router = setupHijack(page, s.cfg.BlockedResourceTypes, s.cfg.BlockTrackers)
}

// close stops the router and shuts the browser down so the profile is
// flushed to disk. The launcher is only killed when a graceful close fails.
func (sess *session) close() {
	if sess.router != nil {
		_ = sess.router.Stop()
	}
	if sess.browser != nil {
		if err := sess.browser.Timeout(browserCloseTimeout).Close(); err != nil {
			slog.Warn("browser close failed, killing process", "error", err)
			sess.launcher.Kill()
			return
		}
	}
	slog.Info("browser closed")
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// primaryLanguage returns the first tag of an Accept-Language value.
func primaryLanguage(acceptLanguage string) string {
	tag, _, _ := strings.Cut(acceptLanguage, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.TrimSpace(tag)
}
