package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/models"
)

const signinPage = `<!DOCTYPE html>
<html><body>
<form onsubmit="event.preventDefault(); if (document.getElementById('password').value === 'secret') { location.href = '/calendar'; } else { document.getElementById('err').style.display = 'block'; }">
  <input id="username" name="username" type="text" placeholder="Email">
  <input id="password" name="password" type="password">
  <button type="submit">Se connecter</button>
</form>
<div id="err" class="dl-alert" style="display:none">Identifiants incorrects</div>
</body></html>`

const passwordOnlyPage = `<!DOCTYPE html>
<html><body>
<form onsubmit="event.preventDefault(); location.href = '/calendar';">
  <input id="password" name="password" type="password">
  <button type="button" onclick="location.href = '/calendar'">Se connecter</button>
</form>
</body></html>`

const calendarPage = `<!DOCTYPE html>
<html><head><style>
  .dc-event-inner { display:block; width:200px; height:30px; margin:4px; background:#eef; cursor:pointer; }
  .dl-left-navigation-bar { display:none; }
  .dl-left-navigation-bar.open { display:block; }
</style></head><body>
<div class="dl-modal-content" id="modal">
  Confirmez votre identité
  <div class="dl-modal-close-icon"><button onclick="document.getElementById('modal').remove()">×</button></div>
</div>
<div id="cal">
  <div class="dc-event-inner" data-idx="0"><span data-appointment-last-name="DUPONT" data-appointment-first-name="Marie" data-event-time="09:30">DUPONT</span></div>
  <div class="dc-event-inner" data-idx="1"><span data-appointment-last-name="MARTIN" data-appointment-first-name="Paul" data-event-time="10:00">MARTIN</span></div>
  <div class="dc-event-inner" data-idx="2"><span>no attributes</span></div>
</div>
<div class="dl-left-navigation-bar" id="panel">
  <input id="appointment_start_date" value="12/03/2025">
  <div id="phone"></div>
  <div class="dl-permanent-entry-label" onclick="document.getElementById('panel').className = 'dl-left-navigation-bar'">Agenda</div>
</div>
<script>
  var phones = ["tel:+33 6 12 34 56 78", "", ""];
  document.querySelectorAll('.dc-event-inner').forEach(function (ev) {
    ev.addEventListener('click', function () {
      var href = phones[Number(ev.dataset.idx)];
      document.getElementById('phone').innerHTML = href ? '<a id="phone_number" href="' + href + '">call</a>' : '';
      document.getElementById('panel').className = 'dl-left-navigation-bar open';
    });
  });
</script>
</body></html>`

// consentPage only signs in once the didomi banner was accepted.
const consentPage = `<!DOCTYPE html>
<html><body>
<div id="didomi-notice">
  Nous utilisons des cookies.
  <button id="didomi-notice-agree-button" onclick="window.consented = true; document.getElementById('didomi-notice').remove()">Accepter</button>
</div>
<form onsubmit="event.preventDefault(); if (window.consented && document.getElementById('password').value === 'secret') { location.href = '/calendar'; } else { document.getElementById('err').style.display = 'block'; }">
  <input id="username" name="username" type="text">
  <input id="password" name="password" type="password">
  <button type="submit">Se connecter</button>
</form>
<div id="err" class="dl-alert" style="display:none">Veuillez accepter les cookies</div>
</body></html>`

const noPasswordPage = `<!DOCTYPE html>
<html><body>
<form>
  <input id="login-code" name="code" type="text" placeholder="Code SMS">
</form>
</body></html>`

const noButtonPage = `<!DOCTYPE html>
<html><body>
<div>
  <input id="username" name="username" type="text">
  <input id="password" name="password" type="password">
</div>
</body></html>`

const emptyCalendarPage = `<!DOCTYPE html>
<html><body>
<div id="cal"><p>Aucun rendez-vous</p></div>
</body></html>`

// noAgendaCalendarPage has a panel without the Agenda entry; only Escape
// closes it.
var noAgendaCalendarPage = strings.Replace(
	strings.Replace(calendarPage,
		`<div class="dl-permanent-entry-label" onclick="document.getElementById('panel').className = 'dl-left-navigation-bar'">Agenda</div>`, "", 1),
	`</script>`,
	`  document.addEventListener('keydown', function (e) {
    if (e.key === 'Escape') { document.getElementById('panel').className = 'dl-left-navigation-bar'; }
  });
</script>`, 1)

// portalPages describes the fixture portal. An empty signin page makes
// /signin redirect to the calendar, as for a profile still signed in.
type portalPages struct {
	signin   string
	calendar string
}

func newPortal(t *testing.T, signin string) *httptest.Server {
	t.Helper()
	return newPortalWith(t, portalPages{signin: signin})
}

func newPortalWith(t *testing.T, pages portalPages) *httptest.Server {
	t.Helper()
	if pages.calendar == "" {
		pages.calendar = calendarPage
	}
	mux := http.NewServeMux()
	serve := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		}
	}
	if pages.signin == "" {
		mux.HandleFunc("/signin", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/calendar", http.StatusFound)
		})
	} else {
		mux.HandleFunc("/signin", serve(pages.signin))
	}
	mux.HandleFunc("/calendar", serve(pages.calendar))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFixtureScraper(t *testing.T, srv *httptest.Server) *Scraper {
	t.Helper()
	browserCfg, portalCfg, scraperCfg := fixtureConfig(t, srv)
	s, err := New(browserCfg, portalCfg, scraperCfg, nil)
	require.NoError(t, err)
	return s
}

func fixtureConfig(t *testing.T, srv *httptest.Server) (config.BrowserConfig, config.PortalConfig, config.ScraperConfig) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chromium found")
	}

	browserCfg := config.BrowserConfig{
		Headless:       true,
		NoSandbox:      true,
		BrowserBin:     bin,
		UserDataDir:    t.TempDir(),
		ViewportWidth:  1400,
		ViewportHeight: 900,
	}
	portalCfg := config.PortalConfig{
		SigninURL:          srv.URL + "/signin",
		CalendarURLPattern: `/calendar`,
	}
	scraperCfg := config.ScraperConfig{
		NavigationTimeout:    20 * time.Second,
		LoginRedirectTimeout: 5 * time.Second,
		PasswordWait:         2 * time.Second,
		FieldWait:            500 * time.Millisecond,
		ModalWait:            time.Second,
		ModalCloseWait:       500 * time.Millisecond,
		CalendarWait:         5 * time.Second,
		SidebarWait:          3 * time.Second,
		DetailWait:           500 * time.Millisecond,
		SidebarCloseWait:     3 * time.Second,
		BetweenAppointments:  50 * time.Millisecond,
	}
	return browserCfg, portalCfg, scraperCfg
}

// syncBuffer collects log output written from any goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func assertScrapeCode(t *testing.T, err error, code string) {
	t.Helper()
	var scrapeErr *models.ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, code, scrapeErr.Code)
}

func TestScrape_FixturePortal(t *testing.T) {
	srv := newPortal(t, signinPage)
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	records, err := s.Scrape(ctx, models.Credentials{Email: "dr@example.com", Password: "secret"})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, models.Appointment{Patient: "DUPONT Marie", DateTime: "12/03/2025 09:30", PhoneNumber: "+33612345678"}, records[0])
	assert.Equal(t, models.Appointment{Patient: "MARTIN Paul", DateTime: "12/03/2025 10:00", PhoneNumber: models.NoPhone}, records[1])
	assert.True(t, records[2].Failed())
	assert.Equal(t, models.UnknownPatient, records[2].Patient)

	assert.Equal(t, records[:1], models.FilterResolved(records))
}

func TestScrape_PasswordOnlyForm(t *testing.T) {
	srv := newPortal(t, passwordOnlyPage)
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// No email: the password-only form does not need one.
	records, err := s.Scrape(ctx, models.Credentials{Password: "secret"})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestScrape_WrongPassword(t *testing.T) {
	srv := newPortal(t, signinPage)
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_, err := s.Scrape(ctx, models.Credentials{Email: "dr@example.com", Password: "nope"})

	var scrapeErr *models.ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, models.ErrCodeLoginFailed, scrapeErr.Code)
}

func TestScrape_MissingEmailOnFullForm(t *testing.T) {
	srv := newPortal(t, signinPage)
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := s.Scrape(ctx, models.Credentials{Password: "secret"})

	var scrapeErr *models.ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, models.ErrCodeMissingCredentials, scrapeErr.Code)
}

func TestScrape_AcceptsCookieConsent(t *testing.T) {
	srv := newPortal(t, consentPage)
	browserCfg, portalCfg, scraperCfg := fixtureConfig(t, srv)
	portalCfg.AcceptCookies = true
	scraperCfg.ConsentWait = 2 * time.Second
	s, err := New(browserCfg, portalCfg, scraperCfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// The form refuses to sign in until the banner was accepted.
	records, err := s.Scrape(ctx, models.Credentials{Email: "dr@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestScrape_PasswordFieldMissing(t *testing.T) {
	logs := captureLogs(t)
	srv := newPortal(t, noPasswordPage)
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	records, err := s.Scrape(ctx, models.Credentials{Email: "dr@example.com", Password: "secret"})

	assertScrapeCode(t, err, models.ErrCodePasswordNotFound)
	assert.Empty(t, records)
	out := logs.String()
	assert.Contains(t, out, "inputs on page")
	assert.Contains(t, out, "id=login-code")
	assert.Contains(t, out, `placeholder="Code SMS"`)
}

func TestScrape_LoginButtonMissing(t *testing.T) {
	srv := newPortal(t, noButtonPage)
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := s.Scrape(ctx, models.Credentials{Email: "dr@example.com", Password: "secret"})

	assertScrapeCode(t, err, models.ErrCodeLoginButtonMissing)
}

func TestScrape_SignedInProfileSkipsLogin(t *testing.T) {
	srv := newPortalWith(t, portalPages{})
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// No credentials: the sign-in page redirects straight to the calendar.
	records, err := s.Scrape(ctx, models.Credentials{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "DUPONT Marie", records[0].Patient)
}

func TestScrape_EmptyDay(t *testing.T) {
	srv := newPortalWith(t, portalPages{signin: signinPage, calendar: emptyCalendarPage})
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	records, err := s.Scrape(ctx, models.Credentials{Email: "dr@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestScrape_PanelWithoutAgendaClosesWithEscape(t *testing.T) {
	srv := newPortalWith(t, portalPages{signin: signinPage, calendar: noAgendaCalendarPage})
	s := newFixtureScraper(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	records, err := s.Scrape(ctx, models.Credentials{Email: "dr@example.com", Password: "secret"})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, models.Appointment{Patient: "DUPONT Marie", DateTime: "12/03/2025 09:30", PhoneNumber: "+33612345678"}, records[0])
	assert.Equal(t, models.Appointment{Patient: "MARTIN Paul", DateTime: "12/03/2025 10:00", PhoneNumber: models.NoPhone}, records[1])
	assert.True(t, records[2].Failed())
}
