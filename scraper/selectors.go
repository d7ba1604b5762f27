package scraper

import (
	"fmt"
	"regexp"
)

// Selector is a CSS selector, optionally narrowed to elements whose text
// contains Text (case-insensitive).
type Selector struct {
	CSS  string
	Text string
}

func css(s string) Selector { return Selector{CSS: s} }

func withText(cssSel, text string) Selector { return Selector{CSS: cssSel, Text: text} }

// String renders the selector the way it appears in logs.
func (s Selector) String() string {
	if s.Text == "" {
		return s.CSS
	}
	return fmt.Sprintf("%s:has-text(%q)", s.CSS, s.Text)
}

// textPattern is the JS regex literal rod matches element text against.
func (s Selector) textPattern() string {
	return "/" + regexp.QuoteMeta(s.Text) + "/i"
}

// Candidate lists, tried in order; the first visible match wins.
var (
	cookieConsentSelectors = []Selector{
		css(`button#didomi-notice-agree-button`),
		css(`button[id*="agree"]`),
		css(`button[class*="agree"]`),
		withText("button", "Accepter"),
		withText("button", "Accept"),
		css(`[data-testid="accept-cookies"]`),
	}

	passwordSelectors = []Selector{
		css(`input#password`),
		css(`input[name="password"]`),
		css(`input[type="password"]`),
		css(`input[placeholder*="password" i]`),
		css(`input[placeholder*="mot de passe" i]`),
		css(`input[autocomplete="current-password"]`),
		css(`input[autocomplete="password"]`),
	}

	usernameSelectors = []Selector{
		css(`input#username`),
		css(`input[name="username"]`),
		css(`input[name="email"]`),
		css(`input[type="email"]`),
		css(`input[placeholder*="mail" i]`),
		css(`input[placeholder*="utilisateur" i]`),
		css(`input[placeholder*="username" i]`),
		css(`input[autocomplete="username"]`),
		css(`input[autocomplete="email"]`),
	}

	// submitSelectors is used with the full username+password form.
	submitSelectors = []Selector{
		css(`button[type="submit"]`),
		withText("button", "Se connecter"),
		withText("button", "Connexion"),
		withText("button", "Se conn"),
		css(`input[type="submit"]`),
		css(`.dl-button-primary`),
		css(`button.btn-primary`),
		css(`form button`),
	}

	// loginButtonSelectors is used with the password-only form, where the
	// labelled button is preferred over a generic submit.
	loginButtonSelectors = []Selector{
		withText("button", "Se connecter"),
		withText("button", "Connexion"),
		withText("button", "Se conn"),
		css(`button[type="submit"]`),
		css(`input[type="submit"]`),
		css(`.dl-button-primary`),
		css(`button.btn-primary`),
		css(`form button`),
	}

	identityModalSelectors = []Selector{
		withText(".dl-modal-content", "Confirmez votre identité"),
		withText(".dl-modal-content", "vérification"),
		withText(`div[class*="modal"]`, "CPS"),
		css(`.dl-modal-content`),
		css(`[role="dialog"]`),
	}

	modalCloseSelectors = []Selector{
		css(`.dl-modal-close-icon button`),
		css(`button[aria-label="Fermer"]`),
		withText(".dl-modal-content button", "×"),
		css(`.dl-modal-content .dl-icon:has([data-icon-name*="xmark"])`),
		css(`.dl-modal-close-icon`),
		css(`button:has(.dl-icon[data-icon-name*="xmark"])`),
		css(`[aria-label="Close"]`),
		css(`button[class*="close"]`),
	}
)

// Calendar and detail panel.
const (
	appointmentSelector = `div.dc-event-inner`
	sidebarSelector     = `div.dl-left-navigation-bar`
	dateInputSelector   = `input#appointment_start_date`
	phoneLinkSelector   = `a#phone_number`
)

var agendaEntrySelector = withText("div.dl-permanent-entry-label", "Agenda")
