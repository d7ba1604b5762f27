// Package extract parses portal markup into appointment fields.
//
// The browser code hands over outer HTML of the elements it found; keeping
// the parsing here lets the selector semantics be exercised against fixture
// markup without a browser.
package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/apptrelay/models"
)

// Attribute names carried by a calendar event.
const (
	AttrLastName  = "data-appointment-last-name"
	AttrFirstName = "data-appointment-first-name"
	AttrEventTime = "data-event-time"
)

// ErrEventIncomplete is returned when an event lacks one of the summary
// attributes. The caller records the appointment as failed.
var ErrEventIncomplete = errors.New("event summary attributes missing")

// EventSummary is what the calendar shows before the detail panel is opened.
type EventSummary struct {
	LastName  string
	FirstName string
	Time      string
}

// Patient returns the display name used in records.
func (e EventSummary) Patient() string {
	return models.PatientName(e.LastName, e.FirstName)
}

// ParseEvent reads the summary attributes from the outer HTML of one
// calendar event. Each attribute is looked up on the first element carrying
// it, the event element itself included.
//
// A missing attribute is reported as an error; the summary still carries
// whatever was found.
func ParseEvent(outerHTML string) (EventSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return EventSummary{}, err
	}

	var (
		summary EventSummary
		missing []string
	)
	read := func(attr string) string {
		v, ok := doc.Find("[" + attr + "]").First().Attr(attr)
		if !ok {
			missing = append(missing, attr)
		}
		return strings.TrimSpace(v)
	}

	summary.LastName = read(AttrLastName)
	summary.FirstName = read(AttrFirstName)
	summary.Time = read(AttrEventTime)

	if len(missing) > 0 {
		return summary, errors.Join(ErrEventIncomplete, errors.New(strings.Join(missing, ", ")))
	}
	return summary, nil
}
