package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/apptrelay/extract"
	"github.com/use-agent/apptrelay/models"
)

// scrapeCalendar opens every appointment of the displayed day in turn and
// reads its detail panel. A day without appointments yields an empty list.
//
// One appointment failing never stops the loop: it is recorded as failed
// and the panel is dismissed with Escape.
func (s *Scraper) scrapeCalendar(ctx context.Context, page *rod.Page) ([]models.Appointment, error) {
	records := []models.Appointment{}

	slog.Info("waiting for appointments", "timeout", s.cfg.CalendarWait.String())
	if _, err := findVisible(ctx, page, css(appointmentSelector), s.cfg.CalendarWait); err != nil {
		if ctx.Err() != nil {
			return records, categorizeError(ctx, err, models.ErrCodeTimeout, "calendar wait interrupted")
		}
		slog.Warn("no appointments on the calendar, the day might be empty")
		return records, nil
	}

	events, err := page.Elements(appointmentSelector)
	if err != nil {
		return records, categorizeError(ctx, err, models.ErrCodeNavigation, "could not list appointments")
	}
	total := len(events)
	slog.Info("appointments found", "count", total)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return records, categorizeError(ctx, err, models.ErrCodeTimeout, "run interrupted")
		}

		rec, err := s.readAppointment(ctx, page, i, total)
		if err != nil {
			slog.Error("failed to process appointment",
				"index", i+1,
				"patient", rec.Patient,
				"error", err,
			)
			records = append(records, models.FailedAppointment(rec.Patient))
			if err := pressEscape(page); err != nil {
				slog.Warn("could not press Escape", "error", err)
			}
		} else {
			records = append(records, rec)
			if err := s.closeDetail(ctx, page); err != nil {
				slog.Warn("could not close appointment panel, pressing Escape", "index", i+1, "error", err)
				_ = pressEscape(page)
			}
		}

		if err := pause(ctx, s.betweenAppointments()); err != nil {
			return records, categorizeError(ctx, err, models.ErrCodeTimeout, "run interrupted")
		}
	}

	return records, nil
}

// readAppointment opens the i-th appointment and reads its record. The
// event list is resolved again each time since opening a panel re-renders
// the calendar. On error the returned record carries the patient name
// resolved so far.
func (s *Scraper) readAppointment(ctx context.Context, page *rod.Page, i, total int) (models.Appointment, error) {
	rec := models.Appointment{Patient: models.UnknownPatient}

	events, err := page.Elements(appointmentSelector)
	if err != nil {
		return rec, err
	}
	if i >= len(events) {
		return rec, fmt.Errorf("appointment %d no longer on the calendar (%d shown)", i+1, len(events))
	}
	event := events[i]

	raw, err := event.HTML()
	if err != nil {
		return rec, err
	}
	summary, err := extract.ParseEvent(raw)
	if err != nil {
		return rec, err
	}
	rec.Patient = summary.Patient()
	clock := summary.Time
	if clock == "" {
		clock = models.UnknownTime
	}

	slog.Info("processing appointment",
		"index", i+1,
		"total", total,
		"patient", rec.Patient,
		"time", clock,
	)

	if err := click(event); err != nil {
		return rec, err
	}
	if _, err := findVisible(ctx, page, css(sidebarSelector), s.cfg.SidebarWait); err != nil {
		return rec, fmt.Errorf("appointment panel did not open: %w", err)
	}

	date := models.UnknownDate
	if v, ok := s.detailAttribute(ctx, page, dateInputSelector, "value"); ok {
		date = v
		slog.Info("date found", "date", date)
	} else {
		slog.Warn("could not find date", "patient", rec.Patient)
	}

	rec.PhoneNumber = models.NoPhone
	if href, ok := s.detailAttribute(ctx, page, phoneLinkSelector, "href"); ok {
		if phone := extract.NormalizePhone(href); phone != "" {
			rec.PhoneNumber = phone
		}
		slog.Info("phone number found", "phone", rec.PhoneNumber)
	} else {
		slog.Warn("could not find phone number", "patient", rec.Patient)
	}

	rec.DateTime = models.JoinDateTime(date, clock)
	return rec, nil
}

// detailAttribute reads attr from the panel element matching cssSel once it
// is visible. Missing elements and attributes report false.
func (s *Scraper) detailAttribute(ctx context.Context, page *rod.Page, cssSel, attr string) (string, bool) {
	el, err := findVisible(ctx, page, css(cssSel), s.cfg.DetailWait)
	if err != nil {
		return "", false
	}
	v, err := el.Attribute(attr)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

// closeDetail returns to the agenda and waits for the panel to hide.
func (s *Scraper) closeDetail(ctx context.Context, page *rod.Page) error {
	entry, err := findVisible(ctx, page, agendaEntrySelector, s.cfg.SidebarCloseWait)
	if err != nil {
		return fmt.Errorf("agenda entry not found: %w", err)
	}
	if err := click(entry); err != nil {
		return err
	}
	return waitHidden(ctx, page, sidebarSelector, s.cfg.SidebarCloseWait)
}

func (s *Scraper) betweenAppointments() time.Duration {
	d := s.cfg.BetweenAppointments
	if s.cfg.Jitter > 0 {
		d += rand.N(s.cfg.Jitter)
	}
	return d
}
