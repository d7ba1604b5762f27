package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// pollInterval is how often URL and visibility conditions are re-checked.
const pollInterval = 200 * time.Millisecond

// findVisible waits up to d for the first element matching sel to exist and
// become visible. The returned element is bound to ctx, not to the wait.
func findVisible(ctx context.Context, page *rod.Page, sel Selector, d time.Duration) (*rod.Element, error) {
	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	p := page.Context(waitCtx)

	var (
		el  *rod.Element
		err error
	)
	if sel.Text == "" {
		el, err = p.Element(sel.CSS)
	} else {
		el, err = p.ElementR(sel.CSS, sel.textPattern())
	}
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, err
	}
	return el.Context(ctx), nil
}

// firstVisible tries each candidate in order, giving each up to d, and
// returns the first visible element with the selector that matched.
// The label is only used for logging.
func firstVisible(ctx context.Context, page *rod.Page, label string, candidates []Selector, d time.Duration) (*rod.Element, Selector, error) {
	for _, sel := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, Selector{}, err
		}
		slog.Debug("trying selector", "target", label, "selector", sel.String())
		el, err := findVisible(ctx, page, sel, d)
		if err != nil {
			slog.Debug("selector not found, trying next", "target", label, "selector", sel.String())
			continue
		}
		return el, sel, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, Selector{}, err
	}
	return nil, Selector{}, fmt.Errorf("%s: no candidate selector matched a visible element", label)
}

// waitHidden waits up to d until no element matching cssSel is visible.
// A selector that matches nothing counts as hidden.
func waitHidden(ctx context.Context, page *rod.Page, cssSel string, d time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	p := page.Context(waitCtx)
	return pollUntil(waitCtx, func() bool {
		els, err := p.Elements(cssSel)
		if err != nil {
			return false
		}
		for _, el := range els {
			if visible, err := el.Visible(); err == nil && visible {
				return false
			}
		}
		return true
	})
}

// waitURL waits up to d until the page URL matches re.
func waitURL(ctx context.Context, page *rod.Page, re *regexp.Regexp, d time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	p := page.Context(waitCtx)
	return pollUntil(waitCtx, func() bool {
		return re.MatchString(currentURL(p))
	})
}

// pollUntil evaluates cond immediately and then every pollInterval until it
// holds or ctx is done.
func pollUntil(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pause sleeps for d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// currentURL returns the page URL, or "" when the target is gone.
func currentURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// fill replaces the content of an input with text.
func fill(el *rod.Element, text string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func click(el *rod.Element) error {
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func pressEscape(page *rod.Page) error {
	return page.Keyboard.Press(input.Escape)
}

// settleTimeout bounds settle so a page that keeps mutating cannot stall a run.
const settleTimeout = 15 * time.Second

// settle waits for the load event and for the DOM to stop changing.
// Neither failure is fatal: the page is used as it is.
func settle(ctx context.Context, page *rod.Page) {
	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	p := page.Context(waitCtx)
	if err := p.WaitLoad(); err != nil {
		slog.Debug("wait load did not complete", "error", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
}
