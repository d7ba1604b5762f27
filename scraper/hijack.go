package scraper

import (
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerDomains are analytics and ad hosts the portal pulls in. None of
// them is needed to sign in or to render the calendar.
var trackerDomains = map[string]struct{}{
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"doubleclick.net":       {},
	"googleadservices.com":  {},
	"facebook.net":          {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"segment.com":           {},
	"amplitude.com":         {},
	"fullstory.com":         {},
	"bing.com":              {},
	"criteo.com":            {},
	"criteo.net":            {},
}

// isTrackerHost reports whether host or one of its parent domains is a
// known tracker.
func isTrackerHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}

// blockedTypes resolves config names, logging the ones it does not know.
// Scripts and documents cannot be blocked: the portal is a single-page app.
func blockedTypes(names []string) map[proto.NetworkResourceType]struct{} {
	set := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		rt, ok := resourceTypes[name]
		if !ok {
			slog.Warn("ignoring unknown blocked resource type", "type", name)
			continue
		}
		set[rt] = struct{}{}
	}
	return set
}

// setupHijack installs a request interceptor that fails blocked resource
// types and tracker requests. It returns nil when there is nothing to block;
// otherwise the caller stops the returned router.
func setupHijack(page *rod.Page, types []string, blockTrackers bool) *rod.HijackRouter {
	blocked := blockedTypes(types)
	if len(blocked) == 0 && !blockTrackers {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := blocked[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if blockTrackers {
			if isTrackerHost(h.Request.URL().Hostname()) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
